// Package logging attaches a logrus subscriber to the client's event
// stream. Documents and payloads are truncated so debug logging stays
// usable against wide selections.
package logging

import (
	"context"

	eventbus "github.com/hanpama/nestling/internal/eventbus"
	events "github.com/hanpama/nestling/internal/events"
	reqid "github.com/hanpama/nestling/internal/reqid"

	"github.com/sirupsen/logrus"
)

const maxLoggedDocument = 512

func truncate(s string) string {
	if len(s) <= maxLoggedDocument {
		return s
	}
	return s[:maxLoggedDocument] + "..."
}

// Attach subscribes log handlers for every client event. The returned
// function removes them.
func Attach(log *logrus.Logger) (detach func()) {
	removes := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.ExecuteStart) {
			rid, _ := reqid.FromContext(ctx)
			log.WithFields(logrus.Fields{
				"rid":       rid,
				"operation": e.Operation,
				"variables": e.Variables,
				"batch":     e.Batch,
				"document":  truncate(e.Document),
			}).Debug("executing document")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ExecuteFinish) {
			rid, _ := reqid.FromContext(ctx)
			entry := log.WithFields(logrus.Fields{
				"rid":       rid,
				"operation": e.Operation,
				"duration":  e.Duration,
			})
			if e.Err != nil {
				entry.WithError(e.Err).Error("document execution failed")
				return
			}
			entry.Debug("document executed")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			entry := log.WithFields(logrus.Fields{
				"rid":      rid,
				"url":      e.URL,
				"status":   e.Status,
				"duration": e.Duration,
			})
			if e.Err != nil {
				entry.WithError(e.Err).Debug("dispatch attempt failed")
				return
			}
			entry.Debug("dispatch attempt finished")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RetryAttempt) {
			rid, _ := reqid.FromContext(ctx)
			log.WithFields(logrus.Fields{
				"rid":     rid,
				"attempt": e.Attempt,
			}).WithError(e.Err).Warn("retrying dispatch")
		}),
	}
	return func() {
		for _, remove := range removes {
			remove()
		}
	}
}
