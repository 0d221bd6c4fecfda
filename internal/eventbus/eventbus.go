// Package eventbus is a minimal in-process dispatcher for typed events.
// Publishing is a no-op until a bus is installed, so the library stays
// silent unless observability is wired up.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscriber handles events of type E.
type Subscriber[E any] func(context.Context, E)

// Bus routes events to subscribers keyed by event type.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[reflect.Type]map[int]func(context.Context, any)
}

func New() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[int]func(context.Context, any))}
}

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[t] == nil {
		b.subs[t] = make(map[int]func(context.Context, any))
	}
	token := b.next
	b.next++
	b.subs[t][token] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[t], token)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, t reflect.Type, e any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	fns := make([]func(context.Context, any), 0, len(b.subs[t]))
	for _, fn := range b.subs[t] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, e)
	}
}

// SubscribeTo registers s on bus b for events of type E.
func SubscribeTo[E any](b *Bus, s Subscriber[E]) (remove func()) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	return b.add(t, func(ctx context.Context, v any) { s(ctx, v.(E)) })
}

// PublishTo sends e to subscribers of its static type on bus b.
func PublishTo[E any](b *Bus, ctx context.Context, e E) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	b.dispatch(ctx, t, e)
}

var global atomic.Pointer[Bus]

// Use installs the process-wide bus. Passing nil disables publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers s with the process-wide bus.
func Subscribe[E any](s Subscriber[E]) (remove func()) {
	if b := global.Load(); b != nil {
		return SubscribeTo(b, s)
	}
	return func() {}
}

// Publish sends e through the process-wide bus.
func Publish[E any](ctx context.Context, e E) {
	if b := global.Load(); b != nil {
		PublishTo(b, ctx, e)
	}
}
