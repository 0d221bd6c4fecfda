package reqid

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %q from context, got %q ok=%v", id, got, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestEnsureContextReuses(t *testing.T) {
	ctx, id := NewContext(context.Background())
	ctx2, id2 := EnsureContext(ctx)
	if ctx2 != ctx || id2 != id {
		t.Fatalf("expected existing id %q to be reused, got %q", id, id2)
	}
	_, id3 := EnsureContext(context.Background())
	if id3 == "" || id3 == id {
		t.Fatalf("expected fresh id, got %q", id3)
	}
}
