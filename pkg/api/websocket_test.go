package api

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHubStopsOnContextCancel(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub goroutine did not stop after cancel")
	}
}
