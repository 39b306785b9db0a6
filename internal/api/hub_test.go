package api

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	user := uuid.New()
	phone, tablet, other := NewClient(user, nil), NewClient(user, nil), NewClient(uuid.New(), nil)
	hub.Register(phone)
	hub.Register(tablet)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Connections() == 3 })

	hub.SendToUser(user, map[string]string{"type": "screenshot_taken"})
	for _, c := range []*Client{phone, tablet} {
		select {
		case msg := <-c.send:
			if string(msg) != `{"type":"screenshot_taken"}` {
				t.Errorf("unexpected frame %s", msg)
			}
		default:
			t.Error("device did not receive the message")
		}
	}
	if len(other.send) != 0 {
		t.Error("message leaked to another user")
	}

	hub.Unregister(phone)
	waitFor(t, func() bool { return hub.Connections() == 2 })
	if _, ok := <-phone.send; ok {
		t.Error("unregistered client should be closed")
	}
	if phone.Send([]byte("late")) {
		t.Error("send on a closed client should fail")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(uuid.New(), nil)
	hub.Register(c)
	waitFor(t, func() bool { return hub.Connections() == 1 })

	cancel()
	<-stopped
	if _, ok := <-c.send; ok {
		t.Error("client should be closed on shutdown")
	}
	if hub.Connections() != 0 {
		t.Error("connections should be dropped on shutdown")
	}

	// must not block once the hub is gone
	late := NewClient(uuid.New(), nil)
	hub.Register(late)
	hub.Unregister(late)
}

func TestClient_SendDropsWhenFull(t *testing.T) {
	c := NewClient(uuid.New(), nil)
	for i := 0; i < sendBuffer; i++ {
		if !c.Send([]byte("x")) {
			t.Fatalf("send %d should fit in the buffer", i)
		}
	}
	if c.Send([]byte("overflow")) {
		t.Error("send on a full buffer should not block or succeed")
	}
}
