package telegraph

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockAdapter_Lifecycle(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	if _, err := m.Listen(ctx); err == nil {
		t.Error("Listen before Connect should fail")
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	inbound, err := m.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	m.SimulateInbound(InboundMessage{ChannelID: "c1", UserID: "u1", Text: "hi"})
	select {
	case msg := <-inbound:
		if msg.Text != "hi" {
			t.Errorf("text = %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message delivered")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Connect(ctx); err == nil {
		t.Error("Connect after Close should fail")
	}
}

func TestMockAdapter_Personas(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	p, err := m.CreatePersona(ctx, "c1", "Monki")
	if err != nil {
		t.Fatalf("CreatePersona: %v", err)
	}
	if !m.PersonaAlive(p.ID) {
		t.Error("persona should be alive after creation")
	}

	if err := m.PersonaSend(ctx, p, "Monki", "", "hello"); err != nil {
		t.Fatalf("PersonaSend: %v", err)
	}
	sends := m.PersonaMessages()
	if len(sends) != 1 || sends[0].Content != "hello" {
		t.Errorf("sends = %+v", sends)
	}

	if err := m.DeletePersona(ctx, p); err != nil {
		t.Fatalf("DeletePersona: %v", err)
	}
	if m.PersonaAlive(p.ID) {
		t.Error("persona should be gone after deletion")
	}
	if err := m.PersonaSend(ctx, p, "Monki", "", "ghost"); err == nil {
		t.Error("PersonaSend to a deleted persona should fail")
	}
}

func TestMockAdapter_FailPersonaCreation(t *testing.T) {
	m := NewMockAdapter()
	m.FailPersonaCreation()
	_, err := m.CreatePersona(context.Background(), "c1", "Monki")
	if !errors.Is(err, ErrResourceCreation) {
		t.Errorf("err = %v, want ErrResourceCreation", err)
	}
}

func TestMockAdapter_AwaitMessage(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	m.QueueAwaited(InboundMessage{ChannelID: "c1", UserID: "u1", Text: "I attack"})

	msg, err := m.AwaitMessage(ctx, "c1", "u1", time.Second)
	if err != nil {
		t.Fatalf("AwaitMessage: %v", err)
	}
	if msg.Text != "I attack" {
		t.Errorf("text = %q", msg.Text)
	}

	if _, err := m.AwaitMessage(ctx, "c1", "u1", time.Millisecond); !errors.Is(err, ErrAwaitTimeout) {
		t.Errorf("err = %v, want ErrAwaitTimeout", err)
	}
}
