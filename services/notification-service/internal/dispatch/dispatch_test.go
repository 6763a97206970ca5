package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/turnohq/turnoline/services/notification-service/internal/trigger"
)

type fakePush struct {
	sent []string
	fail map[string]bool
}

func (f *fakePush) Send(_ context.Context, recipient, _, _ string, _ map[string]any) error {
	if f.fail[recipient] {
		return errors.New("push rejected")
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func (f *fakePush) ProviderID() string { return "fake" }

type fakeEmail struct {
	sent []string
}

func (f *fakeEmail) Send(to, _, _ string) error {
	f.sent = append(f.sent, to)
	return nil
}

type fakeStore struct {
	flagged []string
	logged  map[string]string
}

func (f *fakeStore) MarkDelivered(_ context.Context, entityID, kind string) error {
	f.flagged = append(f.flagged, entityID+":"+kind)
	return nil
}

func (f *fakeStore) RecordDelivery(_ context.Context, entityID, kind, _ string, _ map[string]any, status string) error {
	if f.logged == nil {
		f.logged = map[string]string{}
	}
	f.logged[entityID+":"+kind] = status
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatch_FlagsOnlyConfirmedDeliveries(t *testing.T) {
	pushSender := &fakePush{fail: map[string]bool{"p2": true}}
	store := &fakeStore{}
	d := New(pushSender, &fakeEmail{}, "admin@shop", store, testLogger())

	events := []trigger.Event{
		{Recipient: "p1", Kind: trigger.KindTurnNext, IdempotencyKey: "t1:" + trigger.KindTurnNext},
		{Recipient: "p2", Kind: trigger.KindTurnClose, IdempotencyKey: "t2:" + trigger.KindTurnClose},
	}
	d.Dispatch(context.Background(), events)

	if len(store.flagged) != 1 || store.flagged[0] != "t1:"+trigger.KindTurnNext {
		t.Fatalf("flagged = %v, want only the delivered event", store.flagged)
	}
	if store.logged["t2:"+trigger.KindTurnClose] != "failed" {
		t.Fatalf("failed delivery not logged: %v", store.logged)
	}
	if store.logged["t1:"+trigger.KindTurnNext] != "sent" {
		t.Fatalf("sent delivery not logged: %v", store.logged)
	}
}

func TestDispatch_AdminGoesByEmail(t *testing.T) {
	pushSender := &fakePush{}
	emailSender := &fakeEmail{}
	store := &fakeStore{}
	d := New(pushSender, emailSender, "admin@shop", store, testLogger())

	d.Dispatch(context.Background(), []trigger.Event{
		{Recipient: "admin", Kind: trigger.KindCreatedAdmin, IdempotencyKey: "a1:" + trigger.KindCreatedAdmin},
		{Recipient: "b1", Kind: trigger.KindCreatedBarber, IdempotencyKey: "a1:" + trigger.KindCreatedBarber},
	})

	if len(emailSender.sent) != 1 || emailSender.sent[0] != "admin@shop" {
		t.Fatalf("admin email = %v", emailSender.sent)
	}
	if len(pushSender.sent) != 1 || pushSender.sent[0] != "b1" {
		t.Fatalf("barber push = %v", pushSender.sent)
	}
}

func TestDispatch_MalformedKeySkipped(t *testing.T) {
	store := &fakeStore{}
	d := New(&fakePush{}, &fakeEmail{}, "admin@shop", store, testLogger())
	d.Dispatch(context.Background(), []trigger.Event{
		{Recipient: "p1", Kind: trigger.KindTurnNext, IdempotencyKey: "nokind"},
	})
	if len(store.flagged) != 0 {
		t.Fatalf("malformed key still flagged: %v", store.flagged)
	}
}
