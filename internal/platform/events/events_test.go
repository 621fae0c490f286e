package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(InvoiceCreated, map[string]string{"invoiceId": "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ID == "" || env.Type != InvoiceCreated || env.OccurredAt.IsZero() {
		t.Errorf("unexpected envelope %+v", env)
	}

	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil || data["invoiceId"] != "abc" {
		t.Errorf("unexpected data %s", env.Data)
	}
}

func TestNewEnvelope_Unmarshalable(t *testing.T) {
	if _, err := NewEnvelope("x", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestBestEffort_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	var failed []string
	rec := &Recorder{Err: errors.New("broker down")}
	p := NewBestEffort(rec, zerolog.New(&buf), func(key string) { failed = append(failed, key) })

	if err := p.Publish(context.Background(), AppointmentCompleted, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(failed) != 1 || failed[0] != AppointmentCompleted {
		t.Errorf("expected failure callback, got %v", failed)
	}
	if !strings.Contains(buf.String(), "broker down") {
		t.Errorf("expected warning logged, got %s", buf.String())
	}
}

func TestBestEffort_PassesThrough(t *testing.T) {
	rec := &Recorder{}
	p := NewBestEffort(rec, zerolog.Nop(), nil)

	_ = p.Publish(context.Background(), InvoiceCreated, 1)
	_ = p.Publish(context.Background(), InvoiceStatusChanged, 2)

	keys := rec.Keys()
	if len(keys) != 2 || keys[0] != InvoiceCreated || keys[1] != InvoiceStatusChanged {
		t.Errorf("unexpected keys %v", keys)
	}
	if rec.Events()[1].Payload != 2 {
		t.Errorf("unexpected payload %v", rec.Events()[1].Payload)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), StockLow, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
