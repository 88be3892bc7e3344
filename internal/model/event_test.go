package model

import (
	"testing"
	"time"
)

func TestEventAckSetsAcknowledgementFields(t *testing.T) {
	evt := &Event{RuleID: 1, TargetID: 2}
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	evt.Ack("oncall", at)

	if !evt.Acked {
		t.Fatal("expected Acked to be true after Ack")
	}
	if evt.AckActor != "oncall" {
		t.Fatalf("expected ack actor %q, got %q", "oncall", evt.AckActor)
	}
	if !evt.AckTime.Equal(at) {
		t.Fatalf("expected ack time %v, got %v", at, evt.AckTime)
	}
}

func TestEventAckOnNilReceiverIsNoop(t *testing.T) {
	var evt *Event
	evt.Ack("oncall", time.Now())
}
