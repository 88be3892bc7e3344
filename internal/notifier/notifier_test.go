package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetalert/engine/internal/model"
)

func TestNotifyFailurePostsDispatchFailure(t *testing.T) {
	var decoded map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the failure report must be posted as the expected JSON shape.
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := New(server.URL, WithClient(server.Client()))
	if err != nil {
		t.Fatalf("notifier init: %v", err)
	}
	w.NotifyFailure(context.Background(), "requeue failed for rule 1")

	if decoded["kind"] != "dispatch_failure" {
		t.Fatalf("expected kind dispatch_failure, got %q", decoded["kind"])
	}
	if decoded["text"] != "requeue failed for rule 1" {
		t.Fatalf("unexpected text: %q", decoded["text"])
	}
}

func TestBroadcastPostsAlertEvent(t *testing.T) {
	var decoded map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := New(server.URL, WithClient(server.Client()))
	if err != nil {
		t.Fatalf("notifier init: %v", err)
	}
	w.Broadcast(model.Event{RuleID: 9, TargetID: 10, Severity: model.SeverityCritical, Message: "host down"})

	if decoded["kind"] != "alert_event" {
		t.Fatalf("expected kind alert_event, got %v", decoded["kind"])
	}
	if decoded["message"] != "host down" {
		t.Fatalf("unexpected message: %v", decoded["message"])
	}
}

func TestNewRejectsEmptyEndpoint(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
