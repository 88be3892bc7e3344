// Package notifier implements the chat/side-channel notifier spec.md
// §4.4/§4.6 calls out: a webhook poster the dispatcher reports dropped
// events to, and a Broadcaster-compatible subscriber that posts every
// raised event for chat visibility (spec.md §4.5's "the chat notifier ...
// registers as one additional subscriber at startup").
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetalert/engine/internal/model"
)

// defaultTimeout bounds a webhook call when the caller hasn't supplied its
// own client; a chat-side outage must not back up the dispatcher's
// broadcast path indefinitely.
const defaultTimeout = 10 * time.Second

// eventPayload is the wire shape posted for every raised alert event. A
// named type keeps the JSON field set in one place instead of rebuilt
// inline at the call site.
type eventPayload struct {
	Kind     string `json:"kind"`
	RuleID   int64  `json:"rule_id"`
	TargetID int64  `json:"target_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Value    string `json:"value"`
}

type failurePayload struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Webhook posts JSON payloads to a single configured endpoint, used both
// for dropped-event failure reports and for the chat-visible event feed.
type Webhook struct {
	client   *http.Client
	endpoint string
}

// Option customises Webhook construction, matching the functional-option
// shape rulecache.Option uses elsewhere in this engine.
type Option func(*Webhook)

// WithClient overrides the HTTP client used to deliver webhook calls.
func WithClient(client *http.Client) Option {
	return func(w *Webhook) {
		if client != nil {
			w.client = client
		}
	}
}

// New wires a webhook poster to endpoint. Absent WithClient, calls go out
// on a client bounded by defaultTimeout rather than http.DefaultClient's
// unbounded one, since a wedged chat backend must not stall dispatch.
func New(endpoint string, opts ...Option) (*Webhook, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint must not be empty")
	}
	w := &Webhook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// NotifyFailure implements dispatch.Notifier: posts a plain failure report,
// for the "requeue failed, drop + notify" branch of spec.md §4.4.
func (w *Webhook) NotifyFailure(ctx context.Context, text string) {
	_ = w.deliver(ctx, failurePayload{Kind: "dispatch_failure", Text: text})
}

// Broadcast implements dispatch.Broadcaster-compatible fan-out registration
// (spec.md §4.5): the notifier is one more subscriber, posting a
// chat-formatted summary of every raised event. No subscriber may block the
// dispatcher's raise path, so delivery failures are swallowed here rather
// than surfaced to the caller.
func (w *Webhook) Broadcast(event model.Event) {
	_ = w.deliver(context.Background(), eventPayload{
		Kind:     "alert_event",
		RuleID:   event.RuleID,
		TargetID: event.TargetID,
		Severity: event.Severity.String(),
		Message:  event.Message,
		Value:    event.Value,
	})
}

// deliver encodes payload, sends it to the webhook endpoint, and treats any
// non-2xx response as a delivery failure.
func (w *Webhook) deliver(ctx context.Context, payload interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	resp, err := w.send(ctx, encoded)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status)
	}
	return nil
}

// send issues the HTTP call. Kept apart from deliver so the transport
// mechanics (context, headers, round trip) stay separate from the
// response-status policy layered on top of it.
func (w *Webhook) send(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deliver webhook request: %w", err)
	}
	return resp, nil
}
