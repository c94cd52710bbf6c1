// Package relay implements the webhook verification and asynchronous relay
// pipeline: verify the inbound request, answer the URL-verification
// handshake, acknowledge Slack within its deadline, then relay the event to
// the answer service and post the reply in a detached unit of work.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Answerer asks the downstream answer service for a reply.
type Answerer interface {
	Ask(ctx context.Context, query string) (string, error)
}

// MessagePoster posts a reply to the originating conversation thread.
type MessagePoster interface {
	PostReply(ctx context.Context, channel, threadTS, text string) error
}

// Dispatcher is the inbound webhook handler. Every request is acknowledged
// before any downstream work starts; the relay itself runs as a detached
// goroutine that may outlive the request/response cycle.
type Dispatcher struct {
	verifier *Verifier
	answerer Answerer
	poster   MessagePoster
	fallback string
	missing  []string // required config values absent at startup
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher wires the pipeline. missing lists required configuration
// values that are absent; when non-empty, events are acknowledged and
// dropped with a log line instead of being relayed.
func NewDispatcher(verifier *Verifier, answerer Answerer, poster MessagePoster, fallback string, missing []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		verifier: verifier,
		answerer: answerer,
		poster:   poster,
		fallback: fallback,
		missing:  missing,
		logger:   logger,
	}
}

// HandleEvent is the HTTP handler for the relay endpoint.
func (d *Dispatcher) HandleEvent(w http.ResponseWriter, r *http.Request) {
	// Slack health checks and probes get 200, never an error.
	if r.Method != http.MethodPost {
		ack(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.logger.Warn("reading request body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Without a signing secret nothing can be authenticated. Acknowledge
	// and drop instead of rejecting Slack's retries with 403s.
	if len(d.verifier.secret) == 0 {
		d.logger.Warn("signing secret not configured, dropping request")
		ack(w)
		return
	}

	// Signature is always computed over the raw body, form-encoded or not.
	if err := d.verifier.Verify(body, r.Header.Get(TimestampHeader), r.Header.Get(SignatureHeader)); err != nil {
		d.logger.Warn("rejecting request", "error", err)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var env Envelope
	if err := json.Unmarshal(eventPayload(body, r.Header.Get("Content-Type")), &env); err != nil {
		// Slack still expects 200 for payloads we cannot parse.
		d.logger.Warn("dropping malformed payload", "error", err)
		ack(w)
		return
	}

	// One-shot endpoint-ownership handshake: echo the challenge verbatim.
	// Handshake requests are signed like any other, so this runs after
	// verification.
	if env.Type == typeURLVerification && env.Challenge != "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": env.Challenge})
		return
	}

	// Acknowledge before any downstream call: Slack's response deadline is
	// seconds, the answer service's is not.
	ack(w)

	if env.Event == nil {
		d.logger.Debug("no event in payload", "type", env.Type)
		return
	}
	ev := *env.Event
	if ev.FromBot() {
		d.logger.Debug("ignoring bot-authored event", "channel", ev.Channel)
		return
	}
	if !ev.WantsReply() {
		d.logger.Debug("ignoring event", "event_type", ev.Type, "channel_type", ev.ChannelType)
		return
	}
	if len(d.missing) > 0 {
		d.logger.Warn("skipping event, required configuration missing", "missing", d.missing)
		return
	}

	query := NormalizeText(ev.Text)
	if query == "" {
		d.logger.Debug("ignoring event with empty text", "channel", ev.Channel)
		return
	}

	relayID := uuid.NewString()
	d.logger.Info("relaying event", "relay_id", relayID, "event_id", env.EventID, "channel", ev.Channel, "ts", ev.TS)

	d.wg.Add(1)
	go d.relay(relayID, ev.Channel, ev.TS, query)
}

// relay is the detached post-acknowledgment unit of work. No fault may
// escape it: downstream failures become the fallback message, posting
// failures become a log line, and panics are recovered.
func (d *Dispatcher) relay(relayID, channel, threadTS, query string) {
	defer d.wg.Done()

	logger := d.logger.With("relay_id", relayID, "channel", channel, "thread_ts", threadTS)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("relay panicked", "panic", rec)
		}
	}()

	// The answerer enforces its own deadline; the poster's HTTP client has
	// its own timeout. No further cancellation applies.
	ctx := context.Background()

	text, err := d.answerer.Ask(ctx, query)
	if err != nil {
		logger.Warn("downstream call failed, posting fallback", "error", err)
		text = d.fallback
	}

	if err := d.poster.PostReply(ctx, channel, threadTS, text); err != nil {
		logger.Error("posting reply failed", "error", err)
		return
	}
	logger.Info("reply posted")
}

// Wait blocks until all detached relay work has finished. Called on
// shutdown so in-flight replies are not cut off.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// eventPayload returns the JSON event payload within a request body.
// Interactive-component requests arrive form-encoded with the JSON in a
// "payload" field.
func eventPayload(body []byte, contentType string) []byte {
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if vals, err := url.ParseQuery(string(body)); err == nil {
			if p := vals.Get("payload"); p != "" {
				return []byte(p)
			}
		}
	}
	return body
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
