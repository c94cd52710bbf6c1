package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAnswerer records queries and returns a canned reply or error.
type fakeAnswerer struct {
	mu     sync.Mutex
	reply  string
	err    error
	panics bool
	asked  []string
}

func (f *fakeAnswerer) Ask(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	f.asked = append(f.asked, query)
	f.mu.Unlock()
	if f.panics {
		panic("answerer exploded")
	}
	return f.reply, f.err
}

func (f *fakeAnswerer) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}

// fakePoster records posted replies.
type fakePoster struct {
	mu     sync.Mutex
	err    error
	posted []postedReply
}

type postedReply struct {
	channel, threadTS, text string
}

func (f *fakePoster) PostReply(_ context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, postedReply{channel, threadTS, text})
	return f.err
}

func (f *fakePoster) replies() []postedReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedReply(nil), f.posted...)
}

const testSecret = "test-signing-secret"

func newTestDispatcher(answerer Answerer, poster MessagePoster, missing []string) *Dispatcher {
	return NewDispatcher(NewVerifier(testSecret), answerer, poster, "fallback message", missing, nil)
}

// signedRequest builds a POST with a valid signature over body.
func signedRequest(body, contentType string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(TimestampHeader, ts)
	req.Header.Set(SignatureHeader, sign(testSecret, ts, []byte(body)))
	return req
}

func TestNonPOSTGets200(t *testing.T) {
	d := newTestDispatcher(&fakeAnswerer{}, &fakePoster{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/slack/events", nil)
	w := httptest.NewRecorder()

	d.HandleEvent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for health probe, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("expected OK body, got %q", w.Body.String())
	}
}

func TestUnsignedRequestRejected(t *testing.T) {
	d := newTestDispatcher(&fakeAnswerer{}, &fakePoster{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	d.HandleEvent(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestBadSignatureRejected(t *testing.T) {
	d := newTestDispatcher(&fakeAnswerer{}, &fakePoster{}, nil)
	req := signedRequest(`{}`, "application/json")
	req.Header.Set(SignatureHeader, "v0=deadbeef")
	w := httptest.NewRecorder()

	d.HandleEvent(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestHandshakeEcho(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, nil)
	req := signedRequest(`{"type":"url_verification","challenge":"ch-42"}`, "application/json")
	w := httptest.NewRecorder()

	d.HandleEvent(w, req)
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing challenge response: %v", err)
	}
	if resp["challenge"] != "ch-42" {
		t.Errorf("expected challenge echoed verbatim, got %q", resp["challenge"])
	}
	if len(resp) != 1 {
		t.Errorf("expected only the challenge field, got %v", resp)
	}
	if len(answerer.queries()) != 0 {
		t.Error("handshake must not reach the answer service")
	}
}

func TestMalformedPayloadAcked(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, nil)
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest("this is not json", "application/json"))
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed payload, got %d", w.Code)
	}
	if len(answerer.queries()) != 0 {
		t.Error("malformed payload must be dropped")
	}
}

func TestNoEventAcked(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, nil)
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(`{"type":"event_callback"}`, "application/json"))
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(answerer.queries()) != 0 {
		t.Error("payload without event must be dropped")
	}
}

func TestBotEventNotRelayed(t *testing.T) {
	answerer := &fakeAnswerer{reply: "never"}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"message","channel_type":"im","bot_id":"B9","text":"hi","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(answerer.queries()) != 0 {
		t.Error("bot-authored event must not reach the answer service")
	}
	if len(poster.replies()) != 0 {
		t.Error("no reply must be posted for bot-authored events")
	}
}

func TestIrrelevantEventNotRelayed(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, nil)
	payload := `{"type":"event_callback","event":{"type":"reaction_added","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	if len(answerer.queries()) != 0 {
		t.Error("irrelevant event types must be dropped")
	}
}

func TestMentionRelayedAndReplied(t *testing.T) {
	answerer := &fakeAnswerer{reply: "world"}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"<@U0BOT> hello","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("expected immediate 200 OK ack, got %d %q", w.Code, w.Body.String())
	}

	queries := answerer.queries()
	if len(queries) != 1 || queries[0] != "hello" {
		t.Fatalf("expected normalized query hello, got %v", queries)
	}

	replies := poster.replies()
	if len(replies) != 1 {
		t.Fatalf("expected one posted reply, got %d", len(replies))
	}
	if replies[0] != (postedReply{"C1", "1", "world"}) {
		t.Errorf("unexpected reply: %+v", replies[0])
	}
}

func TestDirectMessageRelayed(t *testing.T) {
	answerer := &fakeAnswerer{reply: "answer"}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"message","channel_type":"im","text":"what is up","channel":"D1","ts":"9"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	replies := poster.replies()
	if len(replies) != 1 || replies[0].channel != "D1" || replies[0].threadTS != "9" {
		t.Fatalf("expected DM reply in thread, got %v", replies)
	}
}

func TestDownstreamFailurePostsFallback(t *testing.T) {
	answerer := &fakeAnswerer{err: errors.New("timed out")}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"<@U0BOT> hi","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	replies := poster.replies()
	if len(replies) != 1 {
		t.Fatalf("expected fallback posted, got %d replies", len(replies))
	}
	if replies[0].text != "fallback message" {
		t.Errorf("expected the fixed fallback string, got %q", replies[0].text)
	}
	if replies[0].text == "" {
		t.Error("fallback must never be the empty string")
	}
	if replies[0].channel != "C1" || replies[0].threadTS != "1" {
		t.Errorf("fallback must go to the originating thread, got %+v", replies[0])
	}
}

func TestPostFailureDoesNotEscape(t *testing.T) {
	answerer := &fakeAnswerer{reply: "fine"}
	poster := &fakePoster{err: errors.New("channel_not_found")}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"q","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait() // must return without panicking

	if w.Code != http.StatusOK {
		t.Fatalf("posting failure must not surface to Slack, got %d", w.Code)
	}
}

func TestAnswererPanicRecovered(t *testing.T) {
	answerer := &fakeAnswerer{panics: true}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"q","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait() // recovered panic, no crash

	if len(poster.replies()) != 0 {
		t.Error("no reply expected after a panic")
	}
}

func TestMissingConfigSkipsProcessing(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, []string{"upstream.auth_token"})
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"q","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("missing config must still ack, got %d", w.Code)
	}
	if len(answerer.queries()) != 0 {
		t.Error("missing config must skip downstream processing")
	}
}

func TestNoSigningSecretAcksAndDrops(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := NewDispatcher(NewVerifier(""), answerer, &fakePoster{}, "fallback", []string{"slack.signing_secret"}, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"q","channel":"C1","ts":"1"}}`
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(payload))
	w := httptest.NewRecorder()

	d.HandleEvent(w, req)
	d.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("unverifiable requests must be acked, got %d", w.Code)
	}
	if len(answerer.queries()) != 0 {
		t.Error("nothing may be relayed without a signing secret")
	}
}

func TestFormEncodedPayload(t *testing.T) {
	answerer := &fakeAnswerer{reply: "ok"}
	poster := &fakePoster{}
	d := newTestDispatcher(answerer, poster, nil)

	inner := `{"type":"event_callback","event":{"type":"app_mention","text":"from form","channel":"C2","ts":"3"}}`
	form := url.Values{"payload": {inner}}.Encode()
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(form, "application/x-www-form-urlencoded"))
	d.Wait()

	queries := answerer.queries()
	if len(queries) != 1 || queries[0] != "from form" {
		t.Fatalf("expected form payload relayed, got %v", queries)
	}
	if len(poster.replies()) != 1 || poster.replies()[0].channel != "C2" {
		t.Errorf("expected reply to form event channel, got %v", poster.replies())
	}
}

func TestEmptyTextAfterNormalizationDropped(t *testing.T) {
	answerer := &fakeAnswerer{}
	d := newTestDispatcher(answerer, &fakePoster{}, nil)
	payload := `{"type":"event_callback","event":{"type":"app_mention","text":"<@U0BOT>","channel":"C1","ts":"1"}}`
	w := httptest.NewRecorder()

	d.HandleEvent(w, signedRequest(payload, "application/json"))
	d.Wait()

	if len(answerer.queries()) != 0 {
		t.Error("mention-only text must be dropped, not forwarded empty")
	}
}
