package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Slack request signing headers.
const (
	TimestampHeader = "X-Slack-Request-Timestamp"
	SignatureHeader = "X-Slack-Signature"
)

// signatureVersion is Slack's signing scheme version.
const signatureVersion = "v0"

// replayWindow is the maximum age of a request timestamp. Anything older
// (or further in the future) is rejected regardless of signature.
const replayWindow = 5 * time.Minute

var (
	ErrMissingSignature  = errors.New("relay: missing signature or timestamp header")
	ErrStaleTimestamp    = errors.New("relay: request timestamp outside replay window")
	ErrSignatureMismatch = errors.New("relay: signature mismatch")
)

// Verifier authenticates inbound requests against the Slack signing secret.
// It is a pure predicate over (secret, timestamp, body, signature).
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify checks that signature matches the HMAC-SHA256 of
// "v0:<timestamp>:<body>" under the signing secret and that the timestamp is
// within the replay window. It fails closed on any missing input.
func (v *Verifier) Verify(body []byte, timestamp, signature string) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: unparseable timestamp %q", ErrStaleTimestamp, timestamp)
	}
	age := v.now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if age > int64(replayWindow.Seconds()) {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal, never ==: string comparison short-circuits and leaks
	// timing.
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
