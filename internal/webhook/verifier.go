package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

// Zoom signature headers.
const (
	HeaderSignature = "x-zm-signature"
	HeaderTimestamp = "x-zm-request-timestamp"

	signatureVersion = "v0"
)

// ErrSignatureMismatch marks an inbound request that failed authentication.
var ErrSignatureMismatch = errors.New("webhook: signature mismatch")

// Verifier authenticates inbound Zoom webhooks with the app's secret token.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier keyed by the webhook secret token.
func NewVerifier(secretToken string) *Verifier {
	return &Verifier{secret: []byte(secretToken)}
}

// Sign returns the signature header value Zoom sends for timestamp and body: "v0=" + hex(HMAC-SHA256("v0:ts:body")).
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether headers carry a valid signature over body.
func (v *Verifier) Verify(headers http.Header, body []byte) bool {
	sig := headers.Get(HeaderSignature)
	ts := headers.Get(HeaderTimestamp)
	if sig == "" || ts == "" {
		return false
	}
	return hmac.Equal([]byte(v.Sign(ts, body)), []byte(sig))
}

// ChallengeResponse answers the endpoint.url_validation handshake: hex(HMAC-SHA256(plainToken)).
func (v *Verifier) ChallengeResponse(plainToken string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(plainToken))
	return hex.EncodeToString(mac.Sum(nil))
}
