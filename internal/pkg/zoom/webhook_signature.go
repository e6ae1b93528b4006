package zoom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxTimestampSkew bounds the age of a signed delivery in either direction.
const MaxTimestampSkew = 300 * time.Second

const (
	ReasonNotConfigured  = "not_configured"
	ReasonMissingHeaders = "missing_headers"
	ReasonStale          = "stale"
	ReasonBadSignature   = "bad_signature"
)

// SignatureError explains why a delivery was rejected before processing.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	switch e.Reason {
	case ReasonNotConfigured:
		return "Zoom webhook integration not configured"
	case ReasonMissingHeaders:
		return "Missing required headers"
	case ReasonStale:
		return "Request timestamp too old"
	default:
		return "Invalid signature"
	}
}

// VerifyWebhookSignature checks a delivery against the account's webhook
// secret. The expected signature is "v0=" + hex(HMAC-SHA256("v0:ts:body")).
func VerifyWebhookSignature(secret, signature, timestamp string, body []byte, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return &SignatureError{Reason: ReasonNotConfigured}
	}
	sig := strings.TrimSpace(signature)
	ts := strings.TrimSpace(timestamp)
	if sig == "" || ts == "" {
		return &SignatureError{Reason: ReasonMissingHeaders}
	}

	sent, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return &SignatureError{Reason: ReasonStale}
	}
	if math.Abs(float64(now.Unix()-sent)) > MaxTimestampSkew.Seconds() {
		return &SignatureError{Reason: ReasonStale}
	}

	expected := SignPayload(secret, ts, body)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return &SignatureError{Reason: ReasonBadSignature}
	}
	return nil
}

// SignPayload computes the signature header value for a body sent at timestamp.
func SignPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// EncryptURLValidationToken answers the endpoint.url_validation challenge.
func EncryptURLValidationToken(secret, plainToken string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(plainToken))
	return hex.EncodeToString(mac.Sum(nil))
}
