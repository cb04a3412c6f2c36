package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerID        = "webhook-id"
	headerTimestamp = "webhook-timestamp"
	headerSignature = "webhook-signature"

	signatureTolerance = 5 * time.Minute
	secretPrefix       = "whsec_"
)

var (
	ErrMissingSignature = errors.New("webhook signature headers missing")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
	ErrBadSignature     = errors.New("webhook signature mismatch")
)

// Verifier checks signed webhook deliveries: HMAC-SHA256 over "id.timestamp.body",
// base64 encoded, sent as one or more space separated "v1,<sig>" entries.
type Verifier struct {
	key []byte
	now func() time.Time
}

func NewVerifier(secret string) *Verifier {
	key := []byte(secret)
	if strings.HasPrefix(secret, secretPrefix) {
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix)); err == nil {
			key = decoded
		}
	}
	return &Verifier{key: key, now: time.Now}
}

func (v *Verifier) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id + "." + strconv.FormatInt(ts.Unix(), 10) + "."))
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(h http.Header, body []byte) error {
	id, tsRaw, sigs := h.Get(headerID), h.Get(headerTimestamp), h.Get(headerSignature)
	if id == "" || tsRaw == "" || sigs == "" {
		return ErrMissingSignature
	}

	secs, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	ts := time.Unix(secs, 0)
	if d := v.now().Sub(ts); d > signatureTolerance || d < -signatureTolerance {
		return ErrStaleTimestamp
	}

	expected := []byte(v.Sign(id, ts, body))
	for _, sig := range strings.Fields(sigs) {
		if hmac.Equal([]byte(sig), expected) {
			return nil
		}
	}
	return ErrBadSignature
}
