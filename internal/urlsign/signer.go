// Package urlsign mints and verifies time-bounded retrieval links. The
// kv backend has no native presigning, so the service signs links to its
// own artifact endpoint; a third party can fetch with the link alone.
package urlsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/paperstack/previewd/internal/domain"
)

// Verification errors.
var (
	ErrExpired    = errors.New("urlsign: link expired")
	ErrBadSig     = errors.New("urlsign: signature mismatch")
	ErrMalformed  = errors.New("urlsign: malformed parameters")
	errNoSecret   = errors.New("urlsign: secret not configured")
	errNoBaseURL  = errors.New("urlsign: base url not configured")
	errBadArtifct = errors.New("urlsign: unknown artifact kind")
)

// Signer signs artifact retrieval URLs with HMAC-SHA256.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// New creates a Signer. baseURL is the externally reachable root of this
// service, e.g. "https://previews.example.com".
func New(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: baseURL, now: time.Now}
}

// Sign produces "{base}/artifacts/{id}/{kind}?exp=...&sig=...". The link
// is valid until exp; ttl should be long enough for the analysis service
// to fetch the artifact but no longer.
func (s *Signer) Sign(id domain.ProcessingID, kind domain.ArtifactKind, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errNoSecret
	}
	if s.baseURL == "" {
		return "", errNoBaseURL
	}
	if !kind.Valid() {
		return "", errBadArtifct
	}

	exp := s.now().Add(ttl).Unix()
	sig := s.sign(id, kind, exp)

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)
	return fmt.Sprintf("%s/artifacts/%s/%s?%s", s.baseURL, id, kind, q.Encode()), nil
}

// Verify checks the signature and expiry carried in query parameters.
func (s *Signer) Verify(id domain.ProcessingID, kind domain.ArtifactKind, expParam, sigParam string) error {
	exp, err := strconv.ParseInt(expParam, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	want := s.sign(id, kind, exp)
	if !hmac.Equal([]byte(want), []byte(sigParam)) {
		return ErrBadSig
	}
	return nil
}

func (s *Signer) sign(id domain.ProcessingID, kind domain.ArtifactKind, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s:%d", id, kind, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
