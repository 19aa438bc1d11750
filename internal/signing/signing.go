// Package signing issues and checks the HMAC tokens embedded in every rendered
// report form.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid form token")
	ErrExpiredToken = errors.New("form token expired")
	ErrUsedToken    = errors.New("form token already used")
)

// Token is the triple carried by hidden form fields.
type Token struct {
	FormID    string
	Expires   string
	Signature string
}

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu sync.Mutex
	// used maps redeemed form IDs to their expiry. Entries leave once the
	// token could no longer pass Check anyway.
	used map[string]int64
}

// NewSigner creates a Signer whose tokens live for ttl.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now, used: make(map[string]int64)}
}

// Sign returns the hex signature for a form ID and expiry.
func (s *Signer) Sign(formID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%d", formID, expiresUnix)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue mints a token for a freshly rendered form.
func (s *Signer) Issue() Token {
	formID := uuid.NewString()
	expires := s.now().Add(s.ttl).Unix()
	return Token{
		FormID:    formID,
		Expires:   strconv.FormatInt(expires, 10),
		Signature: s.Sign(formID, expires),
	}
}

// Check verifies the signature first and the expiry second, so a tampered
// token never reports as merely expired.
func (s *Signer) Check(t Token) error {
	if t.FormID == "" || t.Expires == "" || t.Signature == "" {
		return ErrInvalidToken
	}
	exp, err := strconv.ParseInt(t.Expires, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.Sign(t.FormID, exp)), []byte(t.Signature)) {
		return ErrInvalidToken
	}
	if time.Unix(exp, 0).Before(s.now()) {
		return ErrExpiredToken
	}
	return nil
}

// Redeem checks t and marks its form ID as used. A second Redeem of the same
// token fails with ErrUsedToken, so one rendered form submits at most once.
func (s *Signer) Redeem(t Token) error {
	if err := s.Check(t); err != nil {
		return err
	}
	exp, _ := strconv.ParseInt(t.Expires, 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Unix()
	for id, until := range s.used {
		if until < now {
			delete(s.used, id)
		}
	}
	if _, ok := s.used[t.FormID]; ok {
		return ErrUsedToken
	}
	s.used[t.FormID] = exp
	return nil
}
