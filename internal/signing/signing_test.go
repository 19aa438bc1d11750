package signing

import (
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Hour)
	sig := s.Sign("form123", 1700000000)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if sig != s.Sign("form123", 1700000000) {
		t.Fatalf("expected deterministic signature")
	}
	if sig == s.Sign("form124", 1700000000) {
		t.Fatalf("expected signature to depend on form id")
	}
}

func TestIssueAndCheck(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Hour)
	tok := s.Issue()
	if err := s.Check(tok); err != nil {
		t.Fatalf("expected fresh token to validate: %v", err)
	}

	tampered := tok
	tampered.FormID = "other"
	if err := s.Check(tampered); err != ErrInvalidToken {
		t.Fatalf("expected invalid token for wrong form id, got %v", err)
	}

	other := NewSigner([]byte("different"), time.Hour)
	if err := other.Check(tok); err != ErrInvalidToken {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}

	if err := s.Check(Token{}); err != ErrInvalidToken {
		t.Fatalf("expected invalid token for empty fields, got %v", err)
	}
}

func TestCheckExpired(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Minute)
	issuedAt := time.Unix(1700000000, 0)
	s.now = func() time.Time { return issuedAt }
	tok := s.Issue()

	s.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if err := s.Check(tok); err != ErrExpiredToken {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestRedeemOnce(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Hour)
	tok := s.Issue()
	if err := s.Redeem(tok); err != nil {
		t.Fatalf("expected first redeem to pass: %v", err)
	}
	if err := s.Redeem(tok); err != ErrUsedToken {
		t.Fatalf("expected used token on second redeem, got %v", err)
	}
	if err := s.Redeem(s.Issue()); err != nil {
		t.Fatalf("expected a new form to redeem: %v", err)
	}
	if err := s.Redeem(Token{}); err != ErrInvalidToken {
		t.Fatalf("expected invalid token to be checked first, got %v", err)
	}
}

func TestRedeemForgetsExpiredForms(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Minute)
	start := time.Unix(1700000000, 0)
	s.now = func() time.Time { return start }
	tok := s.Issue()
	if err := s.Redeem(tok); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	s.now = func() time.Time { return start.Add(2 * time.Minute) }
	if err := s.Redeem(s.Issue()); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, ok := s.used[tok.FormID]; ok {
		t.Fatalf("expected expired form id to be pruned")
	}
	if err := s.Redeem(tok); err != ErrExpiredToken {
		t.Fatalf("expected expired token, got %v", err)
	}
}
