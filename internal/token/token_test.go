package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/splax/taskgate/internal/domain"
)

func newTestCodec(t *testing.T, ttl time.Duration) Codec {
	t.Helper()
	codec, err := NewCodec("test-secret", ttl)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	profile := domain.Profile{ID: "user-1", Email: "a@b.com", Name: "Alice"}

	signed, err := codec.Sign(profile)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := codec.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != profile.ID || claims.Email != profile.Email || claims.Name != profile.Name {
		t.Fatalf("claims do not match profile: %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Fatalf("expected expiry in the future")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(t, time.Nanosecond)
	signed, err := codec.Sign(domain.Profile{ID: "user-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	signed, err := codec.Sign(domain.Profile{ID: "user-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Flip one byte per position. The last byte of each segment is skipped:
	// base64 decoding discards its trailing bits, so a flip there can leave
	// the decoded bytes unchanged.
	for i := 0; i < len(signed); i++ {
		if i+1 == len(signed) || signed[i+1] == '.' {
			continue
		}
		mutated := []byte(signed)
		mutated[i] ^= 0x01
		if _, err := codec.Verify(string(mutated)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("byte %d: expected ErrInvalidToken, got %v", i, err)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	other, err := NewCodec("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	signed, err := other.Sign(domain.Profile{ID: "user-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsMalformedAndIncompleteTokens(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	cases := map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"two parts":  "aaaa.bbbb",
		"whitespace": "   ",
	}
	for name, tok := range cases {
		if _, err := codec.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	// A validly signed token missing the user claim is also invalid.
	signed, err := codec.Sign(domain.Profile{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing user id, got %v", err)
	}
}

func TestTokensAreOpaqueAboutFailureMode(t *testing.T) {
	codec := newTestCodec(t, time.Nanosecond)
	expired, err := codec.Sign(domain.Profile{ID: "user-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, expiredErr := codec.Verify(expired)
	_, garbageErr := codec.Verify("garbage")
	if expiredErr == nil || garbageErr == nil {
		t.Fatalf("expected both verifications to fail")
	}
	if expiredErr.Error() != garbageErr.Error() {
		t.Fatalf("failure modes must be indistinguishable: %q vs %q", expiredErr, garbageErr)
	}
	if strings.Contains(expiredErr.Error(), "expired") {
		t.Fatalf("error leaks failure reason: %q", expiredErr)
	}
}
