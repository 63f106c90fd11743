package auth

import (
	"regexp"
	"testing"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashPassword_KnownDigest(t *testing.T) {
	t.Parallel()

	// sha256("password123")
	want := "ef92b778bafe771e89245b89ecbc08a44a4e166c06659911881f383d4473e94f"
	if got := HashPassword("password123"); got != want {
		t.Errorf("HashPassword = %s, want %s", got, want)
	}
}

func TestHashPassword_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "secret1", "pässwörd", "a very long password with spaces"}
	for _, in := range inputs {
		h1 := HashPassword(in)
		h2 := HashPassword(in)
		if h1 != h2 {
			t.Errorf("HashPassword(%q) not deterministic", in)
		}
		if len(h1) != HashLen || !hexDigest.MatchString(h1) {
			t.Errorf("HashPassword(%q) = %q, want %d lowercase hex chars", in, h1, HashLen)
		}
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	digest := HashPassword("secret1")

	if !VerifyPassword("secret1", digest) {
		t.Error("expected correct password to verify")
	}
	if VerifyPassword("secret2", digest) {
		t.Error("expected wrong password to fail")
	}
	if VerifyPassword("secret1", "") {
		t.Error("expected empty digest to fail")
	}
}
