package crypto

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if string(hash) == "secret" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !ComparePassword(hash, "secret") {
		t.Fatalf("expected matching password to verify")
	}
	if ComparePassword(hash, "wrong") {
		t.Fatalf("expected mismatching password to fail")
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if string(first) == string(second) {
		t.Fatalf("two hashes of the same input must differ")
	}
	if !ComparePassword(first, "secret") || !ComparePassword(second, "secret") {
		t.Fatalf("both salted hashes must verify")
	}
}

func TestCompareMalformedHashReturnsFalse(t *testing.T) {
	for _, hash := range [][]byte{nil, {}, []byte("not-a-bcrypt-hash")} {
		if ComparePassword(hash, "secret") {
			t.Fatalf("malformed hash %q must not verify", hash)
		}
	}
}

func TestBurnCompareDoesNotPanic(t *testing.T) {
	BurnCompare("anything")
	BurnCompare("")
}
