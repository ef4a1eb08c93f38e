package crypto

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when no stored hash exists, so a login for
// an unknown account costs the same bcrypt work as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("taskgate-dummy-credential"), bcrypt.DefaultCost)

// HashPassword hashes plaintext using bcrypt.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword reports whether plaintext matches the stored hash. A
// malformed hash is a mismatch, never an error surfaced to callers.
func ComparePassword(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}

// BurnCompare performs a throwaway comparison against a fixed hash. Login
// calls it when the account does not exist to keep both rejection paths on
// the same bcrypt budget.
func BurnCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
