package account

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user does not exist so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

func HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// CheckPassword verifies p against the identity's hash. A nil identity still
// performs a comparison and returns false.
func CheckPassword(id *Identity, p string) bool {
	if id == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(p))
		return false
	}
	return ComparePassword(id.PasswordHash, p)
}
