package password

import (
	customErrors "github.com/clipstream/account-service/internal/account/errors"

	"github.com/alexedwards/argon2id"
)

// Hasher derives and verifies argon2id digests. The pepper is appended to the
// plaintext before hashing, so digests are only verifiable with the same
// server-side pepper.
type Hasher struct {
	pepper string
}

func New(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := argon2id.CreateHash(plaintext+h.pepper, argon2id.DefaultParams)
	if err != nil {
		return "", customErrors.WrapInternal(err, "hash password")
	}
	return digest, nil
}

// Verify reports whether plaintext matches digest. A mismatch is (false, nil);
// an error is returned only for a malformed digest.
func (h *Hasher) Verify(plaintext, digest string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(plaintext+h.pepper, digest)
	if err != nil {
		return false, customErrors.WrapInternal(err, "verify password")
	}
	return ok, nil
}
