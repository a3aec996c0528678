package session

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the default cost for bcrypt hashing.
	DefaultBcryptCost = 12
)

// ErrWrongSecret is returned when the shared access secret does not match.
var ErrWrongSecret = errors.New("wrong access secret")

// SecretGate guards the session behind one shared access secret. The
// plaintext is hashed once at startup and only the hash is kept around.
type SecretGate struct {
	hash []byte
}

// NewSecretGate hashes the shared secret. An empty secret disables the
// gate entirely, which is how local development runs.
func NewSecretGate(secret string) (*SecretGate, error) {
	if secret == "" {
		return &SecretGate{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), DefaultBcryptCost)
	if err != nil {
		return nil, err
	}
	return &SecretGate{hash: hash}, nil
}

// Enabled reports whether a secret is required at all.
func (g *SecretGate) Enabled() bool {
	return len(g.hash) > 0
}

// Verify checks a presented secret against the stored hash.
func (g *SecretGate) Verify(secret string) error {
	if !g.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(secret)); err != nil {
		return ErrWrongSecret
	}
	return nil
}
