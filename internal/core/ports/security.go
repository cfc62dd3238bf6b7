package ports

import "time"

// PasswordHasher is the one-way credential primitive.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is (false, nil);
	// an error means the hash itself could not be evaluated.
	Verify(hash, password string) (bool, error)
}

// TokenIssuer signs stateless session tokens for a subject.
type TokenIssuer interface {
	Issue(subject string) (token string, expiresAt time.Time, err error)
}

// TokenValidator verifies a session token and returns its subject.
type TokenValidator interface {
	Validate(token string) (subject string, err error)
}
