package i

import (
	"time"
)

// Tokenizer issues and checks operator access tokens.
type Tokenizer interface {
	// Generate creates a token for the operator subject, valid for ttl.
	Generate(subject string, ttl time.Duration) (string, error)

	// Decode validates a token and returns its subject.
	Decode(token string) (string, error)
}
