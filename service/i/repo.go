package i

import (
	"context"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

// MatchRepo persists match outcomes.
type MatchRepo interface {
	// Save inserts or replaces the record with the same match id.
	Save(ctx context.Context, record *dmn.MatchRecord) error

	// ByID retrieves a record by match id.
	// Returns an error if the record is not found or in case of an unexpected error.
	ByID(ctx context.Context, id string) (*dmn.MatchRecord, error)
}

// MatchHistory is the read side of match persistence served to operators.
type MatchHistory interface {
	ByID(ctx context.Context, id string) (*dmn.MatchRecord, error)

	// ByPlayer lists the latest records the address played in, newest first.
	ByPlayer(ctx context.Context, address string, limit int64) ([]*dmn.MatchRecord, error)
}
