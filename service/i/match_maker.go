package i

import (
	"context"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

// Matchmaker is the entry point the realtime channel drives.
type Matchmaker interface {
	// Join queues an entrant and runs pairing attempts.
	Join(ctx context.Context, address, username string, conn dmn.ConnectionHandle) dmn.JoinOutcome
	// Leave drops any queue entry currently bound to conn.
	Leave(conn dmn.ConnectionHandle)
	// SubmitAuthorization stores one player's authorization for a pending match.
	SubmitAuthorization(ctx context.Context, matchID, player, rawEntry string, from dmn.ConnectionHandle) error
}

// MatchmakerStats exposes read-only views for the operator API.
type MatchmakerStats interface {
	QueueLen() int
	QueuedAddresses() []string
	ActiveMatches() []string
}
