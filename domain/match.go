// Package domain holds the data model shared by the matchmaker, the auth coordinator and the adapters.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PartyCount is the number of players in every match.
const PartyCount = 2

// Match errors.
var (
	ErrInvalidJoin   = errors.New("invalid join")
	ErrMatchNotFound = errors.New("match not found")
	ErrUnknownPlayer = errors.New("player not in match")
	ErrNotAwaiting   = errors.New("match is not awaiting authorization")
)

// ConnectionHandle identifies one realtime connection.
type ConnectionHandle = uuid.UUID

// JoinRequest is a validated request to enter the waiting queue.
// Two requests are the same entrant when their addresses are equal.
type JoinRequest struct {
	Address     string
	DisplayName string
	Connection  ConnectionHandle
}

func (j JoinRequest) String() string {
	short := j.Address
	if len(short) > 6 {
		short = short[:6]
	}
	return fmt.Sprintf("<Join %s %s...>", j.DisplayName, short)
}

// QueueEntry associates a queued entrant with its current connection.
type QueueEntry struct {
	Request  JoinRequest
	JoinedAt time.Time
}

// Address returns the identity the queue is keyed by.
func (q QueueEntry) Address() string {
	return q.Request.Address
}

// MatchID derives the match identifier from the two addresses in dequeue order.
func MatchID(first, second string) string {
	return first + "|" + second
}

// MatchState is the lifecycle position of a Match.
type MatchState string

const (
	StateAwaiting   MatchState = "awaiting"
	StateFinalizing MatchState = "finalizing"
	StateCompleted  MatchState = "completed"
	StateFailed     MatchState = "failed"
	StateExpired    MatchState = "expired"
)

// Terminal reports whether no further transition can happen.
func (s MatchState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateExpired
}

// Match is a pairing awaiting (or going through) on-chain finalization.
// It is not safe for concurrent use.
type Match struct {
	ID        string
	Players   [PartyCount]JoinRequest
	CreatedAt time.Time

	State          MatchState
	Authorizations map[string]AuthEntry
	timer          *time.Timer
}

// NewMatch creates a match awaiting authorization from both players, in dequeue order.
func NewMatch(first, second JoinRequest) *Match {
	return &Match{
		ID:             MatchID(first.Address, second.Address),
		Players:        [PartyCount]JoinRequest{first, second},
		CreatedAt:      time.Now(),
		State:          StateAwaiting,
		Authorizations: make(map[string]AuthEntry, PartyCount),
	}
}

// HasPlayer reports whether address is one of the match's players.
func (m *Match) HasPlayer(address string) bool {
	for _, p := range m.Players {
		if p.Address == address {
			return true
		}
	}
	return false
}

// Connections returns the players' connection handles in player order.
func (m *Match) Connections() []ConnectionHandle {
	return []ConnectionHandle{m.Players[0].Connection, m.Players[1].Connection}
}

// Usernames returns the players' display names in player order.
func (m *Match) Usernames() []string {
	return []string{m.Players[0].DisplayName, m.Players[1].DisplayName}
}

// Addresses returns the players' addresses in player order.
func (m *Match) Addresses() []string {
	return []string{m.Players[0].Address, m.Players[1].Address}
}

// Authorize stores entry for address, overwriting any earlier entry from the same player.
// It returns true when every player has authorized and the match moved to finalizing.
func (m *Match) Authorize(address string, entry AuthEntry) (bool, error) {
	if m.State != StateAwaiting {
		return false, ErrNotAwaiting
	}
	if !m.HasPlayer(address) {
		return false, ErrUnknownPlayer
	}

	m.Authorizations[address] = entry
	if len(m.Authorizations) < PartyCount {
		return false, nil
	}

	m.State = StateFinalizing
	m.stopTimer()
	return true, nil
}

// OrderedAuthorizations returns the stored entries in player order.
func (m *Match) OrderedAuthorizations() ([]AuthEntry, error) {
	entries := make([]AuthEntry, 0, PartyCount)
	for _, p := range m.Players {
		entry, ok := m.Authorizations[p.Address]
		if !ok {
			return nil, fmt.Errorf("missing authorization for %s", p.Address)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetTimer attaches the authorization wait timer.
func (m *Match) SetTimer(t *time.Timer) {
	m.timer = t
}

func (m *Match) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
	}
}

// Expire moves an awaiting match to expired.
func (m *Match) Expire() bool {
	if m.State != StateAwaiting {
		return false
	}
	m.State = StateExpired
	return true
}

// Resolve records the finalization outcome.
func (m *Match) Resolve(ok bool) {
	m.stopTimer()
	if ok {
		m.State = StateCompleted
		return
	}
	m.State = StateFailed
}

// ShortAddress trims a public key for log lines.
func ShortAddress(address string) string {
	if len(address) <= 8 {
		return address
	}
	return address[:8] + ".."
}
