package domain

import (
	"errors"
	"time"
)

// PlayerRecord is the stored view of one match participant.
type PlayerRecord struct {
	Address  string `bson:"address" json:"address"`
	Username string `bson:"username" json:"username"`
}

// MatchRecord is the persisted outcome of a match.
type MatchRecord struct {
	ID          string         `bson:"_id" json:"match_id"`
	Players     []PlayerRecord `bson:"players" json:"players"`
	State       MatchState     `bson:"state" json:"state"`
	FirstPlayer string         `bson:"firstPlayer,omitempty" json:"first_player,omitempty"`
	TxHash      string         `bson:"txHash,omitempty" json:"tx_hash,omitempty"`
	Error       string         `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time      `bson:"createdAt" json:"created_at"`
	FinishedAt  time.Time      `bson:"finishedAt" json:"finished_at"`
}

// NewMatchRecord snapshots m.
func NewMatchRecord(m *Match) *MatchRecord {
	players := make([]PlayerRecord, 0, len(m.Players))
	for _, p := range m.Players {
		players = append(players, PlayerRecord{Address: p.Address, Username: p.DisplayName})
	}
	return &MatchRecord{
		ID:         m.ID,
		Players:    players,
		State:      m.State,
		CreatedAt:  m.CreatedAt,
		FinishedAt: time.Now(),
	}
}

// ErrRecordNotFound is returned when no match record has the requested id.
var ErrRecordNotFound = errors.New("match record not found")
