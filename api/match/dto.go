// Package matchapi exposes matchmaker state and match history to operators.
package matchapi

import dmn "github.com/beka-birhanu/vinom-wager/domain"

// HealthResponse is the public liveness view.
type HealthResponse struct {
	Status        string `json:"status"`
	Queue         int    `json:"queue"`
	ActiveMatches int    `json:"active_matches"`
	Connections   int    `json:"connections"`
}

// QueueResponse lists waiting addresses in pairing order and pending match ids.
type QueueResponse struct {
	Queue   []string `json:"queue"`
	Matches []string `json:"matches"`
}

// HistoryResponse lists past matches of one player.
type HistoryResponse struct {
	Address string             `json:"address"`
	Matches []*dmn.MatchRecord `json:"matches"`
}
