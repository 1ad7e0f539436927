package domain

// Wire event names.
const (
	EventJoin         = "join"
	EventAuthResponse = "auth_response"
	EventAuthRequest  = "auth_request"
	EventMatchStart   = "match_start"
	EventMatchError   = "match_error"
)

// Acknowledgements for a join event.
const (
	AckJoined      = "joined"
	AckInQueue     = "in queue"
	AckInvalidJoin = "invalid join"
)

// JoinOutcome is the result of a join attempt.
type JoinOutcome int

const (
	Joined JoinOutcome = iota
	AlreadyQueued
	Invalid
)

// Ack returns the acknowledgement sent back for the outcome.
func (o JoinOutcome) Ack() string {
	switch o {
	case Joined:
		return AckJoined
	case AlreadyQueued:
		return AckInQueue
	default:
		return AckInvalidJoin
	}
}

// JoinPayload is the client payload of a join event.
type JoinPayload struct {
	Address  string `json:"address" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// AuthResponsePayload is the client payload of an auth_response event.
type AuthResponsePayload struct {
	MatchID string `json:"match_id" validate:"required"`
	Entry   string `json:"entry" validate:"required"`
	Player  string `json:"player" validate:"required"`
}

// AuthRequestPayload asks one player to authorize their entry.
type AuthRequestPayload struct {
	MatchID string `json:"match_id"`
	Entry   string `json:"entry"`
}

// MatchStartPayload announces a match committed on-chain.
type MatchStartPayload struct {
	MatchID     string   `json:"match_id"`
	FirstPlayer string   `json:"first_player"`
	Users       []string `json:"users"`
}

// MatchErrorPayload reports a failure scoped to one entrant or one match.
type MatchErrorPayload struct {
	MatchID string `json:"match_id,omitempty"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
