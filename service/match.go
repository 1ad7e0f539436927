package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/go-playground/validator/v10"
)

const (
	defaultAuthTimeout  = 60 * time.Second
	defaultPollAttempts = 5
	defaultPollInterval = 2 * time.Second
	defaultLockName     = "wager:submit_lock"
	defaultSaveTimeout  = 2 * time.Second
	supersedeBackoff    = time.Millisecond

	fnBalance = "balance"
	fnEngage  = "engage"
	fnWager   = "wager"
)

// Player facing error messages.
const (
	msgBalanceCheckFailed = "Balance check failed."
	msgInsufficientFunds  = "Insufficient funds, please Deposit more."
	msgSimulationFailed   = "Match simulation failed."
	msgMatchInProgress    = "Match already in progress."
	msgMatchNotFound      = "Match not found."
	msgInvalidEntry       = "Invalid authorization entry."
	msgPlayerNotInMatch   = "Player not in match."
	msgContractFailed     = "Smart contract failed."
	msgAuthTimedOut       = "Authorization timed out."
)

var (
	ErrMissingDependency  = errors.New("missing dependency")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSimulationFailed   = errors.New("simulation failed")
	ErrUnexpectedResult   = errors.New("unexpected simulation result")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrPollExhausted      = errors.New("transaction status polling exhausted")
)

// Options tunes the matchmaker.
type Options struct {
	// MinFunds is the contract balance a player needs to be paired.
	MinFunds int64

	// AuthTimeout bounds how long a match waits for both authorizations.
	AuthTimeout time.Duration

	// PollAttempts and PollInterval bound the wait for a submitted transaction.
	PollAttempts int
	PollInterval time.Duration

	// LockName is the shared lock taken around each on-chain commit.
	LockName string
}

// Config holds the matchmaker dependencies.
type Config struct {
	Ledger   i.Ledger
	Notifier i.Notifier
	Logger   i.Logger
	Repo     i.MatchRepo // optional
	Locker   i.Locker    // optional, defaults to a process-local locker
	Options  *Options
}

// Matchmaker pairs queued players and coordinates the two-party on-chain commit of each match.
// The queue and the active match table share one lock that is never held across a ledger call.
type Matchmaker struct {
	ledger   i.Ledger
	notifier i.Notifier
	logger   i.Logger
	repo     i.MatchRepo
	locker   i.Locker
	validate *validator.Validate
	opts     *Options

	mu       sync.Mutex
	queue    *MatchQueue
	matches  map[string]*activeMatch
	draining bool
}

// activeMatch is a match in the active table. mu serializes authorization storage, finalization
// and expiry. finalizing is set under mu once both players have authorized and never cleared.
type activeMatch struct {
	*dmn.Match
	mu         sync.Mutex
	finalizing atomic.Bool
}

// NewMatchmaker creates a Matchmaker from c, filling unset options with defaults.
func NewMatchmaker(c *Config) (*Matchmaker, error) {
	if c == nil || c.Ledger == nil || c.Notifier == nil || c.Logger == nil {
		return nil, fmt.Errorf("%w: ledger, notifier and logger are required", ErrMissingDependency)
	}

	opts := c.Options
	if opts == nil {
		opts = &Options{}
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = defaultAuthTimeout
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = defaultPollAttempts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.LockName == "" {
		opts.LockName = defaultLockName
	}

	locker := c.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}

	return &Matchmaker{
		ledger:   c.Ledger,
		notifier: c.Notifier,
		logger:   c.Logger,
		repo:     c.Repo,
		locker:   locker,
		validate: validator.New(),
		opts:     opts,
		queue:    NewMatchQueue(),
		matches:  make(map[string]*activeMatch),
	}, nil
}

// Join validates and queues an entrant, then runs pairing attempts while at least two players wait.
// A repeated join from a queued address only rebinds its connection.
func (mm *Matchmaker) Join(ctx context.Context, address, username string, conn dmn.ConnectionHandle) dmn.JoinOutcome {
	req, err := mm.parseJoin(address, username, conn)
	if err != nil {
		mm.logger.Warning(fmt.Sprintf("Invalid join from %s: %s", conn, err))
		return dmn.Invalid
	}

	mm.mu.Lock()
	added := mm.queue.Add(req)
	mm.mu.Unlock()

	if !added {
		mm.logger.Warning(fmt.Sprintf("Player %s already in queue, connection updated", req))
		return dmn.AlreadyQueued
	}

	mm.logger.Info(fmt.Sprintf("Player %s added to queue", req))
	mm.drain(context.WithoutCancel(ctx))
	return dmn.Joined
}

func (mm *Matchmaker) parseJoin(address, username string, conn dmn.ConnectionHandle) (dmn.JoinRequest, error) {
	payload := dmn.JoinPayload{Address: address, Username: username}
	if err := mm.validate.Struct(payload); err != nil {
		return dmn.JoinRequest{}, fmt.Errorf("%w: %s", dmn.ErrInvalidJoin, err)
	}
	if !mm.ledger.ValidateAddress(address) {
		return dmn.JoinRequest{}, fmt.Errorf("%w: malformed address %q", dmn.ErrInvalidJoin, address)
	}

	return dmn.JoinRequest{
		Address:     address,
		DisplayName: username,
		Connection:  conn,
	}, nil
}

// Leave removes queue entries bound to conn. Players already paired are unaffected.
func (mm *Matchmaker) Leave(conn dmn.ConnectionHandle) {
	mm.mu.Lock()
	removed := mm.queue.RemoveConnection(conn)
	mm.mu.Unlock()

	for _, entry := range removed {
		mm.logger.Info(fmt.Sprintf("Removed player %s from queue", entry.Request))
	}
}

// drain runs pairing attempts until fewer than two players wait. Only one drain runs at a
// time; a join that finds one running leaves its entrant to it.
func (mm *Matchmaker) drain(ctx context.Context) {
	mm.mu.Lock()
	if mm.draining {
		mm.mu.Unlock()
		return
	}
	mm.draining = true
	mm.mu.Unlock()

	for {
		mm.mu.Lock()
		if mm.queue.Len() < dmn.PartyCount {
			mm.draining = false
			mm.mu.Unlock()
			return
		}
		first, _ := mm.queue.PopFront()
		mm.mu.Unlock()

		mm.pair(ctx, first)
	}
}

// pair runs one pairing attempt starting from the oldest entrant.
func (mm *Matchmaker) pair(ctx context.Context, first dmn.QueueEntry) {
	if err := mm.preflight(ctx, first.Request); err != nil {
		mm.logger.Warning(fmt.Sprintf("Dropping %s from queue: %s", first.Request, err))
		return
	}

	second, ok := mm.popOpponent(&first)
	if !ok {
		mm.mu.Lock()
		mm.queue.PushFront(first)
		mm.mu.Unlock()
		return
	}

	if err := mm.preflight(ctx, second.Request); err != nil {
		mm.logger.Warning(fmt.Sprintf("Dropping %s from queue: %s", second.Request, err))
		mm.mu.Lock()
		mm.queue.PushFront(first)
		mm.mu.Unlock()
		return
	}

	mm.createMatch(ctx, first.Request, second.Request)
}

// popOpponent pops the next entrant for first. An entry for first's own address means the
// player rejoined while being checked; it only refreshes first's connection.
func (mm *Matchmaker) popOpponent(first *dmn.QueueEntry) (dmn.QueueEntry, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for {
		next, ok := mm.queue.PopFront()
		if !ok {
			return dmn.QueueEntry{}, false
		}
		if next.Address() != first.Address() {
			return next, true
		}
		first.Request.Connection = next.Request.Connection
	}
}

// preflight checks that the player holds at least the minimum funds in the contract.
// The player is notified of any failure.
func (mm *Matchmaker) preflight(ctx context.Context, req dmn.JoinRequest) error {
	inv, err := mm.ledger.BuildInvocation(ctx, fnBalance, []string{req.Address}, nil)
	if err != nil {
		mm.notifyError(req.Connection, "", msgBalanceCheckFailed, err.Error())
		return fmt.Errorf("building balance query: %w", err)
	}

	sim, err := mm.ledger.Simulate(ctx, inv)
	if err != nil {
		mm.notifyError(req.Connection, "", msgBalanceCheckFailed, err.Error())
		return fmt.Errorf("simulating balance query: %w", err)
	}

	if sim.Failed() {
		mm.notifyError(req.Connection, "", msgBalanceCheckFailed, sim.Error)
		return fmt.Errorf("%w: %s", ErrSimulationFailed, sim.Error)
	}

	if len(sim.Results) == 0 || sim.Results[0].Value == "" {
		mm.notifyError(req.Connection, "", msgBalanceCheckFailed, "")
		return fmt.Errorf("%w: balance query returned no value", ErrUnexpectedResult)
	}

	balance, err := mm.ledger.DecodeAmount(sim.Results[0].Value)
	if err != nil {
		mm.notifyError(req.Connection, "", msgBalanceCheckFailed, err.Error())
		return fmt.Errorf("decoding balance: %w", err)
	}

	mm.logger.Debug(fmt.Sprintf("%s balance: %d", dmn.ShortAddress(req.Address), balance))
	if balance < mm.opts.MinFunds {
		mm.notifyError(req.Connection, "", msgInsufficientFunds, "")
		return fmt.Errorf("%w: %d < %d", ErrInsufficientFunds, balance, mm.opts.MinFunds)
	}

	return nil
}

// createMatch simulates the unauthorized engage call, registers the pending match and routes
// each address-bound authorization entry to its player.
func (mm *Matchmaker) createMatch(ctx context.Context, first, second dmn.JoinRequest) {
	match := dmn.NewMatch(first, second)
	conns := match.Connections()

	inv, err := mm.ledger.BuildInvocation(ctx, fnEngage, match.Addresses(), nil)
	if err != nil {
		mm.logger.Warning(fmt.Sprintf("Building engage for %s failed: %s", match.ID, err))
		mm.notifyError(conns[0], "", msgSimulationFailed, "", conns[1])
		return
	}

	sim, err := mm.ledger.Simulate(ctx, inv)
	if err != nil {
		mm.logger.Warning(fmt.Sprintf("Simulation failed for %s: %s", match.ID, err))
		mm.notifyError(conns[0], "", msgSimulationFailed, "", conns[1])
		return
	}

	if sim.Failed() || len(sim.Results) != 1 {
		mm.logger.Warning(fmt.Sprintf("Simulation failed for %s: %q (%d results)", match.ID, sim.Error, len(sim.Results)))
		reason := sim.Error
		if reason == "" {
			reason = ErrUnexpectedResult.Error()
		}
		mm.notifyError(conns[0], "", reason, "", conns[1])
		return
	}

	if err := mm.register(match); err != nil {
		mm.logger.Warning(fmt.Sprintf("Not registering %s: %s", match.ID, err))
		mm.notifyError(conns[0], match.ID, msgMatchInProgress, "", conns[1])
		return
	}

	mm.routeAuthRequests(match, sim.Results[0].Auth)
	mm.logger.Info(fmt.Sprintf("Match %s created between %s and %s", match.ID, first, second))
}

// register inserts match into the active table and arms its authorization timer. An earlier
// match with the same id that is still awaiting authorization is superseded, one that has
// already ended is replaced, and one being finalized blocks the new pairing.
func (mm *Matchmaker) register(match *dmn.Match) error {
	if prev, ok := mm.lookup(match.ID); ok {
		if err := mm.supersede(prev); err != nil {
			return err
		}
	}

	am := &activeMatch{Match: match}
	mm.mu.Lock()
	mm.matches[match.ID] = am
	mm.mu.Unlock()

	am.mu.Lock()
	am.SetTimer(time.AfterFunc(mm.opts.AuthTimeout, func() { mm.expire(am) }))
	am.mu.Unlock()
	return nil
}

// supersede expires prev unless it is being finalized. The match lock is only held briefly
// by anything other than a finalization, so it is waited for until finalizing is observed.
func (mm *Matchmaker) supersede(prev *activeMatch) error {
	for !prev.mu.TryLock() {
		if prev.finalizing.Load() {
			return fmt.Errorf("match %s is being finalized", prev.ID)
		}
		time.Sleep(supersedeBackoff)
	}
	superseded := prev.Expire()
	state := prev.State
	prev.mu.Unlock()

	switch {
	case superseded:
		mm.logger.Info(fmt.Sprintf("Match %s superseded by a new pairing", prev.ID))
	case !state.Terminal():
		return fmt.Errorf("match %s is %s", prev.ID, state)
	}
	return nil
}

// routeAuthRequests sends each player the authorization entry bound to their address.
func (mm *Matchmaker) routeAuthRequests(match *dmn.Match, rawEntries []string) {
	pending := make(map[string]dmn.ConnectionHandle, dmn.PartyCount)
	for _, p := range match.Players {
		pending[p.Address] = p.Connection
	}

	for _, raw := range rawEntries {
		entry, err := mm.ledger.DecodeAuthEntry(raw)
		if err != nil {
			mm.logger.Warning(fmt.Sprintf("Undecodable auth entry for %s: %s", match.ID, err))
			continue
		}
		if entry.Kind != dmn.CredentialAddress {
			continue
		}

		conn, ok := pending[entry.Address]
		if !ok {
			mm.logger.Warning(fmt.Sprintf("Unknown auth entry %s: %s", entry.Address, raw))
			continue
		}
		delete(pending, entry.Address)

		mm.notifier.Send(dmn.EventAuthRequest, dmn.AuthRequestPayload{
			MatchID: match.ID,
			Entry:   raw,
		}, conn)
	}

	for addr := range pending {
		mm.logger.Warning(fmt.Sprintf("No auth entry for %s in %s", dmn.ShortAddress(addr), match.ID))
	}
}

// lookup returns the active match with id.
func (mm *Matchmaker) lookup(id string) (*activeMatch, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	m, ok := mm.matches[id]
	return m, ok
}

// removeMatch drops match from the active table unless a newer pairing replaced it.
func (mm *Matchmaker) removeMatch(match *activeMatch) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if cur, ok := mm.matches[match.ID]; ok && cur == match {
		delete(mm.matches, match.ID)
	}
}

func (mm *Matchmaker) notifyError(to dmn.ConnectionHandle, matchID, msg, details string, others ...dmn.ConnectionHandle) {
	mm.notifier.Send(dmn.EventMatchError, dmn.MatchErrorPayload{
		MatchID: matchID,
		Error:   msg,
		Details: details,
	}, append([]dmn.ConnectionHandle{to}, others...)...)
}

// QueueLen returns the number of waiting players.
func (mm *Matchmaker) QueueLen() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.queue.Len()
}

// QueuedAddresses returns waiting addresses, oldest first.
func (mm *Matchmaker) QueuedAddresses() []string {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.queue.Addresses()
}

// ActiveMatches returns the ids of matches still in the active table.
func (mm *Matchmaker) ActiveMatches() []string {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	ids := make([]string, 0, len(mm.matches))
	for id := range mm.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
