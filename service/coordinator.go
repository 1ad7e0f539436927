package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

// SubmitAuthorization stores a player's authorization entry for a pending match. The second
// distinct authorization finalizes the match on the calling goroutine.
// Errors are reported to the sender only.
func (mm *Matchmaker) SubmitAuthorization(ctx context.Context, matchID, player, rawEntry string, from dmn.ConnectionHandle) error {
	match, ok := mm.lookup(matchID)
	if !ok {
		mm.logger.Error(fmt.Sprintf("Match ID %s not found", matchID))
		mm.notifyError(from, "", msgMatchNotFound, "")
		return fmt.Errorf("%w: %s", dmn.ErrMatchNotFound, matchID)
	}

	entry, err := mm.ledger.DecodeAuthEntry(rawEntry)
	if err != nil {
		mm.logger.Warning(fmt.Sprintf("Undecodable auth entry from %s for %s: %s", dmn.ShortAddress(player), matchID, err))
		mm.notifyError(from, matchID, msgInvalidEntry, err.Error())
		return fmt.Errorf("decoding auth entry: %w", err)
	}

	match.mu.Lock()
	defer match.mu.Unlock()

	ready, err := match.Authorize(player, entry)
	switch {
	case errors.Is(err, dmn.ErrNotAwaiting) && match.State.Terminal():
		mm.logger.Error(fmt.Sprintf("Match ID %s already %s", matchID, match.State))
		mm.notifyError(from, "", msgMatchNotFound, "")
		return fmt.Errorf("%w: %s", dmn.ErrMatchNotFound, matchID)
	case errors.Is(err, dmn.ErrUnknownPlayer):
		mm.logger.Warning(fmt.Sprintf("Auth from %s is not for a player of %s", dmn.ShortAddress(player), matchID))
		mm.notifyError(from, matchID, msgPlayerNotInMatch, "")
		return err
	case err != nil:
		mm.logger.Warning(fmt.Sprintf("Ignoring auth from %s for %s: %s", dmn.ShortAddress(player), matchID, err))
		return err
	case !ready:
		mm.logger.Info(fmt.Sprintf("Player %s authorized match %s", dmn.ShortAddress(player), matchID))
		return nil
	}

	match.finalizing.Store(true)
	mm.logger.Info(fmt.Sprintf("Creating on-chain match between players in %s", matchID))
	mm.finalize(context.WithoutCancel(ctx), match)
	return nil
}

// finalize commits a fully authorized match, notifies both players of the outcome and removes
// the match from the active table. The caller holds the match lock.
func (mm *Matchmaker) finalize(ctx context.Context, match *activeMatch) {
	defer mm.removeMatch(match)

	firstPlayer, hash, err := mm.commit(ctx, match.Match)
	match.Resolve(err == nil)

	record := dmn.NewMatchRecord(match.Match)
	record.TxHash = hash
	conns := match.Connections()

	if err != nil {
		mm.logger.Error(fmt.Sprintf("Match %s smart contract failed: %s", match.ID, err))
		record.Error = err.Error()
		mm.notifyError(conns[0], match.ID, msgContractFailed, "", conns[1])
	} else {
		mm.logger.Info(fmt.Sprintf("Match %s started, %s goes first", match.ID, dmn.ShortAddress(firstPlayer)))
		record.FirstPlayer = firstPlayer
		mm.notifier.Send(dmn.EventMatchStart, dmn.MatchStartPayload{
			MatchID:     match.ID,
			FirstPlayer: firstPlayer,
			Users:       match.Usernames(),
		}, conns...)
	}

	mm.saveRecord(record)
}

// commit runs the authorized simulate, prepare, sign, submit and poll sequence and returns the
// address that moves first along with the transaction hash.
func (mm *Matchmaker) commit(ctx context.Context, match *dmn.Match) (string, string, error) {
	auths, err := match.OrderedAuthorizations()
	if err != nil {
		return "", "", err
	}

	// Every commit spends the operator account sequence, so building through polling is exclusive.
	unlock, err := mm.locker.Lock(ctx, mm.opts.LockName)
	if err != nil {
		return "", "", fmt.Errorf("acquiring submission lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			mm.logger.Warning(fmt.Sprintf("Releasing submission lock: %s", err))
		}
	}()

	inv, err := mm.ledger.BuildInvocation(ctx, fnEngage, match.Addresses(), auths)
	if err != nil {
		return "", "", fmt.Errorf("building engage: %w", err)
	}

	sim, err := mm.ledger.Simulate(ctx, inv)
	if err != nil {
		return "", "", fmt.Errorf("simulating engage: %w", err)
	}
	if sim.Failed() {
		return "", "", fmt.Errorf("%w: %s", ErrSimulationFailed, sim.Error)
	}

	ptx, err := mm.ledger.Prepare(ctx, inv, sim)
	if err != nil {
		return "", "", fmt.Errorf("preparing engage: %w", err)
	}
	if err := mm.ledger.Sign(ptx); err != nil {
		return "", "", fmt.Errorf("signing engage: %w", err)
	}

	sub, err := mm.ledger.Submit(ctx, ptx)
	if err != nil {
		return "", "", fmt.Errorf("submitting engage: %w", err)
	}
	mm.logger.Debug(fmt.Sprintf("Match %s transaction %s submission status: %s", match.ID, sub.Hash, sub.Status))
	if !sub.Accepted() {
		return "", sub.Hash, fmt.Errorf("%w: %s %s", ErrSubmissionRejected, sub.Status, sub.Error)
	}

	status, err := mm.awaitTransaction(ctx, sub.Hash)
	if err != nil {
		return "", sub.Hash, err
	}

	firstPlayer, err := mm.ledger.DecodeReturnValue(status.ResultMeta)
	if err != nil {
		return "", sub.Hash, fmt.Errorf("decoding engage result: %w", err)
	}
	return firstPlayer, sub.Hash, nil
}

// awaitTransaction polls hash until it reaches a terminal status or the attempts run out.
func (mm *Matchmaker) awaitTransaction(ctx context.Context, hash string) (*dmn.TransactionStatus, error) {
	for attempt := 1; attempt <= mm.opts.PollAttempts; attempt++ {
		status, err := mm.ledger.Poll(ctx, hash)
		switch {
		case err != nil:
			mm.logger.Warning(fmt.Sprintf("Polling %s (attempt %d): %s", hash, attempt, err))
		case status.Status == dmn.TxSuccess:
			return status, nil
		case status.Status == dmn.TxFailed:
			return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, hash)
		default:
			mm.logger.Debug(fmt.Sprintf("Transaction %s status: %s", hash, status.Status))
		}

		if attempt == mm.opts.PollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(mm.opts.PollInterval):
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrPollExhausted, hash, mm.opts.PollAttempts)
}

// expire fails a match whose players did not both authorize in time.
func (mm *Matchmaker) expire(match *activeMatch) {
	match.mu.Lock()
	if !match.Expire() {
		match.mu.Unlock()
		return
	}
	record := dmn.NewMatchRecord(match.Match)
	record.Error = msgAuthTimedOut
	conns := match.Connections()
	match.mu.Unlock()

	mm.logger.Warning(fmt.Sprintf("Match %s timed out awaiting authorization", match.ID))
	mm.notifyError(conns[0], match.ID, msgAuthTimedOut, "", conns[1])
	mm.removeMatch(match)
	mm.saveRecord(record)
}

func (mm *Matchmaker) saveRecord(record *dmn.MatchRecord) {
	if mm.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
	defer cancel()
	if err := mm.repo.Save(ctx, record); err != nil {
		mm.logger.Error(fmt.Sprintf("Saving match record %s: %s", record.ID, err))
	}
}
