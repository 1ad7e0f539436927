package service

import (
	"context"
	"fmt"

	"github.com/beka-birhanu/vinom-wager/service/i"
)

// LoadWager simulates the contract's wager query to learn the cost of one match.
func LoadWager(ctx context.Context, ledger i.Ledger) (int64, error) {
	inv, err := ledger.BuildInvocation(ctx, fnWager, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("building wager query: %w", err)
	}

	sim, err := ledger.Simulate(ctx, inv)
	if err != nil {
		return 0, fmt.Errorf("simulating wager query: %w", err)
	}
	if sim.Failed() {
		return 0, fmt.Errorf("%w: %s", ErrSimulationFailed, sim.Error)
	}
	if len(sim.Results) == 0 || sim.Results[0].Value == "" {
		return 0, fmt.Errorf("%w: wager query returned no value", ErrUnexpectedResult)
	}

	return ledger.DecodeAmount(sim.Results[0].Value)
}
