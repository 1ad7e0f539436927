package i

import (
	"context"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

// Ledger is the RPC service the matchmaker uses to build, simulate and commit contract invocations.
// A returned error means the call itself failed (transport or RPC); application-level
// simulation failures are reported through Simulation.Error.
type Ledger interface {
	// ValidateAddress reports whether s is a syntactically valid account public key.
	ValidateAddress(s string) bool

	// BuildInvocation builds a call of the contract function fn with address arguments,
	// optionally carrying authorization entries.
	BuildInvocation(ctx context.Context, fn string, args []string, auth []dmn.AuthEntry) (*dmn.Invocation, error)

	Simulate(ctx context.Context, inv *dmn.Invocation) (*dmn.Simulation, error)
	Prepare(ctx context.Context, inv *dmn.Invocation, sim *dmn.Simulation) (*dmn.PreparedTransaction, error)

	// Sign signs the prepared transaction with the operator key.
	Sign(ptx *dmn.PreparedTransaction) error
	Submit(ctx context.Context, ptx *dmn.PreparedTransaction) (*dmn.Submission, error)
	Poll(ctx context.Context, hash string) (*dmn.TransactionStatus, error)

	DecodeAuthEntry(raw string) (dmn.AuthEntry, error)
	// DecodeAmount decodes an integer return value such as a balance or the wager.
	DecodeAmount(value string) (int64, error)
	// DecodeReturnValue extracts the address returned by a committed transaction.
	DecodeReturnValue(resultMeta string) (string, error)
}
