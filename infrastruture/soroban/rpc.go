package soroban

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rpcclient "github.com/stellar/go/clients/rpcclient"
	protocol "github.com/stellar/go/protocols/rpc"
)

var ErrRPC = errors.New("soroban rpc error")

// rpcClient narrows the Stellar RPC client to the calls the ledger makes and tags every
// failure with ErrRPC.
type rpcClient struct {
	cli *rpcclient.Client
}

func newRPCClient(url string, timeout time.Duration) *rpcClient {
	return &rpcClient{cli: rpcclient.NewClient(url, &http.Client{Timeout: timeout})}
}

func (c *rpcClient) getLedgerEntries(ctx context.Context, keys ...string) (protocol.GetLedgerEntriesResponse, error) {
	res, err := c.cli.GetLedgerEntries(ctx, protocol.GetLedgerEntriesRequest{Keys: keys})
	return res, rpcError("getLedgerEntries", err)
}

func (c *rpcClient) simulateTransaction(ctx context.Context, envelope string) (protocol.SimulateTransactionResponse, error) {
	res, err := c.cli.SimulateTransaction(ctx, protocol.SimulateTransactionRequest{Transaction: envelope})
	return res, rpcError("simulateTransaction", err)
}

func (c *rpcClient) sendTransaction(ctx context.Context, envelope string) (protocol.SendTransactionResponse, error) {
	res, err := c.cli.SendTransaction(ctx, protocol.SendTransactionRequest{Transaction: envelope})
	return res, rpcError("sendTransaction", err)
}

func (c *rpcClient) getTransaction(ctx context.Context, hash string) (protocol.GetTransactionResponse, error) {
	res, err := c.cli.GetTransaction(ctx, protocol.GetTransactionRequest{Hash: hash})
	return res, rpcError("getTransaction", err)
}

func rpcError(method string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrRPC, method, err)
}
