package soroban

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

var testContract = mustEncode(strkey.Encode(strkey.VersionByteContract, make([]byte, 32)))

func mustEncode(s string, err error) string {
	if err != nil {
		panic(err)
	}
	return s
}

func mustBase64(t *testing.T, v interface{}) string {
	t.Helper()
	s, err := xdr.MarshalBase64(v)
	require.NoError(t, err)
	return s
}

func accountAddress(t *testing.T, address string) xdr.ScAddress {
	t.Helper()
	id, err := xdr.AddressToAccountId(address)
	require.NoError(t, err)
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &id}
}

func addressEntryXDR(t *testing.T, address string) string {
	t.Helper()
	return mustBase64(t, xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{
			Type: xdr.SorobanCredentialsTypeSorobanCredentialsAddress,
			Address: &xdr.SorobanAddressCredentials{
				Address:                   accountAddress(t, address),
				Nonce:                     7,
				SignatureExpirationLedger: 100,
				Signature:                 xdr.ScVal{Type: xdr.ScValTypeScvVoid},
			},
		},
		RootInvocation: xdr.SorobanAuthorizedInvocation{
			Function: xdr.SorobanAuthorizedFunction{
				Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
				ContractFn: &xdr.InvokeContractArgs{
					ContractAddress: mustContract(t),
					FunctionName:    "engage",
				},
			},
		},
	})
}

func mustContract(t *testing.T) xdr.ScAddress {
	t.Helper()
	addr, err := contractAddress(testContract)
	require.NoError(t, err)
	return addr
}

func newTestLedger(t *testing.T, url string) (*Ledger, *keypair.Full) {
	t.Helper()
	operator := keypair.MustRandom()
	l, err := New(&Config{
		RPCURL:            url,
		ContractID:        testContract,
		OperatorSecret:    operator.Seed(),
		NetworkPassphrase: network.TestNetworkPassphrase,
		Logger:            nopLogger{},
	})
	require.NoError(t, err)
	return l, operator
}

// fakeRPC answers the Soroban RPC methods with canned results and records the calls it saw.
type fakeRPC struct {
	t        *testing.T
	sequence int64
	results  map[string]interface{}
	calls    []string
	params   map[string]map[string]interface{}
	sync.Mutex
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage        `json:"id"`
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.Lock()
	f.calls = append(f.calls, req.Method)
	f.params[req.Method] = req.Params
	result, ok := f.results[req.Method]
	f.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if ok {
		resp["result"] = result
	} else {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newFakeRPC(t *testing.T) (*fakeRPC, *httptest.Server) {
	f := &fakeRPC{t: t, results: make(map[string]interface{}), params: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRPC) withAccount(t *testing.T, address string, seq int64) {
	id, err := xdr.AddressToAccountId(address)
	require.NoError(t, err)
	entry := mustBase64(t, xdr.LedgerEntryData{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.AccountEntry{AccountId: id, SeqNum: xdr.SequenceNumber(seq)},
	})
	f.results["getLedgerEntries"] = map[string]interface{}{
		"entries":      []map[string]string{{"key": "k", "xdr": entry}},
		"latestLedger": 10,
	}
}

func TestValidateAddress(t *testing.T) {
	l, _ := newTestLedger(t, "http://localhost")

	assert.True(t, l.ValidateAddress(keypair.MustRandom().Address()))
	assert.False(t, l.ValidateAddress(""))
	assert.False(t, l.ValidateAddress("GABC"))
	assert.False(t, l.ValidateAddress(testContract), "contracts cannot play")
}

func TestNew(t *testing.T) {
	_, err := New(&Config{RPCURL: "http://x", NetworkPassphrase: network.TestNetworkPassphrase, Logger: nopLogger{}, OperatorSecret: "bad"})
	assert.Error(t, err)

	_, err = New(&Config{
		RPCURL:            "http://x",
		NetworkPassphrase: network.TestNetworkPassphrase,
		Logger:            nopLogger{},
		OperatorSecret:    keypair.MustRandom().Seed(),
		ContractID:        keypair.MustRandom().Address(),
	})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDecoding(t *testing.T) {
	l, _ := newTestLedger(t, "http://localhost")
	player := keypair.MustRandom().Address()

	t.Run("address bound auth entry", func(t *testing.T) {
		raw := addressEntryXDR(t, player)
		entry, err := l.DecodeAuthEntry(raw)
		require.NoError(t, err)
		assert.Equal(t, dmn.CredentialAddress, entry.Kind)
		assert.Equal(t, player, entry.Address)
		assert.Equal(t, raw, entry.Raw)
	})

	t.Run("source account auth entry", func(t *testing.T) {
		raw := mustBase64(t, xdr.SorobanAuthorizationEntry{
			Credentials: xdr.SorobanCredentials{Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount},
			RootInvocation: xdr.SorobanAuthorizedInvocation{
				Function: xdr.SorobanAuthorizedFunction{
					Type:       xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
					ContractFn: &xdr.InvokeContractArgs{ContractAddress: mustContract(t), FunctionName: "engage"},
				},
			},
		})
		entry, err := l.DecodeAuthEntry(raw)
		require.NoError(t, err)
		assert.Equal(t, dmn.CredentialOther, entry.Kind)
		assert.Empty(t, entry.Address)
	})

	t.Run("garbage auth entry", func(t *testing.T) {
		_, err := l.DecodeAuthEntry("not-xdr")
		assert.Error(t, err)
	})

	t.Run("i128 amount", func(t *testing.T) {
		raw := mustBase64(t, xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &xdr.Int128Parts{Hi: 0, Lo: 1_000_000}})
		n, err := l.DecodeAmount(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), n)
	})

	t.Run("negative i128 amount", func(t *testing.T) {
		raw := mustBase64(t, xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &xdr.Int128Parts{Hi: -1, Lo: ^xdr.Uint64(0)}})
		n, err := l.DecodeAmount(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), n)
	})

	t.Run("oversized i128 amount", func(t *testing.T) {
		raw := mustBase64(t, xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &xdr.Int128Parts{Hi: 1, Lo: 0}})
		_, err := l.DecodeAmount(raw)
		assert.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("non integer amount", func(t *testing.T) {
		b := true
		raw := mustBase64(t, xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b})
		_, err := l.DecodeAmount(raw)
		assert.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("return value address", func(t *testing.T) {
		addr := accountAddress(t, player)
		raw := mustBase64(t, xdr.TransactionMeta{
			V: 3,
			V3: &xdr.TransactionMetaV3{
				SorobanMeta: &xdr.SorobanTransactionMeta{
					ReturnValue: xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr},
				},
			},
		})
		got, err := l.DecodeReturnValue(raw)
		require.NoError(t, err)
		assert.Equal(t, player, got)
	})

	t.Run("return value address in v4 meta", func(t *testing.T) {
		addr := accountAddress(t, player)
		ret := xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}
		raw := mustBase64(t, xdr.TransactionMeta{
			V: 4,
			V4: &xdr.TransactionMetaV4{
				SorobanMeta: &xdr.SorobanTransactionMetaV2{ReturnValue: &ret},
			},
		})
		got, err := l.DecodeReturnValue(raw)
		require.NoError(t, err)
		assert.Equal(t, player, got)
	})

	t.Run("v4 meta without return value", func(t *testing.T) {
		raw := mustBase64(t, xdr.TransactionMeta{V: 4, V4: &xdr.TransactionMetaV4{SorobanMeta: &xdr.SorobanTransactionMetaV2{}}})
		_, err := l.DecodeReturnValue(raw)
		assert.ErrorIs(t, err, ErrNoReturnValue)
	})

	t.Run("contract return value", func(t *testing.T) {
		contract := mustContract(t)
		ret := xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &contract}
		raw := mustBase64(t, xdr.TransactionMeta{V: 4, V4: &xdr.TransactionMetaV4{SorobanMeta: &xdr.SorobanTransactionMetaV2{ReturnValue: &ret}}})
		got, err := l.DecodeReturnValue(raw)
		require.NoError(t, err)
		assert.Equal(t, testContract, got)
	})

	t.Run("meta without soroban section", func(t *testing.T) {
		raw := mustBase64(t, xdr.TransactionMeta{V: 3, V3: &xdr.TransactionMetaV3{}})
		_, err := l.DecodeReturnValue(raw)
		assert.ErrorIs(t, err, ErrNoReturnValue)
	})
}

func TestInvocationLifecycle(t *testing.T) {
	ctx := context.Background()
	rpc, srv := newFakeRPC(t)
	l, operator := newTestLedger(t, srv.URL)
	p1, p2 := keypair.MustRandom().Address(), keypair.MustRandom().Address()

	rpc.withAccount(t, operator.Address(), 41)
	rpc.results["simulateTransaction"] = map[string]interface{}{
		"transactionData": mustBase64(t, xdr.SorobanTransactionData{ResourceFee: 500}),
		"minResourceFee":  "500",
		"results":         []map[string]interface{}{{"auth": []string{addressEntryXDR(t, p1), addressEntryXDR(t, p2)}, "xdr": "AAAAAQ=="}},
		"latestLedger":    12,
	}
	rpc.results["sendTransaction"] = map[string]interface{}{"hash": "abc", "status": "PENDING"}
	rpc.results["getTransaction"] = map[string]interface{}{"status": "NOT_FOUND"}

	inv, err := l.BuildInvocation(ctx, "engage", []string{p1, p2}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(41), inv.Sequence)
	assert.Equal(t, operator.Address(), inv.Source)

	sim, err := l.Simulate(ctx, inv)
	require.NoError(t, err)
	assert.False(t, sim.Failed())
	assert.Equal(t, int64(500), sim.MinResourceFee)
	require.Len(t, sim.Results, 1)
	assert.Len(t, sim.Results[0].Auth, 2)
	assert.Equal(t, inv.Envelope, rpc.params["simulateTransaction"]["transaction"])

	ptx, err := l.Prepare(ctx, inv, sim)
	require.NoError(t, err)
	assert.Equal(t, int64(txnbuild.MinBaseFee+500), ptx.Fee)

	_, err = l.Submit(ctx, ptx)
	assert.Error(t, err, "unsigned transactions are not submitted")

	require.NoError(t, l.Sign(ptx))
	assert.True(t, ptx.Signed)

	generic, err := txnbuild.TransactionFromXDR(ptx.Envelope)
	require.NoError(t, err)
	tx, ok := generic.Transaction()
	require.True(t, ok)
	assert.Len(t, tx.Signatures(), 1)
	assert.Equal(t, int64(42), tx.SequenceNumber())
	op, ok := tx.Operations()[0].(*txnbuild.InvokeHostFunction)
	require.True(t, ok)
	assert.Len(t, op.Auth, 2, "simulated authorizations are attached")
	assert.Equal(t, xdr.ScSymbol("engage"), op.HostFunction.InvokeContract.FunctionName)

	sub, err := l.Submit(ctx, ptx)
	require.NoError(t, err)
	assert.True(t, sub.Accepted())
	assert.Equal(t, "abc", sub.Hash)

	status, err := l.Poll(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, dmn.TxNotFound, status.Status)
	assert.False(t, status.Terminal())
	assert.Equal(t, "abc", rpc.params["getTransaction"]["hash"])
}

func TestRPCErrors(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeRPC(t)
	l, _ := newTestLedger(t, srv.URL)

	_, err := l.BuildInvocation(ctx, "wager", nil, nil)
	assert.ErrorIs(t, err, ErrRPC)

	_, err = l.Poll(ctx, "abc")
	assert.ErrorIs(t, err, ErrRPC)
}

func TestMissingOperatorAccount(t *testing.T) {
	rpc, srv := newFakeRPC(t)
	l, _ := newTestLedger(t, srv.URL)
	rpc.results["getLedgerEntries"] = map[string]interface{}{"entries": []interface{}{}, "latestLedger": 1}

	_, err := l.BuildInvocation(context.Background(), "wager", nil, nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
