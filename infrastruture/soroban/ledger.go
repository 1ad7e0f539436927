// Package soroban implements the matchmaker's ledger client on top of the Stellar RPC client.
package soroban

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

const (
	defaultBaseFee     = txnbuild.MinBaseFee
	defaultTxTimeout   = 30 * time.Second
	defaultHTTPTimeout = 10 * time.Second
)

var (
	ErrAccountNotFound = errors.New("operator account not found")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrUnexpectedValue = errors.New("unexpected value type")
	ErrNoReturnValue   = errors.New("transaction meta has no return value")
)

// Config holds the settings for a Ledger.
type Config struct {
	RPCURL            string
	ContractID        string
	OperatorSecret    string
	NetworkPassphrase string
	BaseFee           int64         // inclusion fee in stroops, defaults to the network minimum
	TxTimeout         time.Duration // validity window of built transactions
	HTTPTimeout       time.Duration
	Logger            i.Logger
}

// Ledger invokes one contract on behalf of the operator account.
type Ledger struct {
	rpc        *rpcClient
	contract   xdr.ScAddress
	operator   *keypair.Full
	passphrase string
	baseFee    int64
	txTimeout  int64
	logger     i.Logger
}

// New creates a Ledger for the contract and operator in c.
func New(c *Config) (*Ledger, error) {
	if c.RPCURL == "" || c.NetworkPassphrase == "" || c.Logger == nil {
		return nil, errors.New("rpc url, network passphrase and logger are required")
	}

	operator, err := keypair.ParseFull(c.OperatorSecret)
	if err != nil {
		return nil, fmt.Errorf("parsing operator secret: %w", err)
	}
	contract, err := contractAddress(c.ContractID)
	if err != nil {
		return nil, err
	}

	baseFee := c.BaseFee
	if baseFee < txnbuild.MinBaseFee {
		baseFee = defaultBaseFee
	}
	txTimeout := c.TxTimeout
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	httpTimeout := c.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = defaultHTTPTimeout
	}

	return &Ledger{
		rpc:        newRPCClient(c.RPCURL, httpTimeout),
		contract:   contract,
		operator:   operator,
		passphrase: c.NetworkPassphrase,
		baseFee:    baseFee,
		txTimeout:  int64(txTimeout / time.Second),
		logger:     c.Logger,
	}, nil
}

// ValidateAddress reports whether s is an ed25519 account public key.
func (l *Ledger) ValidateAddress(s string) bool {
	return strkey.IsValidEd25519PublicKey(s)
}

// BuildInvocation builds an unsigned call of fn with address arguments, sourced from the
// operator account at its current sequence.
func (l *Ledger) BuildInvocation(ctx context.Context, fn string, args []string, auth []dmn.AuthEntry) (*dmn.Invocation, error) {
	seq, err := l.accountSequence(ctx)
	if err != nil {
		return nil, err
	}

	inv := &dmn.Invocation{
		Function: fn,
		Args:     args,
		Auth:     auth,
		Source:   l.operator.Address(),
		Sequence: seq,
	}

	entries, err := decodeEntries(authRaw(auth))
	if err != nil {
		return nil, err
	}
	tx, err := l.buildTx(inv, 0, nil, entries)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", fn, err)
	}
	if inv.Envelope, err = tx.Base64(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fn, err)
	}

	l.logger.Debug(fmt.Sprintf("Built %s invocation at sequence %d", fn, seq))
	return inv, nil
}

func (l *Ledger) Simulate(ctx context.Context, inv *dmn.Invocation) (*dmn.Simulation, error) {
	res, err := l.rpc.simulateTransaction(ctx, inv.Envelope)
	if err != nil {
		return nil, err
	}

	sim := &dmn.Simulation{
		Error:           res.Error,
		TransactionData: res.TransactionDataXDR,
		MinResourceFee:  res.MinResourceFee,
		LatestLedger:    int64(res.LatestLedger),
	}
	for _, r := range res.Results {
		var out dmn.SimulationResult
		if r.ReturnValueXDR != nil {
			out.Value = *r.ReturnValueXDR
		}
		if r.AuthXDR != nil {
			out.Auth = *r.AuthXDR
		}
		sim.Results = append(sim.Results, out)
	}
	return sim, nil
}

// Prepare attaches the simulated footprint and resource fee to inv. When inv carries no
// authorization entries the ones recorded by the simulation are used.
func (l *Ledger) Prepare(_ context.Context, inv *dmn.Invocation, sim *dmn.Simulation) (*dmn.PreparedTransaction, error) {
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(sim.TransactionData, &data); err != nil {
		return nil, fmt.Errorf("decoding transaction data: %w", err)
	}

	raw := authRaw(inv.Auth)
	if len(raw) == 0 && len(sim.Results) > 0 {
		raw = sim.Results[0].Auth
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, err
	}

	tx, err := l.buildTx(inv, sim.MinResourceFee, &data, entries)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", inv.Function, err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return nil, err
	}

	return &dmn.PreparedTransaction{
		Invocation: inv,
		Fee:        tx.BaseFee(),
		Envelope:   envelope,
	}, nil
}

// Sign signs ptx with the operator key for the configured network.
func (l *Ledger) Sign(ptx *dmn.PreparedTransaction) error {
	generic, err := txnbuild.TransactionFromXDR(ptx.Envelope)
	if err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		return errors.New("envelope is not a plain transaction")
	}

	if tx, err = tx.Sign(l.passphrase, l.operator); err != nil {
		return fmt.Errorf("signing: %w", err)
	}
	if ptx.Envelope, err = tx.Base64(); err != nil {
		return err
	}
	ptx.Signed = true
	return nil
}

func (l *Ledger) Submit(ctx context.Context, ptx *dmn.PreparedTransaction) (*dmn.Submission, error) {
	if !ptx.Signed {
		return nil, errors.New("transaction is not signed")
	}

	res, err := l.rpc.sendTransaction(ctx, ptx.Envelope)
	if err != nil {
		return nil, err
	}
	return &dmn.Submission{
		Hash:   res.Hash,
		Status: dmn.SubmitStatus(res.Status),
		Error:  res.ErrorResultXDR,
	}, nil
}

func (l *Ledger) Poll(ctx context.Context, hash string) (*dmn.TransactionStatus, error) {
	res, err := l.rpc.getTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &dmn.TransactionStatus{
		Status:     dmn.TxStatus(res.Status),
		ResultMeta: res.ResultMetaXDR,
		Ledger:     int64(res.Ledger),
	}, nil
}

// DecodeAuthEntry decodes a base64 authorization entry and extracts the address it binds.
func (l *Ledger) DecodeAuthEntry(raw string) (dmn.AuthEntry, error) {
	var entry xdr.SorobanAuthorizationEntry
	if err := xdr.SafeUnmarshalBase64(raw, &entry); err != nil {
		return dmn.AuthEntry{}, fmt.Errorf("decoding auth entry: %w", err)
	}

	out := dmn.AuthEntry{Raw: raw, Kind: dmn.CredentialOther}
	if entry.Credentials.Type != xdr.SorobanCredentialsTypeSorobanCredentialsAddress || entry.Credentials.Address == nil {
		return out, nil
	}

	addr, err := scAddressString(entry.Credentials.Address.Address)
	if err != nil {
		return dmn.AuthEntry{}, err
	}
	out.Kind = dmn.CredentialAddress
	out.Address = addr
	return out, nil
}

// DecodeAmount decodes an integer ScVal. 128-bit values must fit in an int64.
func (l *Ledger) DecodeAmount(value string) (int64, error) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(value, &v); err != nil {
		return 0, fmt.Errorf("decoding amount: %w", err)
	}

	switch v.Type {
	case xdr.ScValTypeScvI128:
		parts := v.MustI128()
		n := new(big.Int).Lsh(big.NewInt(int64(parts.Hi)), 64)
		n.Add(n, new(big.Int).SetUint64(uint64(parts.Lo)))
		if !n.IsInt64() {
			return 0, fmt.Errorf("%w: amount %s overflows int64", ErrUnexpectedValue, n)
		}
		return n.Int64(), nil
	case xdr.ScValTypeScvI64:
		return int64(v.MustI64()), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnexpectedValue, v.Type)
}

// DecodeReturnValue extracts the address a committed invocation returned from its meta.
// Both the V3 and V4 meta layouts are understood.
func (l *Ledger) DecodeReturnValue(resultMeta string) (string, error) {
	var meta xdr.TransactionMeta
	if err := xdr.SafeUnmarshalBase64(resultMeta, &meta); err != nil {
		return "", fmt.Errorf("decoding result meta: %w", err)
	}

	var ret *xdr.ScVal
	if v4, ok := meta.GetV4(); ok && v4.SorobanMeta != nil {
		ret = v4.SorobanMeta.ReturnValue
	} else if v3, ok := meta.GetV3(); ok && v3.SorobanMeta != nil {
		ret = &v3.SorobanMeta.ReturnValue
	}
	if ret == nil {
		return "", ErrNoReturnValue
	}

	addr, ok := ret.GetAddress()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedValue, ret.Type)
	}
	return scAddressString(addr)
}

func (l *Ledger) accountSequence(ctx context.Context) (int64, error) {
	accountID, err := xdr.AddressToAccountId(l.operator.Address())
	if err != nil {
		return 0, err
	}
	key, err := xdr.MarshalBase64(xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: accountID},
	})
	if err != nil {
		return 0, err
	}

	res, err := l.rpc.getLedgerEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(res.Entries) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, l.operator.Address())
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(res.Entries[0].DataXDR, &data); err != nil {
		return 0, fmt.Errorf("decoding account entry: %w", err)
	}
	account, ok := data.GetAccount()
	if !ok {
		return 0, fmt.Errorf("%w: ledger entry is %s", ErrUnexpectedValue, data.Type)
	}
	return int64(account.SeqNum), nil
}

func (l *Ledger) buildTx(inv *dmn.Invocation, resourceFee int64, data *xdr.SorobanTransactionData, auth []xdr.SorobanAuthorizationEntry) (*txnbuild.Transaction, error) {
	args := make([]xdr.ScVal, 0, len(inv.Args))
	for _, a := range inv.Args {
		v, err := addressVal(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: l.contract,
				FunctionName:    xdr.ScSymbol(inv.Function),
				Args:            args,
			},
		},
		Auth: auth,
	}
	if data != nil {
		op.Ext = xdr.TransactionExt{V: 1, SorobanData: data}
	}

	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: inv.Source, Sequence: inv.Sequence},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              l.baseFee + resourceFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(l.txTimeout)},
	})
}

func authRaw(auth []dmn.AuthEntry) []string {
	raw := make([]string, 0, len(auth))
	for _, a := range auth {
		raw = append(raw, a.Raw)
	}
	return raw
}

func decodeEntries(raw []string) ([]xdr.SorobanAuthorizationEntry, error) {
	var entries []xdr.SorobanAuthorizationEntry
	for _, r := range raw {
		var e xdr.SorobanAuthorizationEntry
		if err := xdr.SafeUnmarshalBase64(r, &e); err != nil {
			return nil, fmt.Errorf("decoding auth entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func addressVal(s string) (xdr.ScVal, error) {
	var addr xdr.ScAddress
	switch {
	case strkey.IsValidEd25519PublicKey(s):
		accountID, err := xdr.AddressToAccountId(s)
		if err != nil {
			return xdr.ScVal{}, err
		}
		addr = xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &accountID}
	default:
		var err error
		if addr, err = contractAddress(s); err != nil {
			return xdr.ScVal{}, err
		}
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

func contractAddress(id string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, id)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, id)
	}
	var cid xdr.ContractId
	copy(cid[:], raw)
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &cid}, nil
}

func scAddressString(a xdr.ScAddress) (string, error) {
	switch a.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		return a.AccountId.Address(), nil
	case xdr.ScAddressTypeScAddressTypeContract:
		return strkey.Encode(strkey.VersionByteContract, a.ContractId[:])
	}
	return "", fmt.Errorf("%w: address type %s", ErrUnexpectedValue, a.Type)
}
