package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

var errTransport = errors.New("rpc unavailable")

// testAddress builds a well-formed fake public key made of one repeated letter.
func testAddress(c byte) string {
	return "G" + strings.Repeat(string(c), 55)
}

func addressEntry(address string) string {
	return "addr:" + address
}

// fakeLedger encodes values as readable strings: "amount:<n>" for integers, "addr:<G...>" for
// address-bound auth entries, "source" for source-account entries and "first:<G...>" for
// transaction results.
type fakeLedger struct {
	balances map[string]int64
	wager    int64

	balanceTransient int    // number of balance simulations that fail in transport
	engageTransient  int    // number of unauthorized engage simulations that fail in transport
	engageErr        string // application error of the unauthorized engage simulation
	engageResults    int    // result count of the unauthorized engage simulation, 1 when zero
	engageAuth       []string
	finalSimErr      string
	submitStatus     dmn.SubmitStatus
	pollStatuses     []dmn.TxStatus
	firstPlayer      string

	submits   int
	polls     int
	finalAuth [][]dmn.AuthEntry
	sync.Mutex
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:     make(map[string]int64),
		wager:        100,
		submitStatus: dmn.SubmitPending,
		pollStatuses: []dmn.TxStatus{dmn.TxNotFound, dmn.TxSuccess},
	}
}

func (f *fakeLedger) fund(amount int64, addresses ...string) {
	f.Lock()
	defer f.Unlock()
	for _, a := range addresses {
		f.balances[a] = amount
	}
}

func (f *fakeLedger) submitCount() int {
	f.Lock()
	defer f.Unlock()
	return f.submits
}

func (f *fakeLedger) ValidateAddress(s string) bool {
	return len(s) == 56 && strings.HasPrefix(s, "G")
}

func (f *fakeLedger) BuildInvocation(_ context.Context, fn string, args []string, auth []dmn.AuthEntry) (*dmn.Invocation, error) {
	return &dmn.Invocation{Function: fn, Args: args, Auth: auth}, nil
}

func (f *fakeLedger) Simulate(_ context.Context, inv *dmn.Invocation) (*dmn.Simulation, error) {
	f.Lock()
	defer f.Unlock()

	switch inv.Function {
	case fnWager:
		return &dmn.Simulation{Results: []dmn.SimulationResult{{Value: fmt.Sprintf("amount:%d", f.wager)}}}, nil

	case fnBalance:
		if f.balanceTransient > 0 {
			f.balanceTransient--
			return nil, errTransport
		}
		balance, ok := f.balances[inv.Args[0]]
		if !ok {
			return &dmn.Simulation{Error: "HostError: no balance"}, nil
		}
		return &dmn.Simulation{Results: []dmn.SimulationResult{{Value: fmt.Sprintf("amount:%d", balance)}}}, nil

	case fnEngage:
		if len(inv.Auth) > 0 {
			f.finalAuth = append(f.finalAuth, inv.Auth)
			if f.finalSimErr != "" {
				return &dmn.Simulation{Error: f.finalSimErr}, nil
			}
			return &dmn.Simulation{Results: []dmn.SimulationResult{{}}, MinResourceFee: 10}, nil
		}

		if f.engageTransient > 0 {
			f.engageTransient--
			return nil, errTransport
		}
		if f.engageErr != "" {
			return &dmn.Simulation{Error: f.engageErr}, nil
		}

		auth := f.engageAuth
		if auth == nil {
			for _, a := range inv.Args {
				auth = append(auth, addressEntry(a))
			}
		}
		count := f.engageResults
		if count == 0 {
			count = 1
		}
		results := make([]dmn.SimulationResult, count)
		results[0].Auth = auth
		return &dmn.Simulation{Results: results}, nil
	}

	return &dmn.Simulation{Error: "unknown function " + inv.Function}, nil
}

func (f *fakeLedger) Prepare(_ context.Context, inv *dmn.Invocation, sim *dmn.Simulation) (*dmn.PreparedTransaction, error) {
	return &dmn.PreparedTransaction{Invocation: inv, Fee: sim.MinResourceFee}, nil
}

func (f *fakeLedger) Sign(ptx *dmn.PreparedTransaction) error {
	ptx.Signed = true
	return nil
}

func (f *fakeLedger) Submit(_ context.Context, ptx *dmn.PreparedTransaction) (*dmn.Submission, error) {
	f.Lock()
	defer f.Unlock()
	if !ptx.Signed {
		return nil, errors.New("unsigned transaction")
	}
	f.submits++
	return &dmn.Submission{Hash: fmt.Sprintf("tx%d", f.submits), Status: f.submitStatus}, nil
}

func (f *fakeLedger) Poll(_ context.Context, hash string) (*dmn.TransactionStatus, error) {
	f.Lock()
	defer f.Unlock()
	status := f.pollStatuses[len(f.pollStatuses)-1]
	if f.polls < len(f.pollStatuses) {
		status = f.pollStatuses[f.polls]
	}
	f.polls++
	return &dmn.TransactionStatus{Status: status, ResultMeta: "first:" + f.firstPlayer}, nil
}

func (f *fakeLedger) DecodeAuthEntry(raw string) (dmn.AuthEntry, error) {
	switch {
	case raw == "source":
		return dmn.AuthEntry{Raw: raw, Kind: dmn.CredentialOther}, nil
	case strings.HasPrefix(raw, "addr:"):
		return dmn.AuthEntry{Raw: raw, Kind: dmn.CredentialAddress, Address: strings.TrimPrefix(raw, "addr:")}, nil
	}
	return dmn.AuthEntry{}, fmt.Errorf("malformed entry %q", raw)
}

func (f *fakeLedger) DecodeAmount(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(value, "amount:"), 10, 64)
}

func (f *fakeLedger) DecodeReturnValue(resultMeta string) (string, error) {
	addr := strings.TrimPrefix(resultMeta, "first:")
	if addr == "" {
		return "", errors.New("no return value")
	}
	return addr, nil
}

type sentEvent struct {
	event   string
	payload interface{}
	to      []dmn.ConnectionHandle
}

type fakeNotifier struct {
	sent []sentEvent
	sync.Mutex
}

func (n *fakeNotifier) Send(event string, payload interface{}, to ...dmn.ConnectionHandle) {
	n.Lock()
	defer n.Unlock()
	n.sent = append(n.sent, sentEvent{event: event, payload: payload, to: to})
}

// received returns every payload delivered to conn for event, in send order.
func (n *fakeNotifier) received(conn dmn.ConnectionHandle, event string) []interface{} {
	n.Lock()
	defer n.Unlock()
	var out []interface{}
	for _, s := range n.sent {
		if s.event != event {
			continue
		}
		for _, h := range s.to {
			if h == conn {
				out = append(out, s.payload)
			}
		}
	}
	return out
}

func (n *fakeNotifier) count() int {
	n.Lock()
	defer n.Unlock()
	return len(n.sent)
}

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

type fakeRepo struct {
	records map[string]*dmn.MatchRecord
	sync.Mutex
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*dmn.MatchRecord)}
}

func (r *fakeRepo) Save(_ context.Context, record *dmn.MatchRecord) error {
	r.Lock()
	defer r.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *fakeRepo) ByID(_ context.Context, id string) (*dmn.MatchRecord, error) {
	r.Lock()
	defer r.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, dmn.ErrRecordNotFound
	}
	return rec, nil
}
