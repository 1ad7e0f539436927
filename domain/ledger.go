package domain

// CredentialKind tells whether an authorization entry is bound to a party address.
type CredentialKind int

const (
	CredentialOther CredentialKind = iota
	CredentialAddress
)

// AuthEntry is a decoded authorization entry together with its raw encoding.
type AuthEntry struct {
	Raw     string
	Kind    CredentialKind
	Address string // set only for CredentialAddress
}

// Invocation is a contract call built for the operator account.
// Envelope holds the encoded transaction as last built, prepared or signed.
type Invocation struct {
	Function string
	Args     []string
	Auth     []AuthEntry
	Source   string
	Sequence int64
	Envelope string
}

// SimulationResult is one host function result from a simulation.
type SimulationResult struct {
	Value string   // encoded return value
	Auth  []string // encoded authorization entries
}

// Simulation is the outcome of a dry run. A non-empty Error is an application-level
// failure reported by the ledger; transport failures are returned as Go errors instead.
type Simulation struct {
	Error           string
	Results         []SimulationResult
	TransactionData string
	MinResourceFee  int64
	LatestLedger    int64
}

// Failed reports whether the ledger rejected the simulated invocation.
func (s *Simulation) Failed() bool {
	return s.Error != ""
}

// PreparedTransaction is an invocation with resources attached, ready to be signed and submitted.
type PreparedTransaction struct {
	Invocation *Invocation
	Fee        int64
	Envelope   string
	Signed     bool
}

// SubmitStatus is the ledger's immediate answer to a submission.
type SubmitStatus string

const (
	SubmitPending       SubmitStatus = "PENDING"
	SubmitDuplicate     SubmitStatus = "DUPLICATE"
	SubmitTryAgainLater SubmitStatus = "TRY_AGAIN_LATER"
	SubmitError         SubmitStatus = "ERROR"
)

// Submission is the result of submitting a transaction.
type Submission struct {
	Hash   string
	Status SubmitStatus
	Error  string
}

// Accepted reports whether the ledger took the transaction for processing.
func (s *Submission) Accepted() bool {
	return s.Status == SubmitPending || s.Status == SubmitDuplicate
}

// TxStatus is the status of a submitted transaction.
type TxStatus string

const (
	TxPending  TxStatus = "PENDING"
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
	TxNotFound TxStatus = "NOT_FOUND"
)

// TransactionStatus is the result of polling a submitted transaction.
type TransactionStatus struct {
	Status     TxStatus
	ResultMeta string
	Ledger     int64
}

// Terminal reports whether polling can stop.
func (t *TransactionStatus) Terminal() bool {
	return t.Status == TxSuccess || t.Status == TxFailed
}
