package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TxProposalTypeSimple is a proposal paying a single output.
	TxProposalTypeSimple = "simple"
	// TxProposalTypeMultipleOutputs is a proposal paying a list of outputs.
	TxProposalTypeMultipleOutputs = "multiple_outputs"
	// TxProposalTypeExternal is a proposal spending caller-provided inputs.
	TxProposalTypeExternal = "external"
)

// TxProposalOutput is one output of a proposal, expressed either as an
// address or as a raw script, never both.
type TxProposalOutput struct {
	ToAddress string
	Script    string
	Amount    uint64
	Message   string
}

// TxProposalInput is the snapshot of an unspent output selected as input.
// It is copied at selection time so the proposal stays stable even if the
// wallet's utxo set changes afterwards.
type TxProposalInput struct {
	TxID          string
	Vout          uint32
	Satoshis      uint64
	ScriptPubKey  string
	Address       string
	Path          string
	PublicKeys    []string
	Confirmations int64
}

// Key returns the outpoint identity of the input.
func (in TxProposalInput) Key() string {
	return fmt.Sprintf("%s:%d", in.TxID, in.Vout)
}

// TxProposalAction is one accept/reject vote cast by a copayer.
type TxProposalAction struct {
	CreatedOn  int64
	CopayerID  string
	Type       string
	Signatures []string
	Comment    string
}

// TxProposal is the entity tracking a spend through the signature quorum
// workflow. Status transitions are monotonic and one-directional:
// temporary -> pending -> accepted -> broadcasted, or pending -> rejected.
type TxProposal struct {
	ID                 string
	WalletID           string
	CreatorID          string
	CreatedOn          int64
	Type               string
	Status             string
	Outputs            []TxProposalOutput
	Inputs             []TxProposalInput
	ChangeAddress      *Address
	Fee                uint64
	FeePerKb           uint64
	WalletM            int
	WalletN            int
	RequiredSignatures int
	RequiredRejections int
	Actions            []*TxProposalAction
	OutputOrder        []int
	TxID               string
	RawTx              string
	BroadcastedOn      int64
	Message            string
	ProposalSignature  string
	Network            string
	AddressType        string
}

// NewTxProposalID returns a proposal id prefixed with the creation time so
// that ids sort chronologically.
func NewTxProposalID() string {
	return fmt.Sprintf("%014d%s", time.Now().UnixMilli(), uuid.New().String())
}

// NewTxProposalOpts is the struct given to the NewTxProposal factory.
type NewTxProposalOpts struct {
	Wallet            *Wallet
	CreatorID         string
	Type              string
	Outputs           []TxProposalOutput
	FeePerKb          uint64
	Message           string
	ProposalSignature string
	Temporary         bool
}

func (o NewTxProposalOpts) validate() error {
	if o.Wallet == nil || !o.Wallet.IsComplete() {
		return ErrWalletNotComplete
	}
	if o.Wallet.GetCopayer(o.CreatorID) == nil {
		return ErrNotAuthorized
	}
	switch o.Type {
	case TxProposalTypeSimple, TxProposalTypeMultipleOutputs, TxProposalTypeExternal:
	default:
		return ErrInvalidArgument
	}
	if len(o.Outputs) <= 0 {
		return ErrInvalidArgument
	}
	if o.Type == TxProposalTypeSimple && len(o.Outputs) != 1 {
		return ErrInvalidArgument
	}
	for _, out := range o.Outputs {
		hasAddress := len(out.ToAddress) > 0
		hasScript := len(out.Script) > 0
		if hasAddress == hasScript {
			return ErrInvalidArgument
		}
		if out.Amount <= 0 {
			return ErrInvalidArgument
		}
	}
	return nil
}

// NewTxProposal returns a proposal in temporary or pending status for the
// given complete wallet. Inputs, fee and change are set later by coin
// selection.
func NewTxProposal(opts NewTxProposalOpts) (*TxProposal, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	status := TxProposalStatusPending
	if opts.Temporary {
		status = TxProposalStatusTemporary
	}

	w := opts.Wallet
	return &TxProposal{
		ID:                 NewTxProposalID(),
		WalletID:           w.ID,
		CreatorID:          opts.CreatorID,
		CreatedOn:          time.Now().Unix(),
		Type:               opts.Type,
		Status:             status,
		Outputs:            opts.Outputs,
		WalletM:            w.M,
		WalletN:            w.N,
		RequiredSignatures: w.M,
		RequiredRejections: w.N - w.M + 1,
		FeePerKb:           opts.FeePerKb,
		Actions:            make([]*TxProposalAction, 0),
		OutputOrder:        rand.Perm(len(opts.Outputs) + 1),
		Message:            opts.Message,
		ProposalSignature:  opts.ProposalSignature,
		Network:            w.Network,
		AddressType:        w.AddressType,
	}, nil
}

// SignaturePayload returns the canonical text a creator signs to endorse
// the proposal: destination and amount of every output in declaration
// order, followed by the proposal message. It only depends on what the
// creator asked for, never on the inputs the server selects.
func (t *TxProposal) SignaturePayload() string {
	parts := make([]string, 0, len(t.Outputs)+1)
	for _, out := range t.Outputs {
		dest := out.ToAddress
		if len(dest) <= 0 {
			dest = out.Script
		}
		parts = append(parts, fmt.Sprintf("%s|%d", dest, out.Amount))
	}
	parts = append(parts, t.Message)
	return strings.Join(parts, "|")
}

// Amount returns the total amount paid to the proposal outputs, change
// excluded.
func (t *TxProposal) Amount() uint64 {
	var total uint64
	for _, out := range t.Outputs {
		total += out.Amount
	}
	return total
}

// InputAmount returns the total amount of the selected inputs.
func (t *TxProposal) InputAmount() uint64 {
	var total uint64
	for _, in := range t.Inputs {
		total += in.Satoshis
	}
	return total
}

// IsTemporary ...
func (t *TxProposal) IsTemporary() bool { return t.Status == TxProposalStatusTemporary }

// IsPending ...
func (t *TxProposal) IsPending() bool { return t.Status == TxProposalStatusPending }

// IsAccepted ...
func (t *TxProposal) IsAccepted() bool { return t.Status == TxProposalStatusAccepted }

// IsRejected ...
func (t *TxProposal) IsRejected() bool { return t.Status == TxProposalStatusRejected }

// IsBroadcasted ...
func (t *TxProposal) IsBroadcasted() bool { return t.Status == TxProposalStatusBroadcasted }

// GetActionBy returns the vote cast by the given copayer, or nil.
func (t *TxProposal) GetActionBy(copayerID string) *TxProposalAction {
	for _, a := range t.Actions {
		if a.CopayerID == copayerID {
			return a
		}
	}
	return nil
}

// Publish brings a temporary proposal to pending. Utxo availability must be
// re-validated by the caller before publishing.
func (t *TxProposal) Publish() error {
	if !t.IsTemporary() {
		return ErrTxNotPending
	}
	t.Status = TxProposalStatusPending
	return nil
}

// Sign records an accept vote with the copayer's signatures. When the
// number of accepts reaches the required signatures the proposal becomes
// accepted and the raw tx and txid are frozen by the caller.
func (t *TxProposal) Sign(copayerID string, signatures []string) error {
	if !t.IsPending() {
		return ErrTxNotPending
	}
	if t.GetActionBy(copayerID) != nil {
		return ErrCopayerVoted
	}

	t.Actions = append(t.Actions, &TxProposalAction{
		CreatedOn:  time.Now().Unix(),
		CopayerID:  copayerID,
		Type:       ActionTypeAccept,
		Signatures: signatures,
	})
	if t.countActions(ActionTypeAccept) >= t.RequiredSignatures {
		t.Status = TxProposalStatusAccepted
	}
	return nil
}

// Reject records a reject vote. When the number of rejects reaches
// n - m + 1 the proposal becomes rejected.
func (t *TxProposal) Reject(copayerID, comment string) error {
	if !t.IsPending() {
		return ErrTxNotPending
	}
	if t.GetActionBy(copayerID) != nil {
		return ErrCopayerVoted
	}

	t.Actions = append(t.Actions, &TxProposalAction{
		CreatedOn: time.Now().Unix(),
		CopayerID: copayerID,
		Type:      ActionTypeReject,
		Comment:   comment,
	})
	if t.countActions(ActionTypeReject) >= t.RequiredRejections {
		t.Status = TxProposalStatusRejected
	}
	return nil
}

// SetBroadcasted marks an accepted proposal as relayed to the network.
func (t *TxProposal) SetBroadcasted(txid string) error {
	if t.IsBroadcasted() {
		return ErrTxAlreadyBroadcasted
	}
	if !t.IsAccepted() {
		return ErrTxNotAccepted
	}
	t.TxID = txid
	t.Status = TxProposalStatusBroadcasted
	t.BroadcastedOn = time.Now().Unix()
	return nil
}

// HasVotesFromOthers returns whether any copayer other than the creator has
// already voted on the proposal.
func (t *TxProposal) HasVotesFromOthers() bool {
	for _, a := range t.Actions {
		if a.CopayerID != t.CreatorID {
			return true
		}
	}
	return false
}

// DeleteLockTime returns the instant after which the proposal may be removed
// by anyone. The creator may remove it immediately while nobody else voted.
func (t *TxProposal) DeleteLockTime(lockSeconds int64) int64 {
	return t.CreatedOn + lockSeconds
}

// IsDeletableBy returns whether the given copayer may remove the proposal at
// the given time. Once another copayer has voted, even the creator must wait
// for the lock window to elapse.
func (t *TxProposal) IsDeletableBy(copayerID string, now, lockSeconds int64) bool {
	if !t.IsTemporary() && !t.IsPending() {
		return false
	}
	if copayerID == t.CreatorID && !t.HasVotesFromOthers() {
		return true
	}
	return now >= t.DeleteLockTime(lockSeconds)
}

// OrderedOutputs returns the proposal outputs, change included when
// present, permuted according to the output order. The change output always
// occupies the slot the permutation assigns to index len(Outputs).
func (t *TxProposal) OrderedOutputs(changeAmount uint64) []TxProposalOutput {
	n := len(t.Outputs)
	hasChange := t.ChangeAddress != nil && changeAmount > 0
	size := n
	if hasChange {
		size++
	}

	ordered := make([]TxProposalOutput, 0, size)
	for _, idx := range t.OutputOrder {
		if idx < n {
			ordered = append(ordered, t.Outputs[idx])
			continue
		}
		if hasChange {
			ordered = append(ordered, TxProposalOutput{
				ToAddress: t.ChangeAddress.Address,
				Amount:    changeAmount,
			})
		}
	}
	return ordered
}

// ChangeAmount returns the value routed back to the change address, zero
// when inputs exactly cover amount plus fee.
func (t *TxProposal) ChangeAmount() uint64 {
	in := t.InputAmount()
	spent := t.Amount() + t.Fee
	if in <= spent {
		return 0
	}
	return in - spent
}

func (t *TxProposal) countActions(actionType string) int {
	count := 0
	for _, a := range t.Actions {
		if a.Type == actionType {
			count++
		}
	}
	return count
}
