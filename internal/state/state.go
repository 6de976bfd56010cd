// Package state holds the in-memory projection of a customs/route
// process's event log (internal/eventlog) and the single Apply method
// that folds one Event into it. Apply is used both live (after the event
// has been durably recorded) and during replay at startup, so it must be
// side-effect free except for mutating the receiver, and it must reject
// any event whose preconditions the log does not actually satisfy by
// returning an InconsistentLog error rather than silently proceeding.
package state

import (
	"fmt"
	"sync"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
)

// UtxoStatus is the lifecycle of a tracked Utxo. Every Utxo the state has
// ever seen is in exactly one of these states; CheckInvariants verifies
// this.
type UtxoStatus string

const (
	UtxoAvailable UtxoStatus = "available"
	UtxoConsumed  UtxoStatus = "consumed"
	UtxoForgotten UtxoStatus = "forgotten"
)

// UtxoRecord is one tracked Utxo together with its purpose, originating
// destination, and current lifecycle status.
type UtxoRecord struct {
	Utxo        domain.Utxo
	Purpose     domain.UtxoPurpose
	Destination domain.Destination
	Status      UtxoStatus
}

// State is the full in-memory projection for one customs or route
// process. Zero value is not usable; use New.
type State struct {
	mu sync.RWMutex

	initialized bool
	ChainID     string
	ChainType   domain.ChainType
	HubURL      string

	Chains map[string]domain.Chain
	Tokens map[string]domain.Token

	NextDirectiveSeq        uint64
	NextTicketSeq           uint64
	NextConsumeDirectiveSeq uint64
	NextConsumeTicketSeq    uint64

	Utxos           map[domain.OutPoint]*UtxoRecord
	destinationIdx  map[domain.Destination][]domain.OutPoint
	RunesBalances   map[string]string // rune_id -> decimal amount, oracle-reported

	PendingGenTicketRequests map[string]domain.GenTicketRequest // txid -> request
	FinalizedGenTickets      map[string][]domain.RunesBalance   // txid -> settled balances

	FeeSchedule map[string]string // "src|dst|token" -> decimal fee amount

	PendingReleaseTicketIDs []string // FIFO queue of ticket ids awaiting a batched release tx
	SubmittedTransactions   map[string]domain.SubmittedTx // txid -> tx
	ConfirmedTransactions   map[string]domain.SubmittedTx // txid -> tx

	PendingTickets   map[string]domain.PendingTicketStatus // route-side in-flight mints
	FinalizedTickets map[string]bool

	DispatchedDirectiveSeq uint64
}

// New returns an empty State ready to have events Applied to it,
// starting with Init.
func New() *State {
	return &State{
		Chains:                   make(map[string]domain.Chain),
		Tokens:                   make(map[string]domain.Token),
		Utxos:                    make(map[domain.OutPoint]*UtxoRecord),
		destinationIdx:           make(map[domain.Destination][]domain.OutPoint),
		RunesBalances:            make(map[string]string),
		PendingGenTicketRequests: make(map[string]domain.GenTicketRequest),
		FinalizedGenTickets:      make(map[string][]domain.RunesBalance),
		FeeSchedule:              make(map[string]string),
		SubmittedTransactions:    make(map[string]domain.SubmittedTx),
		ConfirmedTransactions:    make(map[string]domain.SubmittedTx),
		PendingTickets:           make(map[string]domain.PendingTicketStatus),
		FinalizedTickets:         make(map[string]bool),
	}
}

// Apply folds one Event into the state. It is the only mutator of State
// besides New; every field change the process ever makes happens here,
// driven by an event that was (by caller contract) already appended to
// the durable log.
func (s *State) Apply(ev eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized && ev.Kind != eventlog.KindInit {
		return eventlog.NewInconsistentLog("first event must be Init, got %s", ev.Kind)
	}

	switch ev.Kind {
	case eventlog.KindInit:
		if s.initialized {
			return eventlog.NewInconsistentLog("duplicate Init event")
		}
		if ev.Init == nil {
			return eventlog.NewInconsistentLog("Init event missing payload")
		}
		s.ChainID = ev.Init.ChainID
		s.ChainType = ev.Init.ChainType
		s.HubURL = ev.Init.HubURL
		s.initialized = true

	case eventlog.KindUpgrade:
		// Intentional no-op: stable-map-backed fields are reopened from
		// their own storage region on upgrade, not replayed here.

	case eventlog.KindAddedChain:
		if ev.Chain == nil {
			return eventlog.NewInconsistentLog("AddedChain missing payload")
		}
		s.Chains[ev.Chain.ChainID] = *ev.Chain

	case eventlog.KindUpdatedChain:
		if ev.Chain == nil {
			return eventlog.NewInconsistentLog("UpdatedChain missing payload")
		}
		if _, ok := s.Chains[ev.Chain.ChainID]; !ok {
			return eventlog.NewInconsistentLog("UpdatedChain: unknown chain %s", ev.Chain.ChainID)
		}
		s.Chains[ev.Chain.ChainID] = *ev.Chain

	case eventlog.KindAddedToken:
		if ev.Token == nil {
			return eventlog.NewInconsistentLog("AddedToken missing payload")
		}
		s.Tokens[ev.Token.TokenID] = *ev.Token

	case eventlog.KindUpdatedToken:
		if ev.Token == nil {
			return eventlog.NewInconsistentLog("UpdatedToken missing payload")
		}
		if _, ok := s.Tokens[ev.Token.TokenID]; !ok {
			return eventlog.NewInconsistentLog("UpdatedToken: unknown token %s", ev.Token.TokenID)
		}
		s.Tokens[ev.Token.TokenID] = *ev.Token

	case eventlog.KindToggleChainState:
		if ev.Toggle == nil {
			return eventlog.NewInconsistentLog("ToggleChainState missing payload")
		}
		c, ok := s.Chains[ev.Toggle.ChainID]
		if !ok {
			return eventlog.NewInconsistentLog("ToggleChainState: unknown chain %s", ev.Toggle.ChainID)
		}
		c.ChainState = ev.Toggle.Action
		s.Chains[ev.Toggle.ChainID] = c

	case eventlog.KindUpdatedFee:
		if ev.Fee == nil {
			return eventlog.NewInconsistentLog("UpdatedFee missing payload")
		}
		s.FeeSchedule[feeKey(ev.Fee.SrcChain, ev.Fee.DstChain, ev.Fee.TokenID)] = ev.Fee.Fee

	case eventlog.KindUpdateNextDirectiveSeq:
		if ev.NextSeq <= s.NextDirectiveSeq {
			return eventlog.NewInconsistentLog("next_directive_seq must strictly increase: %d -> %d", s.NextDirectiveSeq, ev.NextSeq)
		}
		s.NextDirectiveSeq = ev.NextSeq

	case eventlog.KindUpdateNextTicketSeq:
		if ev.NextSeq <= s.NextTicketSeq {
			return eventlog.NewInconsistentLog("next_ticket_seq must strictly increase: %d -> %d", s.NextTicketSeq, ev.NextSeq)
		}
		s.NextTicketSeq = ev.NextSeq

	case eventlog.KindUpdateNextConsumeDirective:
		if ev.NextSeq <= s.NextConsumeDirectiveSeq {
			return eventlog.NewInconsistentLog("next_consume_directive_seq must strictly increase: %d -> %d", s.NextConsumeDirectiveSeq, ev.NextSeq)
		}
		if ev.NextSeq > s.NextDirectiveSeq {
			return eventlog.NewInconsistentLog("next_consume_directive_seq %d cannot exceed next_directive_seq %d", ev.NextSeq, s.NextDirectiveSeq)
		}
		s.NextConsumeDirectiveSeq = ev.NextSeq

	case eventlog.KindUpdateNextConsumeTicket:
		if ev.NextSeq <= s.NextConsumeTicketSeq {
			return eventlog.NewInconsistentLog("next_consume_ticket_seq must strictly increase: %d -> %d", s.NextConsumeTicketSeq, ev.NextSeq)
		}
		if ev.NextSeq > s.NextTicketSeq {
			return eventlog.NewInconsistentLog("next_consume_ticket_seq %d cannot exceed next_ticket_seq %d", ev.NextSeq, s.NextTicketSeq)
		}
		s.NextConsumeTicketSeq = ev.NextSeq

	case eventlog.KindReceivedUtxos:
		if ev.ReceivedUtxos == nil {
			return eventlog.NewInconsistentLog("ReceivedUtxos missing payload")
		}
		s.addUtxos(ev.ReceivedUtxos.Destination, ev.ReceivedUtxos.Utxos, ev.ReceivedUtxos.IsRunes)

	case eventlog.KindUpdatedRunesBalance:
		if ev.UpdatedRunesBalance == nil {
			return eventlog.NewInconsistentLog("UpdatedRunesBalance missing payload")
		}
		s.RunesBalances[ev.UpdatedRunesBalance.Balance.RuneID] = ev.UpdatedRunesBalance.Balance.Amount

	case eventlog.KindAcceptedGenTicketRequestV2:
		if ev.GenTicketRequest == nil {
			return eventlog.NewInconsistentLog("AcceptedGenTicketRequestV2 missing payload")
		}
		s.PendingGenTicketRequests[ev.GenTicketRequest.Txid] = *ev.GenTicketRequest

	case eventlog.KindRemovedTicketRequest:
		if ev.RemovedRequestTxid == "" {
			return eventlog.NewInconsistentLog("RemovedTicketRequest missing txid")
		}
		req, ok := s.PendingGenTicketRequests[ev.RemovedRequestTxid]
		if !ok {
			return eventlog.NewInconsistentLog("RemovedTicketRequest: no pending request for txid %s", ev.RemovedRequestTxid)
		}
		for _, u := range req.NewUtxos {
			s.forgetUtxo(u.OutPoint())
		}
		delete(s.PendingGenTicketRequests, ev.RemovedRequestTxid)

	case eventlog.KindFinalizedTicketRequest:
		if ev.FinalizedRequest == nil {
			return eventlog.NewInconsistentLog("FinalizedTicketRequest missing payload")
		}
		if _, ok := s.PendingGenTicketRequests[ev.FinalizedRequest.Txid]; !ok {
			return eventlog.NewInconsistentLog("FinalizedTicketRequest: no pending request for txid %s", ev.FinalizedRequest.Txid)
		}
		delete(s.PendingGenTicketRequests, ev.FinalizedRequest.Txid)
		s.FinalizedGenTickets[ev.FinalizedRequest.Txid] = ev.FinalizedRequest.Balances
		for _, b := range ev.FinalizedRequest.Balances {
			s.RunesBalances[b.RuneID] = b.Amount
		}

	case eventlog.KindPendingTicket:
		if ev.Ticket == nil {
			return eventlog.NewInconsistentLog("PendingTicket missing payload")
		}
		s.PendingReleaseTicketIDs = append(s.PendingReleaseTicketIDs, ev.Ticket.TicketID)
		if s.ChainType == domain.ChainTypeExecution {
			s.PendingTickets[ev.Ticket.TicketID] = domain.PendingTicketStatus{TicketID: ev.Ticket.TicketID}
		}

	case eventlog.KindSentBtcTransaction:
		if ev.SentTx == nil {
			return eventlog.NewInconsistentLog("SentBtcTransaction missing payload")
		}
		for _, id := range ev.SentTx.TicketIDs {
			if !s.isPendingRelease(id) {
				return eventlog.NewInconsistentLog("SentBtcTransaction: ticket %s is not a pending release", id)
			}
		}
		for _, u := range ev.SentTx.ConsumedUtxos {
			if err := s.consumeUtxo(u.OutPoint()); err != nil {
				return err
			}
		}
		s.removePendingReleases(ev.SentTx.TicketIDs)
		s.SubmittedTransactions[ev.SentTx.Txid] = domain.SubmittedTx{
			TokenID:       ev.SentTx.TokenID,
			TicketIDs:     ev.SentTx.TicketIDs,
			Txid:          ev.SentTx.Txid,
			ConsumedUtxos: ev.SentTx.ConsumedUtxos,
			ChangeOutputs: ev.SentTx.ChangeOutputs,
			FeePerVbyte:   ev.SentTx.FeePerVbyte,
			SubmittedAt:   ev.SentTx.SubmittedAt,
		}
		for _, co := range ev.SentTx.ChangeOutputs {
			s.addUtxos(domain.ChangeDestination, []domain.Utxo{{Txid: ev.SentTx.Txid, Vout: co.Vout, Value: co.Value}}, false)
		}

	case eventlog.KindReplacedBtcTransaction:
		if ev.ReplacedTx == nil {
			return eventlog.NewInconsistentLog("ReplacedBtcTransaction missing payload")
		}
		old, ok := s.SubmittedTransactions[ev.ReplacedTx.OldTxid]
		if !ok {
			return eventlog.NewInconsistentLog("ReplacedBtcTransaction: unknown old txid %s", ev.ReplacedTx.OldTxid)
		}
		for _, co := range old.ChangeOutputs {
			s.forgetUtxo(domain.OutPoint{Txid: old.Txid, Vout: co.Vout})
		}
		delete(s.SubmittedTransactions, ev.ReplacedTx.OldTxid)
		s.SubmittedTransactions[ev.ReplacedTx.NewTxid] = domain.SubmittedTx{
			TokenID:       old.TokenID,
			TicketIDs:     old.TicketIDs,
			Txid:          ev.ReplacedTx.NewTxid,
			ConsumedUtxos: old.ConsumedUtxos,
			ChangeOutputs: ev.ReplacedTx.ChangeOutputs,
			FeePerVbyte:   ev.ReplacedTx.FeePerVbyte,
			SubmittedAt:   ev.ReplacedTx.SubmittedAt,
		}
		for _, co := range ev.ReplacedTx.ChangeOutputs {
			s.addUtxos(domain.ChangeDestination, []domain.Utxo{{Txid: ev.ReplacedTx.NewTxid, Vout: co.Vout, Value: co.Value}}, false)
		}

	case eventlog.KindConfirmedBtcTransaction:
		if ev.ConfirmedTxid == "" {
			return eventlog.NewInconsistentLog("ConfirmedBtcTransaction missing txid")
		}
		tx, ok := s.SubmittedTransactions[ev.ConfirmedTxid]
		if !ok {
			return eventlog.NewInconsistentLog("ConfirmedBtcTransaction: unknown txid %s", ev.ConfirmedTxid)
		}
		delete(s.SubmittedTransactions, ev.ConfirmedTxid)
		s.ConfirmedTransactions[ev.ConfirmedTxid] = tx

	case eventlog.KindFinalizeTicket:
		if ev.TicketID == "" {
			return eventlog.NewInconsistentLog("FinalizeTicket missing ticket id")
		}
		s.FinalizedTickets[ev.TicketID] = true
		delete(s.PendingTickets, ev.TicketID)

	case eventlog.KindUpdatedTxHash:
		if ev.TicketID == "" {
			return eventlog.NewInconsistentLog("UpdatedTxHash missing ticket id")
		}
		pt := s.PendingTickets[ev.TicketID]
		pt.TicketID = ev.TicketID
		pt.TxHash = ev.TxHash
		pt.RetryCount++
		s.PendingTickets[ev.TicketID] = pt

	case eventlog.KindDispatchedDirective:
		if ev.DispatchedDirectiveSeq <= s.DispatchedDirectiveSeq && ev.DispatchedDirectiveSeq != 0 {
			return eventlog.NewInconsistentLog("dispatched_directive_seq must strictly increase: %d -> %d", s.DispatchedDirectiveSeq, ev.DispatchedDirectiveSeq)
		}
		s.DispatchedDirectiveSeq = ev.DispatchedDirectiveSeq

	default:
		return eventlog.NewInconsistentLog("unknown event kind %q", ev.Kind)
	}
	return nil
}

func (s *State) addUtxos(dest domain.Destination, utxos []domain.Utxo, isRunes bool) {
	purpose := purposeFor(dest, isRunes)
	for _, u := range utxos {
		op := u.OutPoint()
		s.Utxos[op] = &UtxoRecord{Utxo: u, Purpose: purpose, Destination: dest, Status: UtxoAvailable}
		s.destinationIdx[dest] = append(s.destinationIdx[dest], op)
	}
}

func feeKey(src, dst, token string) string {
	return src + "|" + dst + "|" + token
}

// FeeFor looks up the configured bridge fee for moving token from src to
// dst, if an UpdateFee directive has ever set one.
func (s *State) FeeFor(src, dst, token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.FeeSchedule[feeKey(src, dst, token)]
	return f, ok
}

func purposeFor(dest domain.Destination, isRunes bool) domain.UtxoPurpose {
	switch dest {
	case domain.ChangeDestination:
		return domain.PurposeChange
	case domain.FeePaymentDestination:
		return domain.PurposeFeePayment
	default:
		if isRunes {
			return domain.PurposeRunes
		}
		return domain.PurposeAvailableFee
	}
}

func (s *State) forgetUtxo(op domain.OutPoint) {
	if r, ok := s.Utxos[op]; ok {
		r.Status = UtxoForgotten
	}
}

func (s *State) consumeUtxo(op domain.OutPoint) error {
	r, ok := s.Utxos[op]
	if !ok {
		return eventlog.NewInconsistentLog("consuming unknown utxo %s:%d", op.Txid, op.Vout)
	}
	if r.Status != UtxoAvailable {
		return eventlog.NewInconsistentLog("consuming non-available utxo %s:%d (status %s)", op.Txid, op.Vout, r.Status)
	}
	r.Status = UtxoConsumed
	return nil
}

func (s *State) isPendingRelease(ticketID string) bool {
	for _, id := range s.PendingReleaseTicketIDs {
		if id == ticketID {
			return true
		}
	}
	return false
}

func (s *State) removePendingReleases(ids []string) {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := s.PendingReleaseTicketIDs[:0]
	for _, id := range s.PendingReleaseTicketIDs {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	s.PendingReleaseTicketIDs = kept
}

// AvailableUtxos returns every currently-spendable Utxo of the given
// purpose, in map iteration order (callers that need a stable order,
// e.g. UTXO selection, must sort the result themselves).
func (s *State) AvailableUtxos(purpose domain.UtxoPurpose) []domain.Utxo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Utxo
	for _, r := range s.Utxos {
		if r.Purpose == purpose && r.Status == UtxoAvailable {
			out = append(out, r.Utxo)
		}
	}
	return out
}

// Snapshot returns a shallow, lock-protected copy of read-mostly
// sequence counters, useful for metrics/logging without holding the
// state lock across an I/O call.
func (s *State) Snapshot() (nextDirective, nextTicket, consumeDirective, consumeTicket uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NextDirectiveSeq, s.NextTicketSeq, s.NextConsumeDirectiveSeq, s.NextConsumeTicketSeq
}

// String renders a short human summary, used by cmd/bridge's status
// output and log lines.
func (s *State) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("State{chain=%s type=%s chains=%d tokens=%d pending_requests=%d submitted_txs=%d}",
		s.ChainID, s.ChainType, len(s.Chains), len(s.Tokens), len(s.PendingGenTicketRequests), len(s.SubmittedTransactions))
}
