package state

import "fmt"

// CheckInvariants validates the structural invariants that must hold
// after any sequence of successful Apply calls. It is intended to run
// after replay and, in tests, after constructing fixtures by hand; it is
// not on the hot path of live event processing.
func (s *State) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.NextConsumeDirectiveSeq > s.NextDirectiveSeq {
		return fmt.Errorf("invariant violated: next_consume_directive_seq (%d) > next_directive_seq (%d)",
			s.NextConsumeDirectiveSeq, s.NextDirectiveSeq)
	}
	if s.NextConsumeTicketSeq > s.NextTicketSeq {
		return fmt.Errorf("invariant violated: next_consume_ticket_seq (%d) > next_ticket_seq (%d)",
			s.NextConsumeTicketSeq, s.NextTicketSeq)
	}

	for op, r := range s.Utxos {
		switch r.Status {
		case UtxoAvailable, UtxoConsumed, UtxoForgotten:
		default:
			return fmt.Errorf("invariant violated: utxo %s:%d has unknown status %q", op.Txid, op.Vout, r.Status)
		}
	}

	for txid, tx := range s.SubmittedTransactions {
		for _, u := range tx.ConsumedUtxos {
			r, ok := s.Utxos[u.OutPoint()]
			if !ok {
				return fmt.Errorf("invariant violated: submitted tx %s references untracked utxo %s:%d", txid, u.Txid, u.Vout)
			}
			if r.Status != UtxoConsumed {
				return fmt.Errorf("invariant violated: submitted tx %s utxo %s:%d has status %q, want consumed", txid, u.Txid, u.Vout, r.Status)
			}
		}
	}

	for txid := range s.FinalizedGenTickets {
		if _, stillPending := s.PendingGenTicketRequests[txid]; stillPending {
			return fmt.Errorf("invariant violated: txid %s is both pending and finalized", txid)
		}
	}

	seenPending := make(map[string]bool, len(s.PendingReleaseTicketIDs))
	for _, id := range s.PendingReleaseTicketIDs {
		if seenPending[id] {
			return fmt.Errorf("invariant violated: ticket %s queued twice in pending releases", id)
		}
		seenPending[id] = true
	}

	return nil
}
