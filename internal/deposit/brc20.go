package deposit

// BRC-20 deposit validation (spec.md §4.8 mode 2: cross-checking a
// candidate's inscription transfer against an independent mempool/
// indexer view before honoring it) has no Validator here.
//
// The closest pack source, original_source/customs/brc20/src/ord/parser/
// envelope.rs, parses an inscription envelope out of a raw transaction
// the canister already has in hand; it never calls out to an external
// BRC-20 indexer, and no indexer client/SDK appears anywhere else in the
// example pack. Fabricating one to fill this gap would mean inventing a
// dependency the corpus never actually uses, which this module avoids
// throughout. A real deployment wires a Validator backed by whatever
// indexer (ordinals.com, Hiro, UniSat) it contracts with; until then, a
// BRC-20 chain adapter's candidates pass through Observer with
// Validator == nil, gated on confirmation depth alone like Runes/
// native-BTC mode, with no inscription-specific check.
