// Package chainadapter - transaction signing abstractions.
package chainadapter

import "github.com/octopus-network/omnity-bridge-core/internal/signer"

// Signer is the threshold-signing abstraction chain adapters build
// release transactions against. It is exactly internal/signer.Signer:
// adapters never hold key material, only a digest and a derivation
// path (see internal/addressderiver for how paths are built from a
// domain.Destination).
type Signer = signer.Signer
