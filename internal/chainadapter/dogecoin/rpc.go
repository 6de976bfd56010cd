package dogecoin

import (
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/bitcoin"
)

// RPCHelper is Dogecoin Core's RPC surface, reused directly from the
// bitcoin package: listunspent, estimatesmartfee, getrawtransaction,
// getblock, and sendrawtransaction are byte-for-byte the same RPC
// methods on Dogecoin Core as on Bitcoin Core.
type RPCHelper = bitcoin.RPCHelper

// NewRPCHelper creates a new Dogecoin RPC helper.
var NewRPCHelper = bitcoin.NewRPCHelper
