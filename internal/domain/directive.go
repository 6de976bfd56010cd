package domain

// DirectiveKind tags the variant carried by a Directive.
type DirectiveKind string

const (
	DirAddChain          DirectiveKind = "AddChain"
	DirUpdateChain       DirectiveKind = "UpdateChain"
	DirAddToken          DirectiveKind = "AddToken"
	DirUpdateToken       DirectiveKind = "UpdateToken"
	DirToggleChainState  DirectiveKind = "ToggleChainState"
	DirUpdateFee         DirectiveKind = "UpdateFee"
)

// ChainState is the activation state of a Chain.
type ChainState string

const (
	ChainActive   ChainState = "Active"
	ChainDeactive ChainState = "Deactive"
)

// ChainType distinguishes the settlement side from execution-chain routes.
type ChainType string

const (
	ChainTypeSettlement ChainType = "SettlementChain"
	ChainTypeExecution  ChainType = "ExecutionChain"
)

// Chain is a registry entry describing one counterparty chain.
type Chain struct {
	ChainID        string     `cbor:"1,keyasint" json:"chain_id"`
	ChainType      ChainType  `cbor:"2,keyasint" json:"chain_type"`
	ChainState     ChainState `cbor:"3,keyasint" json:"chain_state"`
	ContractAddr   string     `cbor:"4,keyasint" json:"contract_address,omitempty"`
	Counterparties []string   `cbor:"5,keyasint" json:"counterparties,omitempty"`
}

// Token is a registry entry describing one bridged token.
type Token struct {
	TokenID  string `cbor:"1,keyasint" json:"token_id"`
	Symbol   string `cbor:"2,keyasint" json:"symbol"`
	Decimals uint8  `cbor:"3,keyasint" json:"decimals"`
	IssueChain string `cbor:"4,keyasint" json:"issue_chain"`
}

// ToggleState is the payload of a ToggleChainState directive.
type ToggleState struct {
	ChainID string     `cbor:"1,keyasint" json:"chain_id"`
	Action  ChainState `cbor:"2,keyasint" json:"action"`
}

// FeeUpdate is the payload of an UpdateFee directive: the fee (in token
// base units) charged when bridging TokenID from SrcChain to DstChain.
type FeeUpdate struct {
	SrcChain string `cbor:"1,keyasint" json:"src_chain"`
	DstChain string `cbor:"2,keyasint" json:"dst_chain"`
	TokenID  string `cbor:"3,keyasint" json:"token_id"`
	Fee      string `cbor:"4,keyasint" json:"fee"`
}

// Directive is the immutable unit of cross-chain configuration change.
// Exactly one of the payload fields is populated, selected by Kind;
// applying the same directive twice (replay, or an operator resubmit)
// must be a no-op given Kind+Seq — directives are idempotent under replay.
type Directive struct {
	Kind         DirectiveKind `cbor:"1,keyasint" json:"kind"`
	Chain        *Chain        `cbor:"2,keyasint,omitempty" json:"chain,omitempty"`
	Token        *Token        `cbor:"3,keyasint,omitempty" json:"token,omitempty"`
	Toggle       *ToggleState  `cbor:"4,keyasint,omitempty" json:"toggle,omitempty"`
	Fee          *FeeUpdate    `cbor:"5,keyasint,omitempty" json:"fee,omitempty"`
	AssociatedRuneID string    `cbor:"6,keyasint,omitempty" json:"rune_id,omitempty"`
}
