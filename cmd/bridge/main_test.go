package main

import "testing"

func TestNetworkFromChainID(t *testing.T) {
	cases := map[string]string{
		"Bitcoin":         "mainnet",
		"Bitcoin-testnet": "testnet",
		"Dogecoin-testnet": "testnet",
		"Dogecoin":        "mainnet",
		"":                "mainnet",
	}
	for chainID, want := range cases {
		if got := networkFromChainID(chainID); got != want {
			t.Errorf("networkFromChainID(%q) = %q, want %q", chainID, got, want)
		}
	}
}
