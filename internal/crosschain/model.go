// Package crosschain implements the Cross-Chain Directory (C6a):
// register_cross_chain_service, per spec.md §4.5. It generalises the
// teacher repo's internal/federation package — a registry-of-registries
// that issued intermediate CAs to federated DNS trust roots — into a
// directory that advertises one local agent's availability across a fixed
// set of external networks, minting a per-network registration token
// through the NFT Issuer Gateway (C2) rather than issuing certificates.
package crosschain

import "time"

// Network is a supported external chain identifier. The enumeration is
// fixed; register_cross_chain_service rejects any value outside it.
type Network string

const (
	NetworkCardano   Network = "cardano"
	NetworkEthereum  Network = "ethereum"
	NetworkPolygon   Network = "polygon"
	NetworkSolana    Network = "solana"
	NetworkAvalanche Network = "avalanche"
	NetworkArbitrum  Network = "arbitrum"
	NetworkBSC       Network = "bsc"
	NetworkFantom    Network = "fantom"
)

// ValidNetworks is the fixed enumeration register_cross_chain_service
// validates each requested network identifier against.
var ValidNetworks = map[Network]bool{
	NetworkCardano:   true,
	NetworkEthereum:  true,
	NetworkPolygon:   true,
	NetworkSolana:    true,
	NetworkAvalanche: true,
	NetworkArbitrum:  true,
	NetworkBSC:       true,
	NetworkFantom:    true,
}

// NetworkAdvertisement is one network's registration outcome within a
// CrossChainRegistration: the asset minted through C2 to advertise the
// agent on that network, on the local chain.
type NetworkAdvertisement struct {
	Network      Network
	AssetName    string
	MintTxID     string
	RegisteredAt time.Time
}

// CrossChainRegistration is the record returned by
// register_cross_chain_service: the agent's advertised presence across one
// or more external networks, identified by a content-derived
// cross_chain_id.
type CrossChainRegistration struct {
	CrossChainID   string
	AgentID        string
	Networks       []Network
	Advertisements []NetworkAdvertisement
	CreatedAt      time.Time
}
