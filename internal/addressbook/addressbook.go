// Package addressbook holds the well-known Ethereum addresses used to tag
// transactions and screen addresses, including the built-in sanctions list.
package addressbook

import "strings"

// Transaction tags
const (
	TagStakingDeposit   = "STAKING_DEPOSIT"
	TagLiquidStaking    = "LIQUID_STAKING"
	TagExchange         = "EXCHANGE"
	TagDEX              = "DEX"
	TagSanctioned       = "SANCTIONED"
	TagContractCreation = "CONTRACT_CREATION"
	TagTransfer         = "TRANSFER"
)

// BeaconDepositContract receives every validator deposit on mainnet
const BeaconDepositContract = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

// Entry is a labelled address
type Entry struct {
	Address string
	Label   string
	Tag     string
}

// Known lists labelled counterparties
var Known = []Entry{
	{BeaconDepositContract, "Beacon Deposit Contract", TagStakingDeposit},
	{"0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84", "Lido stETH", TagLiquidStaking},
	{"0xae78736Cd615f374D3085123A210448E74Fc6393", "Rocket Pool rETH", TagLiquidStaking},
	{"0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", "Uniswap V2 Router", TagDEX},
	{"0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD", "Uniswap Universal Router", TagDEX},
	{"0x28C6c06298d514Db089934071355E5743bf21d60", "Binance Hot Wallet", TagExchange},
	{"0xA9D1e08C7793af67e9d92fe308d5697FB81d3E43", "Coinbase Hot Wallet", TagExchange},
}

// Sanctioned lists OFAC-designated Tornado Cash addresses
var Sanctioned = []Entry{
	{"0x722122dF12D4e14e13Ac3b6895a86e84145b6967", "Tornado Cash Proxy", TagSanctioned},
	{"0xd90e2f925DA726b50C4Ed8D0Fb90Ad053324F31b", "Tornado Cash Router", TagSanctioned},
	{"0x12D66f87A04A9E220743712cE6d9bB1B5616B8Fc", "Tornado Cash 0.1 ETH", TagSanctioned},
	{"0x47CE0C6eD5B0Ce3d3A51fdb1C52DC66a7c3c2936", "Tornado Cash 1 ETH", TagSanctioned},
	{"0x910Cbd523D972eb0a6f4cAe4618aD62622b39DbF", "Tornado Cash 10 ETH", TagSanctioned},
	{"0xA160cdAB225685dA1d56aa342Ad8841c3b53f291", "Tornado Cash 100 ETH", TagSanctioned},
}

var (
	knownIndex      = index(Known)
	sanctionedIndex = index(Sanctioned)
)

func index(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[normalize(e.Address)] = e
	}
	return m
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsSanctioned reports whether address is on the sanctions list, ignoring case
func IsSanctioned(address string) bool {
	_, ok := sanctionedIndex[normalize(address)]
	return ok
}

// Lookup returns the entry for address from the sanctions list or the known list
func Lookup(address string) (Entry, bool) {
	key := normalize(address)
	if e, ok := sanctionedIndex[key]; ok {
		return e, true
	}
	e, ok := knownIndex[key]
	return e, ok
}

// TagFor classifies a transaction by its recipient. An empty recipient is a
// contract creation.
func TagFor(to string) string {
	if strings.TrimSpace(to) == "" {
		return TagContractCreation
	}
	if e, ok := Lookup(to); ok {
		return e.Tag
	}
	return TagTransfer
}
