package client

import (
	"strconv"
	"strings"

	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

type preset struct {
	ledgerID ledger.LedgerID
	nodes    map[string]ledger.AccountID
}

// presets are the networks reachable by name. The public node lists seed the
// client; SetNetworkFromAddressBook replaces them with a current book.
var presets = map[string]preset{
	string(ledger.Mainnet): {
		ledgerID: ledger.Mainnet,
		nodes: map[string]ledger.AccountID{
			"35.237.200.180:50211": ledger.NewAccountID(3),
			"35.186.191.247:50211": ledger.NewAccountID(4),
			"35.192.2.25:50211":    ledger.NewAccountID(5),
			"35.199.161.108:50211": ledger.NewAccountID(6),
			"35.203.82.240:50211":  ledger.NewAccountID(7),
			"35.236.5.219:50211":   ledger.NewAccountID(8),
			"35.197.192.225:50211": ledger.NewAccountID(9),
			"35.242.233.154:50211": ledger.NewAccountID(10),
			"35.240.118.96:50211":  ledger.NewAccountID(11),
			"35.204.86.32:50211":   ledger.NewAccountID(12),
			"35.234.132.107:50211": ledger.NewAccountID(13),
			"35.236.2.27:50211":    ledger.NewAccountID(14),
			"35.228.11.53:50211":   ledger.NewAccountID(15),
			"34.91.181.183:50211":  ledger.NewAccountID(16),
			"34.86.212.247:50211":  ledger.NewAccountID(17),
		},
	},
	string(ledger.Testnet): {
		ledgerID: ledger.Testnet,
		nodes:    numberedHosts("testnet", 7),
	},
	string(ledger.Previewnet): {
		ledgerID: ledger.Previewnet,
		nodes:    numberedHosts("previewnet", 7),
	},
	string(ledger.LocalNode): {
		ledgerID: ledger.LocalNode,
		nodes:    map[string]ledger.AccountID{"127.0.0.1:50211": ledger.NewAccountID(3)},
	},
}

// numberedHosts maps <i>.<name>.hedera.com:50211 to account 0.0.<i+3>.
func numberedHosts(name string, count int) map[string]ledger.AccountID {
	nodes := make(map[string]ledger.AccountID, count)
	for i := 0; i < count; i++ {
		nodes[strconv.Itoa(i)+"."+name+".hedera.com:50211"] = ledger.NewAccountID(int64(i + 3))
	}
	return nodes
}

func lookupPreset(name string) (preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}
