package main

import (
	"github.com/spf13/cobra"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
	"github.com/ledgerlink/ledger-sdk/sdk/client"
)

type rootOptions struct {
	configFile  string
	networkName string
	logLevel    string
}

// newRootCmd represents the base command when called without any subcommands
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Command line tools for ledger networks",
		Long: `ledgerctl manages keys, checks node reachability and inspects
address books of a permissioned ledger network.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logtrace.Setup("ledgerctl", opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "client config file (yaml or json)")
	root.PersistentFlags().StringVar(&opts.networkName, "network", "", "named network: mainnet, testnet, previewnet or local-node")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newKeysCmd(), newNetworkCmd(opts), newAddressBookCmd())
	return root
}

// newClient builds a client from --config, falling back to --network.
func (o *rootOptions) newClient() (*client.Client, error) {
	switch {
	case o.configFile != "":
		return client.FromConfigFile(o.configFile)
	case o.networkName != "":
		return client.ForName(o.networkName)
	default:
		return nil, errors.New("either --config or --network is required")
	}
}
