package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newAddressBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addressbook",
		Short: "Work with node address books",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "decode <file>",
		Short: "Print a binary address book as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := network.LoadAddressBookFile(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(book, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encode address book")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})
	return cmd
}
