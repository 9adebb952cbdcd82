package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

func newNetworkCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect the configured network",
	}
	cmd.AddCommand(newNetworkPingCmd(root))
	return cmd
}

func newNetworkPingCmd(root *rootOptions) *cobra.Command {
	var (
		node    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that nodes answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			ctx = logtrace.CtxWithCorrelationID(ctx, "network-ping")

			c, err := root.newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			if node != "" {
				id, err := ledger.ParseAccountID(node)
				if err != nil {
					return err
				}
				if err := c.Ping(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", id)
				return nil
			}

			if err := c.PingAll(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d nodes ok\n", c.Network().Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "node account id, e.g. 0.0.3 (default: all nodes)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}
