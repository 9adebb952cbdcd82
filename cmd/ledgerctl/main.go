package main

import (
	"fmt"
	"os"

	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
)

func main() {
	defer logtrace.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
