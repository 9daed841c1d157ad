package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Re-index already-downloaded subject content without touching the network",
		Long: "scan walks the local scraped-data directory and indexes anything not\n" +
			"already present in the store. Unlike sync it never logs in, never\n" +
			"enumerates subjects, and never opens a browser tab.",
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := theApp.orchestrator.ScanLocal(cmd.Context(), func(msg string) {
				fmt.Println(msg)
			})
			if err != nil {
				return printableErr("scan", err)
			}
			fmt.Printf("Scan complete. %d new chunks indexed.\n", len(added))
			return nil
		},
	}
}
