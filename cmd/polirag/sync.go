package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Log in, scrape every subject, and index the results",
		Long: "sync drives a full headless browser pass over the portal: it logs in\n" +
			"if needed, enumerates every subject, scrapes each one's announcements,\n" +
			"lessons, resources, and teaching guide, and indexes the results.\n" +
			"By default already-indexed documents are left untouched; --full wipes\n" +
			"the index and the scraped-data directory first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Starting sync...")
			if err := theApp.orchestrator.Sync(cmd.Context(), full); err != nil {
				return printableErr("sync", err)
			}
			fmt.Printf("Sync complete. %d documents indexed.\n", theApp.system.Count())
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "clear the index and scraped data before syncing")
	return cmd
}
