package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// runInteractive is the default mode when polirag is invoked with no
// subcommand: a small menu over the same operations the scripted
// subcommands expose, for a user who just ran the binary directly.
func runInteractive(ctx context.Context, a *app) error {
	fmt.Println("polirag — personal course assistant")
	fmt.Printf("Indexed documents: %d\n", a.system.Count())
	fmt.Println()
	fmt.Println("  [1] sync   — log in and scrape everything")
	fmt.Println("  [2] scan   — re-index local content, no network")
	fmt.Println("  [3] ask    — ask a single question")
	fmt.Println("  [4] chat   — start an interactive chat session")
	fmt.Println("  [q] quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return nil
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			if err := a.orchestrator.Sync(ctx, false); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Sync complete. %d documents indexed.\n", a.system.Count())
		case "2":
			added, err := a.orchestrator.ScanLocal(ctx, func(msg string) { fmt.Println(msg) })
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Scan complete. %d new chunks indexed.\n", len(added))
		case "3":
			fmt.Print("Question: ")
			if !scanner.Scan() {
				continue
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			messages, _, err := buildMessages(ctx, a.system, defaultTopK, nil, question)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			if _, err := streamAndPrint(ctx, a.llm, messages); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case "4":
			if err := runChat(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case "q", "quit", "exit":
			return nil
		default:
			fmt.Println("unrecognized option")
		}
	}
}
