package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xbiel/polirag/internal/config"
	"github.com/0xbiel/polirag/internal/llm"
)

const chatHistoryFileName = "chat_history.json"

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive, context-carrying chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
}

// runChat drives a REPL: every turn re-searches the index for the new
// question (not the whole conversation so far), then folds the running
// message history into the prompt so follow-up questions stay coherent.
func runChat(ctx context.Context) error {
	fmt.Println("polirag chat. Type 'exit' or 'quit' to leave, 'clear' to reset history.")
	fmt.Println("---")

	history := loadChatHistory()
	scanner := bufio.NewScanner(os.Stdin)
	topK := viper.GetInt(keyTopK)
	stream := viper.GetBool(keyStream)

	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit":
			return saveChatHistory(history)
		case "clear":
			history = nil
			fmt.Println("History cleared.")
			continue
		}

		messages, hitCount, err := buildMessages(ctx, theApp.system, topK, history, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if hitCount == 0 {
			fmt.Println("(no close match in your indexed content for this one)")
		}

		fmt.Print("\nAssistant: ")
		var reply string
		if stream {
			reply, err = streamAndPrint(ctx, theApp.llm, messages)
		} else {
			reply, _, err = theApp.llm.Chat(ctx, messages)
			if err == nil {
				fmt.Println(reply)
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		history = append(history, llm.Message{Role: llm.RoleUser, Content: input})
		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: reply})

		if len(history)%4 == 0 {
			_ = saveChatHistory(history)
		}
	}

	return saveChatHistory(history)
}

func chatHistoryPath() (string, error) {
	dir, err := config.AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, chatHistoryFileName), nil
}

func loadChatHistory() []llm.Message {
	path, err := chatHistoryPath()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var history []llm.Message
	_ = json.Unmarshal(data, &history)
	return history
}

func saveChatHistory(history []llm.Message) error {
	path, err := chatHistoryPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
