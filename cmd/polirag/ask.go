package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question grounded in the indexed content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			ctx := cmd.Context()

			messages, hitCount, err := buildMessages(ctx, theApp.system, viper.GetInt(keyTopK), nil, question)
			if err != nil {
				return printableErr("ask", err)
			}
			if hitCount == 0 {
				fmt.Println("(no indexed content matched this question closely; answering from general knowledge)")
			}

			if viper.GetBool(keyStream) {
				_, err := streamAndPrint(ctx, theApp.llm, messages)
				if err != nil {
					return printableErr("ask", err)
				}
				return nil
			}

			reply, _, err := theApp.llm.Chat(ctx, messages)
			if err != nil {
				return printableErr("ask", err)
			}
			fmt.Println(reply)
			return nil
		},
	}
}
