package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyTopK     = "top-k"
	keyStream   = "stream"
	keyProvider = "provider"
	keyModel    = "model"

	defaultTopK = 5
)

var theApp *app

// Execute builds the root command and runs it against os.Args.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "polirag",
		Short: "A personal RAG assistant over your university portal",
		Long: "polirag keeps a local index of your course content and answers\n" +
			"questions grounded in it. Run with no arguments for an interactive\n" +
			"session, or use one of the subcommands below for scripted use.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newApp(cmd.Context(), viper.GetString(keyProvider), viper.GetString(keyModel))
			if err != nil {
				return err
			}
			theApp = built
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if theApp != nil {
				theApp.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), theApp)
		},
	}

	root.PersistentFlags().Int(keyTopK, defaultTopK, "number of indexed snippets to retrieve per question")
	root.PersistentFlags().Bool(keyStream, true, "stream the assistant's reply token by token")
	root.PersistentFlags().String(keyProvider, "", "LLM provider override: LmStudio or OpenRouter")
	root.PersistentFlags().String(keyModel, "", "LLM model name override")

	_ = viper.BindPFlag(keyTopK, root.PersistentFlags().Lookup(keyTopK))
	_ = viper.BindPFlag(keyStream, root.PersistentFlags().Lookup(keyStream))
	_ = viper.BindPFlag(keyProvider, root.PersistentFlags().Lookup(keyProvider))
	_ = viper.BindPFlag(keyModel, root.PersistentFlags().Lookup(keyModel))
	viper.SetEnvPrefix("POLIRAG")
	viper.AutomaticEnv()

	root.AddCommand(newSyncCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newChatCmd())

	return root
}

// printableErr formats an error the way every subcommand reports a
// non-fatal, already-logged failure back to the user.
func printableErr(verb string, err error) error {
	return fmt.Errorf("%s: %w", verb, err)
}
