package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	Token  string
	Pretty bool
}

var globals globalOptions

var rootCmd = &cobra.Command{
	Use:           "gatectl",
	Short:         "Operator tooling for the JewelGate access service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globals.Token, "token", "", "bot token (default: $TELEGRAM_BOT_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&globals.Pretty, "pretty", false, "indent JSON output")

	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(usersCmd)
}

func botToken() (string, error) {
	if globals.Token != "" {
		return globals.Token, nil
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("bot token is required: pass --token or set TELEGRAM_BOT_TOKEN")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if globals.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func setenvIfEmpty(key, value string) error {
	if os.Getenv(key) != "" {
		return nil
	}
	return os.Setenv(key, value)
}
