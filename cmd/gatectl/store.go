package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jewelcalc/jewelgate/internal/config"
	"github.com/jewelcalc/jewelgate/internal/infra"
	"github.com/jewelcalc/jewelgate/internal/logging"
	"github.com/jewelcalc/jewelgate/internal/users"
)

const operatorActor = "gatectl"

var (
	addRole     string
	addPhone    string
	addUsername string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the allow-list schema to the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.StoreDriver)
		return err
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Administer the allow-list directly",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allow-listed users, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if globals.Pretty {
			return writeJSON(cmd.OutOrStdout(), records)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TELEGRAM_ID\tROLE\tUSERNAME\tPHONE\tADDED_BY\tADDED_AT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.TelegramID, r.Role, deref(r.Username), deref(r.Phone), r.AddedBy, r.AddedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add <telegram-id>",
	Short: "Grant access to a user, replacing any existing record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		input := users.AddInput{TelegramID: args[0], Role: addRole}
		if addPhone != "" {
			input.Phone = &addPhone
		}
		if addUsername != "" {
			input.Username = &addUsername
		}
		// Operators grant access without an invitation; notifier is unused by Add.
		record, err := users.NewService(store, nil, "").Add(cmd.Context(), input, operatorActor)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), record)
	},
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <telegram-id>",
	Short: "Revoke access for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove %s: %w", args[0], err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return err
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&addRole, "role", users.RoleUser, "role: admin or user")
	usersAddCmd.Flags().StringVar(&addPhone, "phone", "", "optional phone number")
	usersAddCmd.Flags().StringVar(&addUsername, "username", "", "optional username")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
}

func openStore(ctx context.Context) (config.Config, *users.Store, error) {
	if globals.Token != "" {
		if err := setenvIfEmpty("TELEGRAM_BOT_TOKEN", globals.Token); err != nil {
			return config.Config{}, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := users.OpenStore(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	// Writes must evict the lookup cache the server reads through.
	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		store.Close()
		return config.Config{}, nil, err
	}
	if cache != nil {
		logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.IsDevelopment())
		store.Repository = users.NewCachedRepository(store.Repository, cache, cfg.LookupCacheTTL, logger)
		closeStore := store.Close
		store.Close = func() {
			closeStore()
			cache.Close()
		}
	}
	return cfg, store, nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
