package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/auth"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

func seedStore(ctx context.Context, st store.Store) (bool, error) {
	wrote, err := st.Seed(ctx, store.SampleUsers(), store.SampleAssets())
	if err != nil {
		return false, fmt.Errorf("seeding store: %w", err)
	}
	if wrote {
		slog.Info("sample data written")
	}
	return wrote, nil
}

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write sample users and assets into empty collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(a.cfg.StoreOptions())
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			wrote, err := seedStore(cmd.Context(), st)
			if err != nil {
				return err
			}
			if wrote {
				fmt.Fprintln(cmd.OutOrStdout(), "Sample data written.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Collections already populated, nothing written.")
			}
			return nil
		},
	}
}

func tokenCmd(a *app) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an identity token for a user",
		Long: `Mint a bearer token that makes requests act as the given user.
Requires identity.token_secret to be set; the server uses the same secret
to verify it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := a.cfg.Identity.TokenSecret
			if secret == "" {
				return fmt.Errorf("identity.token_secret is not set")
			}

			st, err := store.Open(a.cfg.StoreOptions())
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			u, err := st.GetUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("getting user: %w", err)
			}
			if u == nil {
				return model.NewError(model.ErrNotFound, fmt.Sprintf("user %d not found", userID))
			}

			token, err := auth.GenerateToken(secret, u.ID, u.Login, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user id to act as")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}
