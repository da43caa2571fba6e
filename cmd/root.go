package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-sentry",
	Short: "A face identity daemon with bounded embedding banks",
	Long: `Face Sentry resolves a stream of face-embedding observations into stable
person identities. It keeps a bounded, quality-ranked embedding bank per
person in an embedded SQLite database, matches new observations with an
adaptive threshold, and turns noisy per-frame matches into a stable
active-person state through temporal consensus.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// openService opens the store and wires the identity core over it. The
// caller owns the returned store and must Close it.
func openService(ctx context.Context, cfg *config.Config) (*identity.Service, *store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	svc, err := identity.NewService(ctx, st, cfg.Embedder.Dim, cfg.Recognition)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}
