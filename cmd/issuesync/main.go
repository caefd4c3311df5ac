// issuesync keeps an issue's canonical lifecycle status converged with
// its GitHub pull request mirror.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailhead-labs/issuesync/internal/config"
	"github.com/trailhead-labs/issuesync/internal/engine"
	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/storage/memory"
	"github.com/trailhead-labs/issuesync/internal/storage/mysql"
	"github.com/trailhead-labs/issuesync/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfg        *config.Config
	jsonOutput bool
	actorFlag  string

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "issuesync",
	Short: "Bidirectional issue lifecycle sync with GitHub",
	Long: `issuesync reconciles a canonical issue lifecycle status with its
GitHub pull request mirror.

Pull derives evidence (checks, reviews, merge state, labels) from the
pull request and advances the canonical status through the lifecycle
state machine. Push projects the canonical status back onto the pull
request as labels. Transitions that the lifecycle rules reject are
recorded as conflicts for an operator to resolve.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if actorFlag != "" {
			cfg.Actor = actorFlag
		}
		return telemetry.Init(cmd.Context(), "issuesync", Version)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor name for the audit trail (default: config, then $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.Version = Version
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	rootCmd.SetContext(rootCtx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMySQL:
		return mysql.Open(ctx, cfg.StorageDSN)
	default:
		return memory.New(), nil
	}
}

// loadSpec loads the configured lifecycle document, or the embedded
// default when none is configured.
func loadSpec() (*lifecycle.Spec, error) {
	if cfg.LifecycleSpec != "" {
		return lifecycle.LoadFile(cfg.LifecycleSpec)
	}
	return lifecycle.Default()
}

// newSyncer assembles the engine against the given store.
func newSyncer(store storage.Store) (engine.Syncer, error) {
	spec, err := loadSpec()
	if err != nil {
		return nil, err
	}

	client := github.NewClient(cfg.GitHubToken)
	if cfg.GitHubBaseURL != "" {
		client = client.WithBaseURL(cfg.GitHubBaseURL)
	}

	eng := engine.New(spec, engine.Deps{
		Snapshots: client,
		Records:   store,
		Audit:     store,
		Conflicts: store,
		Labels:    client,
	})
	return telemetry.WrapEngine(eng), nil
}

// resolveRef parses an external reference, accepting "#123" shorthand
// against the configured github.repo.
func resolveRef(s string) (github.Ref, error) {
	if len(s) > 0 && s[0] == '#' && cfg.GitHubRepo != "" {
		s = cfg.GitHubRepo + s
	}
	return github.ParseRef(s)
}
