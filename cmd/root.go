package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andresmejia3/visage/internal/logging"
	"github.com/andresmejia3/visage/internal/store"
)

// Options holds shared configuration for the watch and analyze commands
type Options struct {
	InputPath     string
	ConfigPath    string
	ModelsDir     string
	Backend       string
	Threshold     float64
	Padding       int
	WorkerTimeout string
	Headless      bool
	RecordPath    string
	UseFFmpeg     bool
	InputFormat   string
	FinalWait     string
	OutputPath    string
}

// requiresDB marks commands that cannot run without the session store.
const requiresDB = "requires-db"

var (
	// DB is the session store shared by subcommands. It is nil when no
	// database was configured and the command does not require one.
	DB *store.Store
	// Logger is the process logger, ready once PersistentPreRunE has run.
	Logger = zap.NewNop().Sugar()

	dbURL    string
	logLevel string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "visage",
	Short:   "Live face detection with age and gender estimation",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New("visage", logLevel)
		if err != nil {
			return err
		}
		Logger = logger

		url, configured := resolveDBURL(dbURL)
		if !configured && cmd.Annotations[requiresDB] == "" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
		Logger.Sync()
	},
}

// resolveDBURL returns the connection string to use and whether the user
// configured one, through the flag or POSTGRES_HOST.
func resolveDBURL(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name), true
	}
	// Fallback to local default if no env vars are present
	return "postgres://localhost:5432/visage", false
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for session summaries (default: $POSTGRES_HOST, else disabled)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
