package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/WesWeCan/mu-morphing-mirror/internal/log"
	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for the scan command
type Options struct {
	InputPath        string
	NthFrame         int
	NumEngines       int
	WorkerCmd        string
	DebugScreenshots bool
	DataDir          string
}

// needsDB marks commands that open the database in PersistentPreRunE.
const needsDB = "needs-db"

const defaultDBURL = "postgres://localhost:5432/mirror"

var (
	// DB is the global database connection shared by subcommands
	DB *store.Store
	// dbURL is the connection string
	dbURL    string
	logLevel string
	logFile  string
	envFile  string
	// runID tags every log entry of this invocation
	runID string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "mirror",
	Short:   "Pose-to-region bounding box engine for the morphing mirror",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}

		if _, err := log.Setup(log.Options{Level: logLevel, File: logFile}); err != nil {
			return err
		}
		runID = log.NewRunID()
		log.Debug(log.Fields{"run_id": runID, "command": cmd.Name()}, "starting")

		if cmd.Annotations[needsDB] == "" {
			return nil
		}

		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), resolveDBURL(dbURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Background: the main context may already be cancelled (Ctrl+C) and Close still has to go out.
			DB.Close(context.Background())
		}
	},
}

// loadEnv seeds the environment from a .env file. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// resolveDBURL picks the flag value, then POSTGRES_* variables, then the local default.
func resolveDBURL(flag string) string {
	if flag != "" {
		return flag
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return defaultDBURL
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
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
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: "+defaultDBURL+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load (default: .env)")
}
