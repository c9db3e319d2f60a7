package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/WesWeCan/mu-morphing-mirror/internal/log"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB      bool
	resetDebug   bool
	resetDataDir string
)

var resetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Reset system state (Database, Debug Frames)",
	Long:        "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Annotations: map[string]string{needsDB: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		// No flags means clear everything
		if !resetDB && !resetDebug {
			resetDB = true
			resetDebug = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())

		if resetDB {
			if confirm(reader, cmd.OutOrStdout(), "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
				log.Info(log.Fields{"run_id": runID}, "database reset")
			}
		}

		if resetDebug {
			if confirm(reader, cmd.OutOrStdout(), "⚠️  Are you sure you want to delete all debug frames?") {
				fmt.Println("🗑️  Clearing Debug Frames...")
				removeDir(filepath.Join(resetDataDir, "debug_frames"))
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear PostgreSQL database")
	resetCmd.Flags().BoolVar(&resetDebug, "debug", false, "Clear debug frames")
	resetCmd.Flags().StringVar(&resetDataDir, "data-dir", "/data", "Directory holding generated files")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
