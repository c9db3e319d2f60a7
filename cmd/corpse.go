package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/spf13/cobra"
)

var corpseCmd = &cobra.Command{
	Use:         "corpse",
	Short:       "Manage registered body recordings and their base images",
	Annotations: map[string]string{needsDB: "true"},
}

var corpseAddCmd = &cobra.Command{
	Use:         "add <path> [base-image...]",
	Short:       "Register a recording",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := DB.CreateCorpse(cmd.Context(), args[0], args[1:])
		if err != nil {
			utils.ShowError("Failed to register corpse", err, nil)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Registered corpse %d\n", id)
		return nil
	},
}

var corpseListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List all registered recordings",
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		corpses, err := DB.ListCorpses(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to list corpses", err, nil)
			return err
		}
		return writeCorpses(cmd.OutOrStdout(), corpses)
	},
}

var corpseRmCmd = &cobra.Command{
	Use:         "rm <id>",
	Short:       "Remove a registered recording",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid corpse id %q", args[0])
		}
		if err := DB.DeleteCorpse(cmd.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "❌ No corpse with id %d.\n", id)
				return err
			}
			utils.ShowError("Failed to remove corpse", err, nil)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed corpse %d\n", id)
		return nil
	},
}

func init() {
	corpseCmd.AddCommand(corpseAddCmd, corpseListCmd, corpseRmCmd)
	rootCmd.AddCommand(corpseCmd)
}

func writeCorpses(w io.Writer, corpses []store.Corpse) error {
	if len(corpses) == 0 {
		_, err := fmt.Fprintln(w, "No corpses found in database.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tBASE IMAGES\tCREATED")
	fmt.Fprintln(tw, "--\t----\t-----------\t-------")
	for _, c := range corpses {
		images := strings.Join(c.BaseImages, ", ")
		if images == "" {
			images = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Path, images, c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
