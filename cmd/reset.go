package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/visage/internal/utils"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Delete all stored session summaries",
	Long:        "Drops the session tables. They are recreated empty on the next run.",
	Annotations: map[string]string{requiresDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		reader := bufio.NewReader(os.Stdin)

		if !resetYes && !confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all session tables?") {
			fmt.Println("Aborted.")
			return nil
		}

		fmt.Println("🗑️  Clearing Database...")
		if err := DB.Reset(cmd.Context()); err != nil {
			utils.ShowError("Failed to reset database", err, nil)
			return err
		}
		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
