package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
)

var (
	sessionsLimit  int
	sessionsLabels string
	sessionsTotals bool
)

var sessionsCmd = &cobra.Command{
	Use:         "sessions",
	Short:       "List stored watch sessions and their label counts",
	Annotations: map[string]string{requiresDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()

		if sessionsLabels != "" || sessionsTotals {
			labels, err := DB.LabelCounts(ctx, sessionsLabels)
			if err != nil {
				utils.Die("Failed to load label counts", err, nil)
			}
			if len(labels) == 0 {
				fmt.Println("No labels recorded.")
				return nil
			}
			printLabels(os.Stdout, labels)
			return nil
		}

		sessions, err := DB.ListSessions(ctx, sessionsLimit)
		if err != nil {
			utils.Die("Failed to list sessions", err, nil)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found in database.")
			return nil
		}
		printSessions(os.Stdout, sessions)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show")
	sessionsCmd.Flags().StringVar(&sessionsLabels, "labels", "", "Show label counts of the session with this ID")
	sessionsCmd.Flags().BoolVar(&sessionsTotals, "totals", false, "Show label counts across all sessions")
	rootCmd.AddCommand(sessionsCmd)
}

func printSessions(out io.Writer, sessions []types.SessionSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTARTED\tDURATION\tFRAMES\tNO FACE\tCLASSIFIED\tSKIPPED")
	fmt.Fprintln(w, "--\t------\t-------\t--------\t------\t-------\t----------\t-------")

	for _, s := range sessions {
		id := s.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			id,
			filepath.Base(s.Source),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			fmtDuration(s.Duration()),
			s.Frames, s.FacelessFrames, s.Classified, s.Skipped,
		)
	}
	w.Flush()
}

func printLabels(out io.Writer, labels []types.LabelCount) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "GENDER\tAGE\tFACES")
	fmt.Fprintln(w, "------\t---\t-----")
	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%s\t%d\n", l.Gender, l.Age, l.Count)
	}
	w.Flush()
}
