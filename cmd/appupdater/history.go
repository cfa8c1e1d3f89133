package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

var outcomeStyles = map[update.OutcomeKind]lipgloss.Style{
	update.OutcomeFinished:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	update.OutcomeFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	update.OutcomeCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := app.Updater.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENDED\tRETRIES\tSOURCE\tURL\tOUTCOME")
			for _, r := range records {
				source := "network"
				if r.FromCache {
					source = "cache"
				}
				outcome := outcomeStyles[r.Outcome].Render(string(r.Outcome))
				if r.Error != "" {
					outcome += " " + r.Error
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					r.EndedAt.Local().Format(time.DateTime), r.RetryCount, source, r.URL, outcome)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show (0 for all)")
	return cmd
}
