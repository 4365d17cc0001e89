package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rendis/stencil/internal/store"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal {renders|invocations}",
	Short: "Inspect the render journal",
	Long: `Lists recorded renders, or the action invocations traced with the trace
contribution. Requires --journal or STENCIL_JOURNAL.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"renders", "invocations"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		if a.journal == nil {
			return errors.New("no journal configured: set --journal or STENCIL_JOURNAL")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()

		var records any
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		switch args[0] {
		case "renders":
			renders, err := a.journal.ListRenders(cmd.Context(), limit)
			if err != nil {
				return err
			}
			records = renders
			for _, r := range renders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.StartedAt.Format(time.RFC3339), r.ID, r.Template, r.Outcome, r.Duration)
			}
		case "invocations":
			renderID, _ := cmd.Flags().GetString("render")
			outcome, _ := cmd.Flags().GetString("outcome")
			invs, err := a.journal.ListInvocations(cmd.Context(), store.InvocationFilter{
				RenderID: renderID,
				Outcome:  outcome,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			records = invs
			for _, inv := range invs {
				fmt.Fprintf(tw, "%s\t%d\t%s:%d\t%s\t%s\t%s\n", inv.RenderID, inv.Sequence, inv.Template, inv.Line, inv.Action, inv.Outcome, inv.Creation+inv.Execution)
			}
		default:
			return fmt.Errorf("unknown journal resource %q (want renders or invocations)", args[0])
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().Int("limit", 50, "maximum number of records")
	journalCmd.Flags().String("render", "", "only invocations of this render ID")
	journalCmd.Flags().String("outcome", "", "only invocations with this outcome (ok, error, vetoed)")
	journalCmd.Flags().Bool("json", false, "print as JSON")
}
