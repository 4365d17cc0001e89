package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rendis/stencil/internal/library"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:     "library [name]",
	Aliases: []string{"lib"},
	Short:   "List libraries and what they provide",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		reg := a.driver.Registry()
		infos := reg.List()
		if len(args) == 1 {
			lib, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			infos = []library.Info{lib.Info()}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, info := range infos {
			marker := ""
			if info.Abbreviation == reg.Default() {
				marker = " (default)"
			}
			fmt.Fprintf(tw, "%s\t%s%s\n", info.Abbreviation, info.Name, marker)
			if len(info.Actions) > 0 {
				fmt.Fprintf(tw, "\tactions\t%s\n", strings.Join(info.Actions, ", "))
			}
			if len(info.Contributions) > 0 {
				fmt.Fprintf(tw, "\tcontributions\t%s\n", strings.Join(info.Contributions, ", "))
			}
			for _, fn := range info.Functions {
				fmt.Fprintf(tw, "\tfunction\t%s(%s) -> %s\n", fn.Name, strings.Join(fn.Args, ", "), fn.Action)
			}
			if info.Dynamic {
				fmt.Fprintf(tw, "\tdynamic\tyes\n")
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)

	libraryCmd.Flags().Bool("json", false, "print as JSON")
}
