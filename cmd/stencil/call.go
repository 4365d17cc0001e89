package main

import (
	"encoding/json"
	"fmt"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <function>",
	Short: "Call a library function",
	Long: `Calls a library function with named arguments and prints the result.
Arguments are given as name=value pairs; values are decoded as YAML, so
--arg count=3 passes a number.`,
	Example: `  stencil call format_number --arg value=1234.5 --arg format=decimal
  stencil call next_run --arg spec="0 9 * * 1" --arg count=3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		pairs, _ := cmd.Flags().GetStringArray("arg")
		params, err := parseAssignments(pairs)
		if err != nil {
			return err
		}
		dataPath, _ := cmd.Flags().GetString("data")
		vars, err := loadData(dataPath)
		if err != nil {
			return err
		}

		result, err := a.driver.CallNamed(cmd.Context(), args[0], params, scope.New(vars))
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		if list, ok := result.([]any); ok {
			for _, v := range list {
				fmt.Fprintln(cmd.OutOrStdout(), action.Text(v))
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), action.Text(result))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringArrayP("arg", "a", nil, "function argument (name=value), repeatable")
	callCmd.Flags().StringP("data", "d", "", "YAML or JSON file with variables in scope")
	callCmd.Flags().Bool("json", false, "print the result as JSON")
}
