package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/class1/graduate/pkg/session"
)

// rosterCmd represents the roster command
var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Lists the people a timeline can be built for.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		roster, err := session.Roster(cmd.Context(), e.cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\t")
		for _, s := range roster {
			fmt.Fprintf(w, "%d\t%s\t\n", s.ID, s.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rosterCmd)
}
