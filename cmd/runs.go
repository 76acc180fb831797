package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/store"
)

var (
	runsStatus string
	runsName   string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Name:   runsName,
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tSTATUS\tOBS\tZONES\tCREATED")
		for _, r := range runs {
			obs, zones := "-", "-"
			if r.Result != nil {
				obs = fmt.Sprintf("%d", r.Result.Observations)
				zones = fmt.Sprintf("%d", r.Result.Zones)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Spec.Name, r.Spec.Country, r.Status, obs, zones,
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (queued, running, complete, failed)")
	runsCmd.Flags().StringVar(&runsName, "name", "", "filter by study name")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
