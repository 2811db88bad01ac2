package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// newStatusCmd reports what data the snapshot holds and how fresh it is.
func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show loaded record counts and data freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Repo.RestoreFromDurable(cmd.Context()); err != nil {
				app.Logger.Warn("ignoring unusable snapshot")
			}
			st := app.Repo.Status()

			return printResult(cmd, app, st, func() string {
				stale := make(map[types.SourceList]bool, len(st.StaleSources))
				for _, src := range st.StaleSources {
					stale[src] = true
				}
				rows := make([][]string, 0, len(types.AllSources))
				for _, src := range types.AllSources {
					loaded := "never"
					if ts, ok := st.LoadedAt[src]; ok {
						loaded = ts.Format("2006-01-02 15:04:05")
					}
					freshness := "fresh"
					if stale[src] {
						freshness = "STALE"
					}
					rows = append(rows, []string{
						src.String(),
						fmt.Sprintf("%d", st.PerSourceCounts[src]),
						loaded,
						freshness,
					})
				}
				var sb strings.Builder
				sb.WriteString(formatTable([]string{"SOURCE", "RECORDS", "LOADED", "FRESHNESS"}, rows))
				fmt.Fprintf(&sb, "\ntotal %d records, ready=%v (generation %.12s)\n",
					st.TotalRecords, st.Ready, st.Fingerprint)
				return sb.String()
			})
		},
	}
}
