package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkweli/amlscreen/internal/application/screening"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// newScreenCmd screens one name from the command line.  Data comes from
// the snapshot when present, otherwise from a fresh load.
func newScreenCmd(app *App) *cobra.Command {
	var (
		dob         string
		nationality string
		threshold   float64
		sources     []string
	)

	cmd := &cobra.Command{
		Use:   "screen <name>",
		Short: "Screen a name against the loaded sanctions lists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restored, err := app.Repo.RestoreFromDurable(cmd.Context())
			if err != nil {
				app.Logger.Warn("ignoring unusable snapshot")
			}
			if !restored {
				if _, err := app.Repo.Reload(cmd.Context()); err != nil {
					return err
				}
			}

			q := screening.Query{Name: strings.Join(args, " ")}
			if dob != "" {
				pd, err := types.ParsePartialDate(dob)
				if err != nil {
					return errors.Wrap(err, errors.CodeInvalidParam, "invalid --dob")
				}
				q.DateOfBirth = &pd
			}
			q.Nationality = nationality
			if cmd.Flags().Changed("threshold") {
				q.Threshold = &threshold
			}
			for _, s := range sources {
				src, err := types.ParseSourceList(s)
				if err != nil {
					return errors.Wrap(err, errors.CodeInvalidParam, "invalid --source")
				}
				q.Sources = append(q.Sources, src)
			}

			res, err := app.Matcher.Screen(cmd.Context(), q)
			if err != nil {
				return err
			}

			return printResult(cmd, app, res, func() string {
				if len(res.Matches) == 0 {
					return fmt.Sprintf("no matches for %q at threshold %.0f", res.NormalizedQuery, res.Threshold)
				}
				rows := make([][]string, 0, len(res.Matches))
				for _, match := range res.Matches {
					rows = append(rows, []string{
						fmt.Sprintf("%.1f", match.Score),
						match.Layer.String(),
						match.RecordID,
						match.PrimaryName,
						match.MatchedName,
						fmt.Sprintf("tier %d", match.RiskTier),
					})
				}
				var sb strings.Builder
				sb.WriteString(formatTable([]string{"SCORE", "LAYER", "RECORD", "LISTED NAME", "MATCHED NAME", "RISK"}, rows))
				fmt.Fprintf(&sb, "\n%d match(es) at threshold %.0f (generation %.12s)\n",
					len(res.Matches), res.Threshold, res.Fingerprint)
				return sb.String()
			})
		},
	}

	cmd.Flags().StringVar(&dob, "dob", "", "date of birth for rationale annotation (e.g. 1975, 1975-04-01)")
	cmd.Flags().StringVar(&nationality, "nationality", "", "nationality for rationale annotation")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override the match threshold [50,100]")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "restrict to source lists (UN, UK, OFAC, EU)")
	return cmd
}
