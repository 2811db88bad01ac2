package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// newLoadCmd parses the source lists into the repository and persists the
// snapshot.  Unchanged files are skipped unless named with --force.
func newLoadCmd(app *App) *cobra.Command {
	var force []string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Parse the sanctions lists and build the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			forced, err := resolveForced(force)
			if err != nil {
				return err
			}

			// Seed fingerprints from a prior snapshot so unchanged files
			// can be skipped on a warm machine.
			if _, err := app.Repo.RestoreFromDurable(cmd.Context()); err != nil {
				app.Logger.Warn("ignoring unusable snapshot")
			}

			summary, err := app.Repo.Reload(cmd.Context(), forced...)
			if err != nil {
				return err
			}

			return printResult(cmd, app, summary, func() string {
				rows := make([][]string, 0, len(summary.Outcomes))
				for _, o := range summary.Outcomes {
					state := "parsed"
					if o.Skipped {
						state = "unchanged"
					}
					if o.Error != "" {
						state = "error: " + o.Error
					}
					rows = append(rows, []string{
						o.Source.String(),
						fmt.Sprintf("%d", o.RecordCount),
						fmt.Sprintf("%d", o.SkipCount),
						state,
					})
				}
				var sb strings.Builder
				sb.WriteString(formatTable([]string{"SOURCE", "RECORDS", "SKIPPED", "STATE"}, rows))
				fmt.Fprintf(&sb, "\n%d records loaded in %s (generation %.12s)\n",
					summary.TotalRecords, summary.Duration.Round(1e6), summary.Fingerprint)
				return sb.String()
			})
		},
	}

	cmd.Flags().StringSliceVar(&force, "force", nil,
		`reparse sources even when unchanged ("all" or source names)`)
	cmd.Flags().Lookup("force").NoOptDefVal = "all"
	return cmd
}

// resolveForced maps --force values onto source lists; "all" wins outright.
func resolveForced(names []string) ([]types.SourceList, error) {
	var out []types.SourceList
	for _, name := range names {
		if strings.EqualFold(name, "all") {
			return types.AllSources, nil
		}
		src, err := types.ParseSourceList(name)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid --force source")
		}
		out = append(out, src)
	}
	return out, nil
}
