package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deadwax/internal/exchange"
	"deadwax/internal/textutil"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		outPath         string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a profile's schema and records as XML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				payload, err := s.pipeline().Export(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				target := outPath
				if target == "" {
					name := fmt.Sprintf("%s-%s.xml",
						textutil.SanitizeFileName(profile.DisplayName),
						time.Now().Format("2006-01-02"))
					target = filepath.Join(s.cfg.Paths.ExportDir, name)
				}
				if err := os.WriteFile(target, payload, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s (%s)\n",
					profile.DisplayName, target, humanize.IBytes(uint64(len(payload))))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default: export_dir/<profile>-<date>.xml)")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		dryRun          bool
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an exported payload into a profile",
		Long: "Import an exported payload into a profile.\n\n" +
			"The payload is analyzed first; --dry-run stops there. A commit\n" +
			"skips invalid and duplicate rows but refuses the whole payload\n" +
			"when it references columns the profile's schema does not define.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				payload, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}

				pipeline := s.pipeline()
				report, err := pipeline.DryRun(cmd.Context(), profile.ID, payload)
				if err != nil {
					return err
				}

				if !dryRun {
					report, err = pipeline.Commit(cmd.Context(), profile.ID, payload)
					if report != nil {
						if renderErr := renderImportReport(cmd, report, asJSON); renderErr != nil {
							return renderErr
						}
					}
					return err
				}
				return renderImportReport(cmd, report, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Analyze only; leave the catalog untouched")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderImportReport(cmd *cobra.Command, report *exchange.ImportReport, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Total rows", strconv.Itoa(report.TotalRows)},
		{"Valid", strconv.Itoa(report.ValidRows)},
		{"Invalid", strconv.Itoa(report.InvalidRows)},
		{"Duplicates", strconv.Itoa(report.DuplicateRows)},
	}
	if report.Committed > 0 {
		rows = append(rows, []string{"Imported", strconv.Itoa(report.Committed)})
	}
	fmt.Fprint(out, renderTable([]string{"Outcome", "Rows"}, rows, 2))

	if len(report.MissingColumns) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "The payload references columns the schema does not define:")
		missing := make([][]string, 0, len(report.MissingColumns))
		for _, col := range report.MissingColumns {
			missing = append(missing, []string{col.Name, string(col.InferredType)})
		}
		fmt.Fprint(out, renderTable([]string{"Column", "Inferred Type"}, missing))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Add them with `deadwax fields add` and retry, or drop them from the payload.")
	}

	if len(report.Issues) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Skipped rows:")
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "  - %s\n", issue.Describe())
		}
	}
	return nil
}
