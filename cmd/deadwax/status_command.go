package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deadwax/internal/catalog"
	"deadwax/internal/preflight"
)

type statusReport struct {
	Checks        []preflight.Result     `json:"checks"`
	Database      catalog.DatabaseHealth `json:"database"`
	ActiveProfile string                 `json:"activeProfile,omitempty"`
	Cursor        int                    `json:"cursor,omitempty"`
	Backups       int                    `json:"backups"`
	AuditLog      string                 `json:"auditLog"`
	Healthy       bool                   `json:"healthy"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check installation health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				report := statusReport{Healthy: true}
				report.Checks = preflight.RunAll(s.cfg)
				for _, check := range report.Checks {
					if !check.Passed {
						report.Healthy = false
					}
				}

				health, healthErr := s.store.CheckHealth(cmd.Context())
				report.Database = health
				if healthErr != nil || !health.IntegrityOK {
					report.Healthy = false
				}

				active, err := s.store.ActiveProfile(cmd.Context())
				switch {
				case err == nil:
					report.ActiveProfile = active.DisplayName
					report.Cursor = active.LastIssuedSequence
				case errors.Is(err, catalog.ErrNotFound):
					// A fresh installation has no profiles yet.
				default:
					return err
				}

				backups, err := s.backups().List(cmd.Context())
				if err != nil {
					return err
				}
				report.Backups = len(backups)
				report.AuditLog = s.audit.Path()

				if asJSON {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					renderStatusReport(cmd, &report)
				}
				if !report.Healthy {
					return fmt.Errorf("status found problems")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderStatusReport(cmd *cobra.Command, report *statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	sectionHeader(out, "Filesystem", colorize)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusFail
		}
		fmt.Fprintln(out, statusLine(check.Name, kind, check.Detail, colorize))
	}

	fmt.Fprintln(out)
	sectionHeader(out, "Database", colorize)
	health := report.Database
	if !health.DatabaseExists {
		fmt.Fprintln(out, statusLine("Catalog", statusWarn, "not created yet", colorize))
	} else {
		detail := fmt.Sprintf("%s (%s)", health.Path, humanize.IBytes(uint64(health.SizeBytes)))
		fmt.Fprintln(out, statusLine("Catalog", statusOK, detail, colorize))

		integrity, kind := "ok", statusOK
		if !health.IntegrityOK {
			integrity, kind = "FAILED", statusFail
			if health.Error != "" {
				integrity += ": " + health.Error
			}
		}
		fmt.Fprintln(out, statusLine("Integrity", kind, integrity, colorize))
		fmt.Fprintln(out, statusLine("Schema version", statusInfo, health.SchemaVersion, colorize))
		fmt.Fprintln(out, statusLine("Profiles", statusInfo, fmt.Sprint(health.Profiles), colorize))
		fmt.Fprintln(out, statusLine("Records", statusInfo, fmt.Sprint(health.Records), colorize))
	}

	fmt.Fprintln(out)
	sectionHeader(out, "Catalog", colorize)
	if report.ActiveProfile != "" {
		fmt.Fprintln(out, statusLine("Active profile", statusInfo, report.ActiveProfile, colorize))
		fmt.Fprintln(out, statusLine("Sequence cursor", statusInfo, fmt.Sprint(report.Cursor), colorize))
	} else {
		fmt.Fprintln(out, statusLine("Active profile", statusWarn, "none; create one with `deadwax profile create`", colorize))
	}
	fmt.Fprintln(out, statusLine("Backups", statusInfo, fmt.Sprint(report.Backups), colorize))
	fmt.Fprintln(out, statusLine("Audit log", statusInfo, report.AuditLog, colorize))

	if !report.Healthy {
		fmt.Fprintln(out)
		failed := make([]string, 0, len(report.Checks))
		for _, check := range report.Checks {
			if !check.Passed {
				failed = append(failed, check.Name)
			}
		}
		if len(failed) > 0 {
			fmt.Fprintf(out, "Failing checks: %s\n", strings.Join(failed, ", "))
		}
	}
}
