package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot and maintain catalog backups",
	}

	backupCmd.AddCommand(newBackupCreateCommand(ctx))
	backupCmd.AddCommand(newBackupListCommand(ctx))
	backupCmd.AddCommand(newBackupVerifyCommand(ctx))
	backupCmd.AddCommand(newBackupPruneCommand(ctx))

	return backupCmd
}

func newBackupCreateCommand(ctx *commandContext) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the live catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				entry, err := s.backups().Snapshot(cmd.Context(), s.store, scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created backup %s (%s, sha256 %s)\n",
					entry.ID, humanize.IBytes(uint64(entry.SizeBytes)), shortHash(entry.SHA256))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Label stored with the snapshot (default: catalog)")
	return cmd
}

type backupListing struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	CreatedAt string `json:"createdAt"`
	SizeBytes int64  `json:"sizeBytes"`
	SHA256    string `json:"sha256"`
}

func newBackupListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInstallation(func(s *session) error {
				backups, err := s.backups().List(cmd.Context())
				if err != nil {
					return err
				}

				if asJSON {
					listings := make([]backupListing, 0, len(backups))
					for _, b := range backups {
						listings = append(listings, backupListing{
							ID:        b.ID,
							Scope:     b.Scope,
							CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
							SizeBytes: b.SizeBytes,
							SHA256:    b.SHA256,
						})
					}
					return writeJSON(cmd, listings)
				}
				if len(backups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No backups yet; create one with `deadwax backup create`")
					return nil
				}
				rows := make([][]string, 0, len(backups))
				for _, b := range backups {
					rows = append(rows, []string{
						b.ID,
						b.Scope,
						humanize.Time(b.CreatedAt),
						humanize.IBytes(uint64(b.SizeBytes)),
						shortHash(b.SHA256),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(),
					renderTable([]string{"ID", "Scope", "Created", "Size", "SHA-256"}, rows, 4))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newBackupVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify ID",
		Short: "Check a backup against its recorded digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInstallation(func(s *session) error {
				entry, err := s.backups().Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup %s is intact (%s, sha256 %s)\n",
					entry.ID, humanize.IBytes(uint64(entry.SizeBytes)), shortHash(entry.SHA256))
				return nil
			})
		},
	}
}

func newBackupPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove the oldest backups past the retention count",
		Long: "Remove the oldest backups past the retention count.\n\n" +
			"Safety copies taken by restores in this session are never pruned.\n" +
			"A retention count of zero disables pruning.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInstallation(func(s *session) error {
				if !cmd.Flags().Changed("keep") {
					keep = s.cfg.Backups.RetentionCount
				}
				removed, err := s.backups().Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				if len(removed) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune")
					return nil
				}
				for _, b := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n",
						b.ID, humanize.Time(b.CreatedAt))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Backups to keep (default: backups.retention_count from config)")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Replace the live catalog with a backup",
		Long: "Replace the live catalog with a backup.\n\n" +
			"The current database is snapshotted first, so a restore can itself\n" +
			"be undone. The catalog must not be open in another process.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInstallation(func(s *session) error {
				if err := s.backups().Restore(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored catalog from %s\n", args[0])
				fmt.Fprintln(cmd.OutOrStdout(), "A pre-restore safety copy was kept; see `deadwax backup list`")
				return nil
			})
		},
	}
}
