package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIssueCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		yearOverride    string
		count           int
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue the next ISRC from the active profile's sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				if count < 1 {
					return fmt.Errorf("count must be at least 1, got %d", count)
				}
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				for i := 0; i < count; i++ {
					code, err := s.store.Issue(cmd.Context(), profile.ID, yearOverride)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), code.ISO())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().StringVar(&yearOverride, "year", "", "Two-digit year code override (default: current year)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of codes to issue")
	return cmd
}

func newAdoptCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "adopt CODE...",
		Short: "Register externally assigned ISRCs with the allocator",
		Long: "Register externally assigned ISRCs with the allocator.\n\n" +
			"Codes carrying the profile's own prefix move the sequence cursor\n" +
			"forward past their designation so future issues cannot collide.\n" +
			"Foreign-prefix codes are accepted without touching the cursor.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				for _, raw := range args {
					code, advanced, err := s.store.Adopt(cmd.Context(), profile.ID, raw)
					if err != nil {
						return err
					}
					switch {
					case advanced:
						fmt.Fprintf(cmd.OutOrStdout(), "%s adopted, cursor moved to %d\n",
							code.ISO(), code.Designation)
					case code.Country == profile.CountryCode && code.Registrant == profile.RegistrantCode:
						fmt.Fprintf(cmd.OutOrStdout(), "%s adopted, cursor already past %d\n",
							code.ISO(), code.Designation)
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "%s adopted (foreign prefix, cursor untouched)\n",
							code.ISO())
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}
