package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"deadwax/internal/catalog"
	"deadwax/internal/isrc"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage registrant profiles",
	}

	profileCmd.AddCommand(newProfileCreateCommand(ctx))
	profileCmd.AddCommand(newProfileListCommand(ctx))
	profileCmd.AddCommand(newProfileUseCommand(ctx))
	profileCmd.AddCommand(newProfileShowCommand(ctx))
	profileCmd.AddCommand(newProfileRemoveCommand(ctx))
	profileCmd.AddCommand(newProfileLayoutCommand(ctx))
	profileCmd.AddCommand(newProfileSettingsCommand(ctx))

	return profileCmd
}

func newProfileCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME COUNTRY REGISTRANT",
		Short: "Create a registrant profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := s.store.CreateProfile(cmd.Context(), catalog.ProfileMeta{
					DisplayName:    args[0],
					CountryCode:    args[1],
					RegistrantCode: args[2],
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created profile %q with prefix %s-%s\n",
					profile.DisplayName, profile.CountryCode, profile.RegistrantCode)
				if profile.Active {
					fmt.Fprintln(cmd.OutOrStdout(), "It is now the active profile")
				}
				return nil
			})
		},
	}
}

type profileListing struct {
	Name    string `json:"name"`
	Prefix  string `json:"prefix"`
	Records int    `json:"records"`
	Cursor  int    `json:"cursor"`
	Active  bool   `json:"active"`
}

func newProfileListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profiles, err := s.store.Profiles(cmd.Context())
				if err != nil {
					return err
				}

				listings := make([]profileListing, 0, len(profiles))
				for i := range profiles {
					p := &profiles[i]
					count, err := s.store.CountRecords(cmd.Context(), p.ID)
					if err != nil {
						return err
					}
					listings = append(listings, profileListing{
						Name:    p.DisplayName,
						Prefix:  p.CountryCode + "-" + p.RegistrantCode,
						Records: count,
						Cursor:  p.LastIssuedSequence,
						Active:  p.Active,
					})
				}

				if asJSON {
					return writeJSON(cmd, listings)
				}
				if len(listings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No profiles yet; create one with `deadwax profile create`")
					return nil
				}
				rows := make([][]string, 0, len(listings))
				for _, l := range listings {
					rows = append(rows, []string{
						l.Name, l.Prefix, strconv.Itoa(l.Records), strconv.Itoa(l.Cursor), yesNo(l.Active),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(),
					renderTable([]string{"Name", "Prefix", "Records", "Cursor", "Active"}, rows, 3, 4))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProfileUseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "use NAME",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := s.store.SwitchProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active profile is now %q\n", profile.DisplayName)
				return nil
			})
		},
	}
}

func newProfileShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [NAME]",
		Short: "Show one profile in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				var override string
				if len(args) == 1 {
					override = args[0]
				}
				profile, err := targetProfile(cmd, s.store, override)
				if err != nil {
					return err
				}
				count, err := s.store.CountRecords(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				layout := strings.Join(profile.Layout(), ", ")
				if layout == "" {
					layout = strings.Join(defaultListColumns, ", ") + " (default)"
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Profile:       %s\n", profile.DisplayName)
				fmt.Fprintf(out, "Prefix:        %s-%s\n", profile.CountryCode, profile.RegistrantCode)
				fmt.Fprintf(out, "Active:        %s\n", yesNo(profile.Active))
				fmt.Fprintf(out, "Records:       %d\n", count)
				fmt.Fprintf(out, "Custom fields: %d\n", len(defs))
				fmt.Fprintf(out, "Cursor:        %d of %d designations issued\n",
					profile.LastIssuedSequence, isrc.MaxDesignation)
				fmt.Fprintf(out, "Layout:        %s\n", layout)
				fmt.Fprintf(out, "Created:       %s\n", profile.CreatedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newProfileRemoveCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a profile and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := s.store.ProfileByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				count, err := s.store.CountRecords(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				if !confirmed {
					return fmt.Errorf("removing %q deletes %d records and all their attachments; re-run with --yes",
						profile.DisplayName, count)
				}

				blobs, err := s.store.DeleteProfile(cmd.Context(), profile.DisplayName)
				if err != nil {
					return err
				}
				removed := 0
				if len(blobs) > 0 {
					store, err := s.blobs()
					if err != nil {
						return err
					}
					if removed, err = store.Cleanup(blobs); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %q (%d records, %d attachments)\n",
					profile.DisplayName, count, removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the removal")
	return cmd
}

func newProfileLayoutCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "layout COLUMN...",
		Short: "Set the record list columns for a profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				if err := s.store.UpdateColumnLayout(cmd.Context(), profile.ID, args); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Layout for %q is now: %s\n",
					profile.DisplayName, strings.Join(args, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newProfileSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-profile preferences",
	}

	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsListCommand(ctx))

	return settingsCmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				if err := s.store.SetSetting(cmd.Context(), profile.ID, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Read one preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				value, found, err := s.store.Setting(cmd.Context(), profile.ID, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("setting %q is not set for profile %q", args[0], profile.DisplayName)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all preferences of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				settings, err := s.store.Settings(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, settings)
				}
				if len(settings) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No settings for profile %q\n", profile.DisplayName)
					return nil
				}
				keys := make([]string, 0, len(settings))
				for key := range settings {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, settings[key]})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
