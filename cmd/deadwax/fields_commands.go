package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deadwax/internal/fieldset"
)

func newFieldsCommand(ctx *commandContext) *cobra.Command {
	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "Manage a profile's custom fields",
	}

	fieldsCmd.AddCommand(newFieldsListCommand(ctx))
	fieldsCmd.AddCommand(newFieldsAddCommand(ctx))
	fieldsCmd.AddCommand(newFieldsRenameCommand(ctx))
	fieldsCmd.AddCommand(newFieldsRemoveCommand(ctx))
	fieldsCmd.AddCommand(newFieldsReorderCommand(ctx))
	fieldsCmd.AddCommand(newFieldsOptionsCommand(ctx))
	fieldsCmd.AddCommand(newFieldsRequireCommand(ctx))

	return fieldsCmd
}

type fieldListing struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

func newFieldsListCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the profile's custom fields in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				if asJSON {
					listings := make([]fieldListing, 0, len(defs))
					for _, def := range defs {
						listings = append(listings, fieldListing{
							Name:     def.Name,
							Type:     string(def.Type),
							Required: def.Required,
							Options:  def.Options,
						})
					}
					return writeJSON(cmd, listings)
				}
				if len(defs) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Profile %q has no custom fields\n", profile.DisplayName)
					return nil
				}
				rows := make([][]string, 0, len(defs))
				for _, def := range defs {
					rows = append(rows, []string{
						def.Name,
						string(def.Type),
						yesNo(def.Required),
						strings.Join(def.Options, ", "),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(),
					renderTable([]string{"Name", "Type", "Required", "Options"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFieldsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		options         []string
		required        bool
	)

	typeNames := make([]string, 0, len(fieldset.Types()))
	for _, t := range fieldset.Types() {
		typeNames = append(typeNames, string(t))
	}

	cmd := &cobra.Command{
		Use:   "add NAME TYPE",
		Short: "Add a custom field",
		Long: "Add a custom field to the profile's schema.\n\n" +
			"TYPE is one of: " + strings.Join(typeNames, ", ") + ".\n" +
			"Dropdown fields need at least one --options value.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				fieldType, err := fieldset.TypeFromString(args[1])
				if err != nil {
					return err
				}
				def, err := s.store.AddField(cmd.Context(), profile.ID, fieldset.FieldDef{
					Name:     args[0],
					Type:     fieldType,
					Options:  options,
					Required: required,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s field %q to profile %q\n",
					def.Type, def.Name, profile.DisplayName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().StringSliceVar(&options, "options", nil, "Dropdown choices (comma separated or repeated)")
	cmd.Flags().BoolVar(&required, "required", false, "Require a value on every record")
	return cmd
}

func newFieldsRenameCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a custom field, keeping its values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				def, err := s.store.RenameField(cmd.Context(), profile.ID, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed field %q to %q\n", args[0], def.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newFieldsRemoveCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		force           bool
	)

	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a custom field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				blobs, err := s.store.RemoveField(cmd.Context(), profile.ID, args[0], force)
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
				if removed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed field %q and %d attachments\n", args[0], removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed field %q\n", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().BoolVar(&force, "force", false, "Remove even when records still hold values for the field")
	return cmd
}

func newFieldsReorderCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "reorder NAME...",
		Short: "Set the display order of all custom fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				if err := s.store.ReorderFields(cmd.Context(), profile.ID, args); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Field order is now: %s\n", strings.Join(args, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newFieldsOptionsCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		options         []string
	)

	cmd := &cobra.Command{
		Use:   "options NAME",
		Short: "Replace the choices of a dropdown field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				def, err := s.store.SetFieldOptions(cmd.Context(), profile.ID, args[0], options)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Options for %q are now: %s\n",
					def.Name, strings.Join(def.Options, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().StringSliceVar(&options, "options", nil, "Dropdown choices (comma separated or repeated)")
	_ = cmd.MarkFlagRequired("options")
	return cmd
}

func newFieldsRequireCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "require NAME true|false",
		Short: "Toggle whether a field needs a value on every record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				var required bool
				switch strings.ToLower(args[1]) {
				case "true", "yes", "1":
					required = true
				case "false", "no", "0":
					required = false
				default:
					return fmt.Errorf("expected true or false, got %q", args[1])
				}
				def, err := s.store.SetFieldRequired(cmd.Context(), profile.ID, args[0], required)
				if err != nil {
					return err
				}
				if def.Required {
					fmt.Fprintf(cmd.OutOrStdout(), "Field %q is now required\n", def.Name)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Field %q is now optional\n", def.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}
