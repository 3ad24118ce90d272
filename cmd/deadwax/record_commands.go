package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deadwax/internal/catalog"
	"deadwax/internal/fieldset"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Manage catalog records",
	}

	recordCmd.AddCommand(newRecordAddCommand(ctx))
	recordCmd.AddCommand(newRecordSetCommand(ctx))
	recordCmd.AddCommand(newRecordShowCommand(ctx))
	recordCmd.AddCommand(newRecordListCommand(ctx))
	recordCmd.AddCommand(newRecordRemoveCommand(ctx))
	recordCmd.AddCommand(newRecordAttachCommand(ctx))
	recordCmd.AddCommand(newRecordExtractCommand(ctx))

	return recordCmd
}

// standardFlags binds the standard record columns to command flags so add
// and set share one definition.
type standardFlags struct {
	isrc              string
	title             string
	artist            string
	additionalArtists string
	album             string
	releaseDate       string
	length            string
	iswc              string
	upc               string
	genre             string
}

func (f *standardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.isrc, "isrc", "", "Manually assigned code (compact or ISO form)")
	cmd.Flags().StringVar(&f.title, "title", "", "Track title")
	cmd.Flags().StringVar(&f.artist, "artist", "", "Primary artist")
	cmd.Flags().StringVar(&f.additionalArtists, "additional-artists", "", "Featured or additional artists")
	cmd.Flags().StringVar(&f.album, "album", "", "Album or release name")
	cmd.Flags().StringVar(&f.releaseDate, "release-date", "", "Release date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.length, "length", "", "Track length (m:ss or seconds)")
	cmd.Flags().StringVar(&f.iswc, "iswc", "", "Work identifier (T-NNN.NNN.NNN-C)")
	cmd.Flags().StringVar(&f.upc, "upc", "", "Release barcode (12 or 13 digits)")
	cmd.Flags().StringVar(&f.genre, "genre", "", "Genre")
}

// apply copies every changed flag onto the draft. Length parses m:ss.
func (f *standardFlags) apply(cmd *cobra.Command, draft *catalog.Record) error {
	set := func(name string, target *string, value string) {
		if cmd.Flags().Changed(name) {
			*target = value
		}
	}
	set("isrc", &draft.ISRC, f.isrc)
	set("title", &draft.Title, f.title)
	set("artist", &draft.Artist, f.artist)
	set("additional-artists", &draft.AdditionalArtists, f.additionalArtists)
	set("album", &draft.Album, f.album)
	set("release-date", &draft.ReleaseDate, f.releaseDate)
	set("iswc", &draft.ISWC, f.iswc)
	set("upc", &draft.UPC, f.upc)
	set("genre", &draft.Genre, f.genre)
	if cmd.Flags().Changed("length") {
		seconds, err := catalog.ParseTrackLength(f.length)
		if err != nil {
			return err
		}
		draft.LengthSeconds = seconds
	}
	return nil
}

func newRecordAddCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		flags           standardFlags
		assignments     []string
		issueCode       bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record to the catalog",
		Long: "Add a record to the catalog.\n\n" +
			"Pass --issue to allocate the profile's next code during the add, or\n" +
			"--isrc to catalog an externally assigned code. A code carrying the\n" +
			"profile's own prefix moves the sequence cursor past its designation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				if issueCode && cmd.Flags().Changed("isrc") {
					return fmt.Errorf("--issue and --isrc are mutually exclusive")
				}
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}

				var draft catalog.Record
				if err := flags.apply(cmd, &draft); err != nil {
					return err
				}
				if issueCode {
					code, err := s.store.Issue(cmd.Context(), profile.ID, "")
					if err != nil {
						return err
					}
					draft.ISRC = code.Compact()
				}
				rawFields, err := assignmentsToRawFields(assignments)
				if err != nil {
					return err
				}

				record, err := s.store.InsertRecord(cmd.Context(), profile.ID, draft, rawFields)
				if err != nil {
					if renderRowError(cmd, err) {
						return fmt.Errorf("record not added")
					}
					return err
				}

				if record.ISRC != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Added record %d (%s): %s\n",
						record.ID, record.Code().ISO(), record.Title)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Added record %d (no code yet): %s\n",
						record.ID, record.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Custom field value as Field=value (repeatable)")
	cmd.Flags().BoolVar(&issueCode, "issue", false, "Allocate the next code for this record")
	return cmd
}

func newRecordSetCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		flags           standardFlags
		assignments     []string
		unset           []string
	)

	cmd := &cobra.Command{
		Use:   "set ID|ISRC",
		Short: "Edit a record's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				record, err := resolveRecord(cmd, s.store, profile.ID, args[0])
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				draft := *record
				if err := flags.apply(cmd, &draft); err != nil {
					return err
				}
				overrides, err := assignmentsToRawFields(assignments)
				if err != nil {
					return err
				}
				merged := mergeRawFields(defs, record, overrides, unset)

				updated, orphans, err := s.store.UpdateRecord(cmd.Context(), profile.ID, record.ID, draft, merged)
				if err != nil {
					if renderRowError(cmd, err) {
						return fmt.Errorf("record not updated")
					}
					return err
				}
				if len(orphans) > 0 {
					store, err := s.blobs()
					if err != nil {
						return err
					}
					if _, err := store.Cleanup(orphans); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Updated record %d: %s\n", updated.ID, updated.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Custom field value as Field=value (repeatable)")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "Custom field to clear (repeatable)")
	return cmd
}

func newRecordShowCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "show ID|ISRC",
		Short: "Show one record in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				record, err := resolveRecord(cmd, s.store, profile.ID, args[0])
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				code := "(none)"
				if record.ISRC != "" {
					code = record.Code().ISO()
				}
				fmt.Fprintf(out, "Record:       %d\n", record.ID)
				fmt.Fprintf(out, "ISRC:         %s\n", code)
				fmt.Fprintf(out, "Title:        %s\n", record.Title)
				printIfSet(out, "Artist:       %s\n", record.Artist)
				printIfSet(out, "Add. artists: %s\n", record.AdditionalArtists)
				printIfSet(out, "Album:        %s\n", record.Album)
				printIfSet(out, "Released:     %s\n", record.ReleaseDate)
				printIfSet(out, "Length:       %s\n", catalog.FormatTrackLength(record.LengthSeconds))
				printIfSet(out, "ISWC:         %s\n", record.ISWC)
				printIfSet(out, "UPC:          %s\n", record.UPC)
				printIfSet(out, "Genre:        %s\n", record.Genre)
				fmt.Fprintf(out, "Updated:      %s\n", record.UpdatedAt.Format("2006-01-02 15:04:05"))

				if len(defs) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(defs))
				for _, def := range defs {
					value, ok := record.Fields[def.ID]
					display := ""
					if ok {
						if def.Type.IsBlob() {
							display = fmt.Sprintf("%s (%s, %s)", value.Blob.Path,
								humanize.IBytes(uint64(value.Blob.SizeBytes)), value.Blob.MimeType)
						} else {
							display = value.Display()
						}
					}
					rows = append(rows, []string{def.Name, display})
				}
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

type recordListing struct {
	ID     int64             `json:"id"`
	ISRC   string            `json:"isrc,omitempty"`
	Title  string            `json:"title"`
	Artist string            `json:"artist,omitempty"`
	Album  string            `json:"album,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func newRecordListCommand(ctx *commandContext) *cobra.Command {
	var (
		profileOverride string
		fieldFilter     string
		query           string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				records, err := s.store.Records(cmd.Context(), profile.ID, catalog.Filter{
					Field: fieldFilter,
					Query: query,
				})
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}

				if asJSON {
					listings := make([]recordListing, 0, len(records))
					for i := range records {
						rec := &records[i]
						listing := recordListing{
							ID:     rec.ID,
							Title:  rec.Title,
							Artist: rec.Artist,
							Album:  rec.Album,
						}
						if rec.ISRC != "" {
							listing.ISRC = rec.Code().ISO()
						}
						for _, def := range defs {
							value, ok := rec.Fields[def.ID]
							if !ok {
								continue
							}
							if listing.Fields == nil {
								listing.Fields = make(map[string]string)
							}
							listing.Fields[def.Name] = value.Display()
						}
						listings = append(listings, listing)
					}
					return writeJSON(cmd, listings)
				}

				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No records matched")
					return nil
				}

				columns := profile.Layout()
				if len(columns) == 0 {
					columns = defaultListColumns
				}
				headers := make([]string, 0, len(columns)+1)
				headers = append(headers, "ID")
				for _, column := range columns {
					headers = append(headers, columnHeader(column))
				}
				rows := make([][]string, 0, len(records))
				for i := range records {
					rec := records[i]
					row := make([]string, 0, len(columns)+1)
					row = append(row, strconv.FormatInt(rec.ID, 10))
					for _, column := range columns {
						row = append(row, recordCell(rec, defs, column))
					}
					rows = append(rows, row)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, 1))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	cmd.Flags().StringVar(&fieldFilter, "field", "", "Restrict the filter to one column or custom field")
	cmd.Flags().StringVar(&query, "query", "", "Substring filter (searches standard columns unless --field is set)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordRemoveCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "remove ID|ISRC",
		Short: "Remove a record and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				record, err := resolveRecord(cmd, s.store, profile.ID, args[0])
				if err != nil {
					return err
				}
				blobs, err := s.store.DeleteRecord(cmd.Context(), profile.ID, record.ID)
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
					fmt.Fprintf(cmd.OutOrStdout(), "Removed record %d and %d attachments\n", record.ID, removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed record %d\n", record.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newRecordAttachCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "attach ID|ISRC FIELD FILE",
		Short: "Attach an audio or image file to a blob field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				record, err := resolveRecord(cmd, s.store, profile.ID, args[0])
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				def, ok := fieldset.FindDef(defs, args[1])
				if !ok {
					return fmt.Errorf("no field named %q on profile %q", args[1], profile.DisplayName)
				}
				if !def.Type.IsBlob() {
					return fmt.Errorf("field %q is %s, not an attachment field", def.Name, def.Type)
				}

				blobs, err := s.blobs()
				if err != nil {
					return err
				}
				ref, err := blobs.Ingest(cmd.Context(), args[2], def.Type)
				if err != nil {
					return err
				}

				merged := mergeRawFields(defs, record, []fieldset.RawField{{Name: def.Name, Blob: ref}}, nil)
				_, orphans, err := s.store.UpdateRecord(cmd.Context(), profile.ID, record.ID, *record, merged)
				if err != nil {
					// The ingested copy has no row pointing at it; drop it.
					_, _ = blobs.Remove(ref)
					if renderRowError(cmd, err) {
						return fmt.Errorf("attachment not stored")
					}
					return err
				}
				if len(orphans) > 0 {
					if _, err := blobs.Cleanup(orphans); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%s) to %q\n",
					ref.Path, humanize.IBytes(uint64(ref.SizeBytes)), def.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func newRecordExtractCommand(ctx *commandContext) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "extract ID|ISRC FIELD [FILE]",
		Short: "Save a stored attachment back to a file",
		Long: "Save a stored attachment back to a file. The stored copy is " +
			"checked against its recorded digest first. FILE defaults to the " +
			"attachment's name in the current directory.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *session) error {
				profile, err := targetProfile(cmd, s.store, profileOverride)
				if err != nil {
					return err
				}
				record, err := resolveRecord(cmd, s.store, profile.ID, args[0])
				if err != nil {
					return err
				}
				defs, err := s.store.Fields(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				def, ok := fieldset.FindDef(defs, args[1])
				if !ok {
					return fmt.Errorf("no field named %q on profile %q", args[1], profile.DisplayName)
				}
				if !def.Type.IsBlob() {
					return fmt.Errorf("field %q is %s, not an attachment field", def.Name, def.Type)
				}
				value, ok := record.Fields[def.ID]
				if !ok || value.Blob.Path == "" {
					return fmt.Errorf("record %d has no attachment in %q", record.ID, def.Name)
				}

				blobs, err := s.blobs()
				if err != nil {
					return err
				}
				if err := blobs.Verify(value.Blob); err != nil {
					return err
				}
				dest := filepath.Base(value.Blob.Path)
				if len(args) == 3 {
					dest = args[2]
				}
				if err := blobs.ExportTo(value.Blob, dest); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Saved %q attachment of record %d to %s (%s)\n",
					def.Name, record.ID, dest, humanize.IBytes(uint64(value.Blob.SizeBytes)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Profile name (default: active profile)")
	return cmd
}

func printIfSet(out io.Writer, format, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(out, format, value)
}
