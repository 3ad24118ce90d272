package fieldset

import (
	"fmt"
	"strings"
)

// FieldType identifies the value shape of a custom field.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeCheckbox  FieldType = "checkbox"
	TypeDate      FieldType = "date"
	TypeDropdown  FieldType = "dropdown"
	TypeBlobImage FieldType = "blob_image"
	TypeBlobAudio FieldType = "blob_audio"
)

var allTypes = []FieldType{
	TypeText,
	TypeCheckbox,
	TypeDate,
	TypeDropdown,
	TypeBlobImage,
	TypeBlobAudio,
}

var typeSet = func() map[FieldType]struct{} {
	set := make(map[FieldType]struct{}, len(allTypes))
	for _, t := range allTypes {
		set[t] = struct{}{}
	}
	return set
}()

// Types returns every supported field type in display order.
func Types() []FieldType {
	out := make([]FieldType, len(allTypes))
	copy(out, allTypes)
	return out
}

// TypeFromString parses a stored or user-supplied type tag.
func TypeFromString(raw string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := typeSet[t]; !ok {
		return "", fmt.Errorf("unknown field type %q", raw)
	}
	return t, nil
}

// IsBlob reports whether the type stores an attachment reference.
func (t FieldType) IsBlob() bool {
	return t == TypeBlobImage || t == TypeBlobAudio
}

// FieldDef describes one custom column of a profile's schema.
type FieldDef struct {
	ID        int64
	Name      string
	Type      FieldType
	Options   []string
	Required  bool
	SortOrder int
	Active    bool
}

// maxFieldNameLen bounds user-supplied column names.
const maxFieldNameLen = 64

// ValidFieldName reports whether name is usable as a custom column name.
func ValidFieldName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxFieldNameLen {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// FindDef resolves a field name against defs, case-insensitively. Inactive
// definitions do not resolve.
func FindDef(defs []FieldDef, name string) (FieldDef, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, def := range defs {
		if !def.Active {
			continue
		}
		if strings.ToLower(def.Name) == needle {
			return def, true
		}
	}
	return FieldDef{}, false
}

// HasOption reports whether value is one of the definition's dropdown
// options.
func (d FieldDef) HasOption(value string) bool {
	for _, opt := range d.Options {
		if opt == value {
			return true
		}
	}
	return false
}
