package fieldset

import "testing"

func testDefs() []FieldDef {
	return []FieldDef{
		{ID: 1, Name: "Mood", Type: TypeText, SortOrder: 0, Active: true},
		{ID: 2, Name: "Approved", Type: TypeCheckbox, SortOrder: 1, Active: true},
		{ID: 3, Name: "Session Date", Type: TypeDate, SortOrder: 2, Active: true},
		{ID: 4, Name: "Territory", Type: TypeDropdown, Options: []string{"EU", "US"}, SortOrder: 3, Active: true},
		{ID: 5, Name: "Cover", Type: TypeBlobImage, SortOrder: 4, Active: true},
		{ID: 6, Name: "Master", Type: TypeBlobAudio, SortOrder: 5, Active: true},
	}
}

func TestValidateRecordNormalizes(t *testing.T) {
	values, errs := ValidateRecord(testDefs(), []RawField{
		{Name: "mood", Text: "warm"},
		{Name: "Approved", Text: "Yes"},
		{Name: "Session Date", Text: "2025-03-14"},
		{Name: "Territory", Text: "EU"},
		{Name: "Cover", Blob: BlobRef{Path: "blobs/1/cover.png", SizeBytes: 1024, SHA256: "ab", MimeType: "image/png"}},
	})
	if len(errs) != 0 {
		t.Fatalf("ValidateRecord returned errors: %v", errs)
	}
	if len(values) != 5 {
		t.Fatalf("normalized %d values, want 5", len(values))
	}
	if v := values[1]; v.Type != TypeText || v.Text != "warm" {
		t.Fatalf("text value = %+v", v)
	}
	if v := values[2]; v.Type != TypeCheckbox || !v.Bool {
		t.Fatalf("checkbox value = %+v", v)
	}
	if v := values[4]; v.Type != TypeDropdown || v.Text != "EU" {
		t.Fatalf("dropdown value = %+v", v)
	}
	if v := values[5]; v.Type != TypeBlobImage || v.Blob.Path != "blobs/1/cover.png" {
		t.Fatalf("blob value = %+v", v)
	}
}

func TestValidateRecordCollectsAllErrors(t *testing.T) {
	_, errs := ValidateRecord(testDefs(), []RawField{
		{Name: "Mystery", Text: "x"},
		{Name: "Approved", Text: "maybe"},
		{Name: "Session Date", Text: "14-03-2025"},
		{Name: "Territory", Text: "APAC"},
	})
	if len(errs) != 4 {
		t.Fatalf("collected %d errors, want 4: %v", len(errs), errs)
	}
	kinds := map[string]ErrorKind{}
	for _, e := range errs {
		kinds[e.Field] = e.Kind
	}
	if kinds["Mystery"] != ErrUnknownField {
		t.Fatalf("Mystery kind = %s, want unknown_field", kinds["Mystery"])
	}
	for _, field := range []string{"Approved", "Session Date", "Territory"} {
		if kinds[field] != ErrTypeMismatch {
			t.Fatalf("%s kind = %s, want type_mismatch", field, kinds[field])
		}
	}
}

func TestValidateRecordRequired(t *testing.T) {
	defs := []FieldDef{
		{ID: 1, Name: "Mood", Type: TypeText, Required: true, Active: true},
		{ID: 2, Name: "Gone", Type: TypeText, Required: true, Active: false},
	}
	_, errs := ValidateRecord(defs, nil)
	if len(errs) != 1 || errs[0].Kind != ErrMissingField || errs[0].Field != "Mood" {
		t.Fatalf("required check = %v, want one missing_field for Mood", errs)
	}
}

func TestValidateRecordBlobRules(t *testing.T) {
	defs := testDefs()
	_, errs := ValidateRecord(defs, []RawField{
		{Name: "Cover", Text: "not-a-ref"},
	})
	if len(errs) != 1 || errs[0].Kind != ErrTypeMismatch {
		t.Fatalf("text-for-blob = %v, want type_mismatch", errs)
	}

	_, errs = ValidateRecord(defs, []RawField{
		{Name: "Cover", Blob: BlobRef{Path: "blobs/1/huge.png", SizeBytes: MaxBlobBytes + 1}},
	})
	if len(errs) != 1 || errs[0].Kind != ErrBlobTooLarge {
		t.Fatalf("oversize blob = %v, want blob_too_large", errs)
	}

	_, errs = ValidateRecord(defs, []RawField{
		{Name: "Master", Blob: BlobRef{Path: "blobs/1/master.png", SizeBytes: 10}},
	})
	if len(errs) != 1 || errs[0].Kind != ErrTypeMismatch {
		t.Fatalf("wrong-extension blob = %v, want type_mismatch", errs)
	}
}

func TestParseCheckboxSpellings(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"true", true}, {"TRUE", true}, {"Yes", true}, {"1", true},
		{"false", false}, {"no", false}, {"0", false},
	}
	for _, tc := range cases {
		got, ok := ParseCheckbox(tc.raw)
		if !ok || got != tc.want {
			t.Fatalf("ParseCheckbox(%q) = (%v, %v), want (%v, true)", tc.raw, got, ok, tc.want)
		}
	}
	if _, ok := ParseCheckbox("on"); ok {
		t.Fatal("ParseCheckbox accepted unsupported spelling")
	}
}
