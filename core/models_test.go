package core

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "simple", input: "42", want: 42},
		{name: "max", input: "18446744073709551615", want: ID(^uint64(0))},
		{name: "zero", input: "0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-3", wantErr: true},
		{name: "not a number", input: "entry-7", wantErr: true},
		{name: "overflow", input: "18446744073709551616", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Errorf("ParseID(%q) error = %v, want %v", tt.input, err, ErrInvalidID)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("ID.String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestEntry_HasAnyTag(t *testing.T) {
	entry := &Entry{Tags: []string{"session-a", "shared"}}

	tests := []struct {
		name   string
		filter []string
		want   bool
	}{
		{name: "no filter", filter: nil, want: true},
		{name: "matching tag", filter: []string{"session-a"}, want: true},
		{name: "one of several", filter: []string{"session-b", "shared"}, want: true},
		{name: "no match", filter: []string{"session-b"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.HasAnyTag(tt.filter); got != tt.want {
				t.Errorf("HasAnyTag(%v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}

	untagged := &Entry{}
	if untagged.HasAnyTag([]string{"session-a"}) {
		t.Error("untagged entry should not match a tag filter")
	}
}

func TestEntry_Describe(t *testing.T) {
	inserted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{
		Id:         7,
		Contents:   strings.Repeat("é", 100),
		Tags:       []string{"session-a"},
		InsertedAt: inserted,
	}

	meta := entry.Describe()
	if meta.ID != "7" {
		t.Errorf("ID = %q, want %q", meta.ID, "7")
	}
	if got := len([]rune(meta.Preview)); got != previewLength+1 {
		t.Errorf("preview has %d runes, want %d", got, previewLength+1)
	}
	if !strings.HasSuffix(meta.Preview, "…") {
		t.Errorf("preview %q should be truncated with an ellipsis", meta.Preview)
	}
	if meta.Length != len(entry.Contents) {
		t.Errorf("Length = %d, want %d", meta.Length, len(entry.Contents))
	}
	if meta.Indexed {
		t.Error("entry without IndexedAt should not be reported as indexed")
	}
	if !meta.InsertedAt.Equal(inserted) {
		t.Errorf("InsertedAt = %v, want %v", meta.InsertedAt, inserted)
	}

	meta.Tags[0] = "mutated"
	if entry.Tags[0] != "session-a" {
		t.Error("Describe must copy tags")
	}

	entry.Contents = "short"
	entry.IndexedAt = inserted
	meta = entry.Describe()
	if meta.Preview != "short" {
		t.Errorf("Preview = %q, want %q", meta.Preview, "short")
	}
	if !meta.Indexed {
		t.Error("entry with IndexedAt should be reported as indexed")
	}
}

func TestConcept_Tuple(t *testing.T) {
	tests := []struct {
		name    string
		concept Concept
		want    string
	}{
		{
			name: "basic concept",
			concept: Concept{
				Name: "example",
				Type: "thing",
			},
			want: "(thing,example)",
		},
		{
			name: "concept with spaces",
			concept: Concept{
				Name: "example name",
				Type: "thing type",
			},
			want: "(thing type,example name)",
		},
		{
			name: "empty concept",
			concept: Concept{
				Name: "",
				Type: "",
			},
			want: "(,)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.concept.Tuple()
			if got != tt.want {
				t.Errorf("Concept.Tuple() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{1, 2, 2})
	want := []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("NormalizeVector()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := NormalizeVector([]float32{0, 0}); !slices.Equal(got, []float32{0, 0}) {
		t.Errorf("NormalizeVector(zero) = %v", got)
	}
	if got := NormalizeVector(nil); len(got) != 0 {
		t.Errorf("NormalizeVector(nil) = %v", got)
	}

	original := []float32{3, 4}
	NormalizeVector(original)
	if !slices.Equal(original, []float32{3, 4}) {
		t.Errorf("input was modified: %v", original)
	}
}

