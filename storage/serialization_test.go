package storage

import (
	"testing"
	"time"

	"github.com/poiesic/membridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalEntry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &core.Entry{
		Id:         core.ID(4),
		Contents:   "Hello 世界 🌍",
		Tags:       []string{"session-a"},
		Timestamp:  now,
		InsertedAt: now,
		UpdatedAt:  now,
		Concepts: []core.ConceptRef{
			{ConceptId: core.ID(100), Importance: 10},
		},
		Vector: make([]float32, 1536),
	}

	data := MarshalEntry(entry)
	decoded, err := UnmarshalEntry(data)
	require.NoError(t, err)

	assert.Equal(t, entry.Id, decoded.Id)
	assert.Equal(t, entry.Contents, decoded.Contents)
	assert.Equal(t, entry.Tags, decoded.Tags)
	assert.True(t, entry.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, entry.Concepts, decoded.Concepts)
	assert.Len(t, decoded.Vector, 1536)
	assert.False(t, decoded.Indexed())
	assert.Empty(t, decoded.Metadata)
}

func TestUnmarshalEntry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEntry(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalConcept(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	concept := &core.Concept{
		Id:         core.IDFromContent("(location,世界)"),
		Name:       "世界",
		Type:       "location",
		Vector:     []float32{0.1, 0.2, 0.3, 0.4},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalConcept(MarshalConcept(concept))
	require.NoError(t, err)
	assert.Equal(t, concept, decoded)
}

func TestUnmarshalConcept_Invalid(t *testing.T) {
	_, err := UnmarshalConcept([]byte{0xFF, 0xFF, 0xFF})
	assert.Error(t, err)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	cp := &core.Checkpoint{
		ProcessorType: "concept",
		LastID:        core.ID(77),
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)
	assert.Equal(t, cp, decoded)
}
