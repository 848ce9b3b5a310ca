package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		entry Entry
	}{
		{
			name: "fully populated",
			entry: Entry{
				Id:         12,
				Contents:   "contract A was signed",
				Tags:       []string{"session-a", "legal"},
				Timestamp:  now.Add(-time.Minute),
				InsertedAt: now,
				UpdatedAt:  now,
				IndexedAt:  now,
				Concepts:   []ConceptRef{{ConceptId: 99, Importance: 8}, {ConceptId: 3, Importance: -1}},
				Vector:     []float32{0.5, -0.25, 1},
				Metadata:   map[string]string{"source": "seed"},
			},
		},
		{
			name: "pending entry",
			entry: Entry{
				Id:         1,
				Contents:   "pending",
				Timestamp:  now,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := EntryMUS.Size(tt.entry)
			bs := make([]byte, size)
			n := EntryMUS.Marshal(tt.entry, bs)
			require.Equal(t, size, n)

			decoded, read, err := EntryMUS.Unmarshal(bs)
			require.NoError(t, err)
			assert.Equal(t, n, read)
			assert.Equal(t, tt.entry, decoded)
		})
	}
}

func TestEntryMUS_ZeroIndexedAtStaysPending(t *testing.T) {
	entry := Entry{Id: 5, Contents: "x", Timestamp: time.Now().UTC().Truncate(time.Microsecond)}
	bs := make([]byte, EntryMUS.Size(entry))
	EntryMUS.Marshal(entry, bs)

	decoded, _, err := EntryMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.False(t, decoded.Indexed())
}

func TestEntryMUS_Truncated(t *testing.T) {
	entry := Entry{Id: 5, Contents: "some contents", Tags: []string{"a"}}
	bs := make([]byte, EntryMUS.Size(entry))
	EntryMUS.Marshal(entry, bs)

	_, _, err := EntryMUS.Unmarshal(bs[:4])
	assert.Error(t, err)
}

func TestConceptMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	concept := Concept{
		Id:         IDFromContent("(thing,contract)"),
		Name:       "contract",
		Type:       "thing",
		Vector:     []float32{0.1, 0.2},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	bs := make([]byte, ConceptMUS.Size(concept))
	ConceptMUS.Marshal(concept, bs)

	decoded, _, err := ConceptMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, concept, decoded)
}

func TestCheckpointMUS_RoundTrip(t *testing.T) {
	cp := Checkpoint{
		ProcessorType: "embedding",
		LastID:        1234,
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	bs := make([]byte, CheckpointMUS.Size(cp))
	CheckpointMUS.Marshal(cp, bs)

	decoded, _, err := CheckpointMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, cp, decoded)
}
