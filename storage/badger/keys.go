package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/membridge/core"
)

// Key prefixes for different data types
const (
	entryPrefix           = "entry"
	entryDatePrefix       = "entdate"
	entryConceptPrefix    = "entcon"
	entryTagPrefix        = "enttag"
	entryPendingPrefix    = "entpend"
	entryIDSeq            = "seq:entry"
	conceptRecordPrefix   = "conrec"
	conceptTypeNamePrefix = "contyna"
	checkpointPrefix      = "chkpt"
)

// makeEntryKey generates a key for an entry by ID.
func makeEntryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entryPrefix, id))
}

// makeEntryDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeEntryDateKey(timestamp time.Time, id core.ID) []byte {
	buf := makePartialEntryDateKey(timestamp)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makePartialEntryDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialEntryDateKey(timestamp time.Time) []byte {
	buf := make([]byte, 0, len(entryDatePrefix)+1+16)
	buf = append(buf, entryDatePrefix+":"...)
	// BigEndian so lexicographic order matches time order
	return binary.BigEndian.AppendUint64(buf, uint64(timestamp.UnixMicro()))
}

// makeEntryConceptKey generates a composite key for the concept index.
// Format: prefix:conceptID:entryID
func makeEntryConceptKey(conceptID, entryID core.ID) []byte {
	buf := makePartialEntryConceptKey(conceptID)
	return binary.BigEndian.AppendUint64(buf, uint64(entryID))
}

// makePartialEntryConceptKey generates a partial key for concept queries.
// Format: prefix:conceptID
func makePartialEntryConceptKey(conceptID core.ID) []byte {
	buf := make([]byte, 0, len(entryConceptPrefix)+1+16)
	buf = append(buf, entryConceptPrefix+":"...)
	return binary.BigEndian.AppendUint64(buf, uint64(conceptID))
}

// makeEntryTagKey generates a composite key for the tag index.
// Format: prefix:tag\x00entryID
// Tags never contain NUL, so the terminator keeps "a" from matching "ab".
func makeEntryTagKey(tag string, entryID core.ID) []byte {
	buf := makePartialEntryTagKey(tag)
	return binary.BigEndian.AppendUint64(buf, uint64(entryID))
}

// makePartialEntryTagKey generates a partial key for tag queries.
func makePartialEntryTagKey(tag string) []byte {
	buf := make([]byte, 0, len(entryTagPrefix)+len(tag)+10)
	buf = append(buf, entryTagPrefix+":"...)
	buf = append(buf, tag...)
	return append(buf, 0)
}

// makeEntryPendingKey generates a key in the pending index.
// Format: prefix:entryID
func makeEntryPendingKey(entryID core.ID) []byte {
	buf := make([]byte, 0, len(entryPendingPrefix)+9)
	buf = append(buf, entryPendingPrefix+":"...)
	return binary.BigEndian.AppendUint64(buf, uint64(entryID))
}

// makeConceptKey generates a key for a concept by ID.
func makeConceptKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", conceptRecordPrefix, id))
}

// makeConceptTupleKey generates a composite key for concept lookup by (type, name).
// Format: prefix:type\x00name
func makeConceptTupleKey(name, conceptType string) []byte {
	buf := make([]byte, 0, len(conceptTypeNamePrefix)+len(conceptType)+len(name)+2)
	buf = append(buf, conceptTypeNamePrefix+":"...)
	buf = append(buf, conceptType...)
	buf = append(buf, 0)
	return append(buf, name...)
}

// makeCheckpointKey generates a key for processor checkpoints.
// Format: prefix:processorType
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, processorType))
}

// prefixOf returns the iteration prefix for a key family.
func prefixOf(family string) []byte {
	return []byte(family + ":")
}
