// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted domain types.
// Timestamps are stored as Unix microseconds.
var (
	IDMUS         = idMUS{}
	EntryMUS      = entryMUS{}
	ConceptMUS    = conceptMUS{}
	ConceptRefMUS = conceptRefMUS{}
	CheckpointMUS = checkpointMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type entryMUS struct{}

func (entryMUS) Marshal(v Entry, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Contents, bs[n:])
	n += marshalStrings(v.Tags, bs[n:])
	n += marshalTime(v.Timestamp, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += marshalTime(v.IndexedAt, bs[n:])
	n += varint.Uint64.Marshal(uint64(len(v.Concepts)), bs[n:])
	for _, ref := range v.Concepts {
		n += ConceptRefMUS.Marshal(ref, bs[n:])
	}
	n += marshalVector(v.Vector, bs[n:])
	n += marshalMetadata(v.Metadata, bs[n:])
	return n
}

func (entryMUS) Unmarshal(bs []byte) (v Entry, n int, err error) {
	var n1 int
	if v.Id, n1, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Contents, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Tags, n1, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += n1
	for _, ts := range []*time.Time{&v.Timestamp, &v.InsertedAt, &v.UpdatedAt, &v.IndexedAt} {
		if *ts, n1, err = unmarshalTime(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	var count uint64
	if count, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if count > 0 {
		v.Concepts = make([]ConceptRef, 0, min(count, uint64(len(bs))))
		for range count {
			var ref ConceptRef
			if ref, n1, err = ConceptRefMUS.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
			v.Concepts = append(v.Concepts, ref)
		}
	}
	if v.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Metadata, n1, err = unmarshalMetadata(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (entryMUS) Size(v Entry) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Contents)
	size += sizeStrings(v.Tags)
	size += sizeTime(v.Timestamp) + sizeTime(v.InsertedAt) + sizeTime(v.UpdatedAt) + sizeTime(v.IndexedAt)
	size += varint.Uint64.Size(uint64(len(v.Concepts)))
	for _, ref := range v.Concepts {
		size += ConceptRefMUS.Size(ref)
	}
	size += sizeVector(v.Vector)
	size += sizeMetadata(v.Metadata)
	return size
}

type conceptMUS struct{}

func (conceptMUS) Marshal(v Concept, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Type, bs[n:])
	n += marshalVector(v.Vector, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (conceptMUS) Unmarshal(bs []byte) (v Concept, n int, err error) {
	var n1 int
	if v.Id, n1, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Type, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (conceptMUS) Size(v Concept) (size int) {
	return IDMUS.Size(v.Id) +
		ord.String.Size(v.Name) +
		ord.String.Size(v.Type) +
		sizeVector(v.Vector) +
		sizeTime(v.InsertedAt) +
		sizeTime(v.UpdatedAt)
}

type conceptRefMUS struct{}

func (conceptRefMUS) Marshal(v ConceptRef, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ConceptId, bs)
	n += varint.Int64.Marshal(int64(v.Importance), bs[n:])
	return n
}

func (conceptRefMUS) Unmarshal(bs []byte) (v ConceptRef, n int, err error) {
	var n1 int
	if v.ConceptId, n1, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	var importance int64
	if importance, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Importance = int(importance)
	return
}

func (conceptRefMUS) Size(v ConceptRef) (size int) {
	return IDMUS.Size(v.ConceptId) + varint.Int64.Size(int64(v.Importance))
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += IDMUS.Marshal(v.LastID, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	var n1 int
	if v.ProcessorType, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.LastID, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (checkpointMUS) Size(v Checkpoint) (size int) {
	return ord.String.Size(v.ProcessorType) + IDMUS.Size(v.LastID) + sizeTime(v.UpdatedAt)
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func marshalStrings(v []string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func unmarshalStrings(bs []byte) (v []string, n int, err error) {
	count, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil || count == 0 {
		return nil, n, err
	}
	v = make([]string, 0, min(count, uint64(len(bs))))
	for range count {
		s, n1, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		v = append(v, s)
	}
	return v, n, nil
}

func sizeStrings(v []string) (size int) {
	size = varint.Uint64.Size(uint64(len(v)))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	count, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil || count == 0 {
		return nil, n, err
	}
	v = make([]float32, 0, min(count, uint64(len(bs))))
	for range count {
		f, n1, err := raw.Float32.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		v = append(v, f)
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Uint64.Size(uint64(len(v)))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalMetadata(m map[string]string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(m)), bs)
	for k, val := range m {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(val, bs[n:])
	}
	return n
}

func unmarshalMetadata(bs []byte) (m map[string]string, n int, err error) {
	count, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil || count == 0 {
		return nil, n, err
	}
	m = make(map[string]string, min(count, uint64(len(bs))))
	for range count {
		k, n1, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		val, n2, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		n += n2
		m[k] = val
	}
	return m, n, nil
}

func sizeMetadata(m map[string]string) (size int) {
	size = varint.Uint64.Size(uint64(len(m)))
	for k, val := range m {
		size += ord.String.Size(k) + ord.String.Size(val)
	}
	return size
}
