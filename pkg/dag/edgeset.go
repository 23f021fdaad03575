package dag

import (
	"encoding/json"
	"slices"
)

// EdgeSet is an insertion-ordered set of edge ids. A nil *EdgeSet is an
// empty set for every read method.
type EdgeSet struct {
	ids   []EdgeID
	index map[EdgeID]struct{}
}

// NewEdgeSet returns a set holding ids, duplicates dropped.
func NewEdgeSet(ids ...EdgeID) *EdgeSet {
	s := &EdgeSet{index: make(map[EdgeID]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *EdgeSet) Add(id EdgeID) bool {
	if s.index == nil {
		s.index = make(map[EdgeID]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (s *EdgeSet) Remove(id EdgeID) bool {
	if s == nil {
		return false
	}
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	s.ids = slices.DeleteFunc(s.ids, func(x EdgeID) bool { return x == id })
	return true
}

// Has reports whether id is in the set.
func (s *EdgeSet) Has(id EdgeID) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids in the set.
func (s *EdgeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the ids in insertion order.
func (s *EdgeSet) IDs() []EdgeID {
	if s == nil {
		return nil
	}
	return slices.Clone(s.ids)
}

// Sorted returns the ids ordered by [EdgeID.Compare].
func (s *EdgeSet) Sorted() []EdgeID {
	ids := s.IDs()
	slices.SortFunc(ids, EdgeID.Compare)
	return ids
}

// Clone returns an independent copy.
func (s *EdgeSet) Clone() *EdgeSet {
	return NewEdgeSet(s.IDs()...)
}

// MarshalJSON encodes the set as an array of {from, to} objects.
func (s *EdgeSet) MarshalJSON() ([]byte, error) {
	ids := s.IDs()
	if ids == nil {
		ids = []EdgeID{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON decodes an array of {from, to} objects.
func (s *EdgeSet) UnmarshalJSON(data []byte) error {
	var ids []EdgeID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = *NewEdgeSet(ids...)
	return nil
}
