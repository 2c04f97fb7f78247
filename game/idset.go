// game/idset.go
package game

import "encoding/json"

// IDSet is an append-only set of card ids that remembers insertion order.
// The zero value is ready to use.
type IDSet struct {
	ids   []int
	index map[int]struct{}
}

func NewIDSet(ids ...int) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id int) bool {
	if s.index == nil {
		s.index = make(map[int]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s IDSet) Contains(id int) bool {
	_, ok := s.index[id]
	return ok
}

func (s IDSet) Len() int {
	return len(s.ids)
}

// IDs returns the members in insertion order.
func (s IDSet) IDs() []int {
	out := make([]int, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s IDSet) Clone() IDSet {
	return NewIDSet(s.ids...)
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
