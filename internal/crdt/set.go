package crdt

import (
	"maps"
	"slices"
	"sync"
)

// EntitySet хранит в памяти по одной версии каждой сущности и сливает
// повторные версии того же ID через MergeEntity. Используется для
// схлопывания дубликатов внутри пачки синхронизации до записи на диск.
type EntitySet struct {
	elements map[string]*Entity // map[id]entity
	mu       sync.RWMutex       // мьютекс для потокобезопасности
}

// NewEntitySet создает пустой набор.
func NewEntitySet() *EntitySet {
	return &EntitySet{
		elements: make(map[string]*Entity),
	}
}

// Add добавляет сущность или сливает ее с уже имеющейся версией.
// Возвращает true, если состояние набора изменилось.
func (s *EntitySet) Add(e *Entity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.elements[e.ID]
	if !exists {
		s.elements[e.ID] = e.Clone()
		return true, nil
	}

	merged, err := MergeEntity(existing, e)
	if err != nil {
		return false, err
	}

	before, err := Digest(existing)
	if err != nil {
		return false, err
	}
	after, err := Digest(merged)
	if err != nil {
		return false, err
	}

	s.elements[e.ID] = merged
	return before != after, nil
}

// Get возвращает копию сущности по ID или nil.
func (s *EntitySet) Get(id string) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.elements[id]
	if !exists {
		return nil
	}
	return e.Clone()
}

// All возвращает копии всех сущностей (включая удаленные) в порядке ID.
func (s *EntitySet) All() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entity, 0, len(s.elements))
	for _, id := range slices.Sorted(maps.Keys(s.elements)) {
		result = append(result, s.elements[id].Clone())
	}
	return result
}

// Merge сливает другой набор в текущий.
func (s *EntitySet) Merge(other *EntitySet) error {
	for _, e := range other.All() {
		if _, err := s.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Size возвращает количество сущностей в наборе.
func (s *EntitySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.elements)
}
