package models

import (
	"sync"

	"github.com/aukilabs/voxcull/graph"
)

// SectionStore indexes render sections by their packed coordinate.
type SectionStore struct {
	Name string

	mutex    sync.RWMutex
	sections map[int64]*RenderSection
}

func NewSectionStore(name string) *SectionStore {
	return &SectionStore{
		Name:     name,
		sections: make(map[int64]*RenderSection),
	}
}

// Add adds the given section, replacing the one with the same coordinate.
func (s *SectionStore) Add(section *RenderSection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := section.Coord.Pack()
	if _, ok := s.sections[key]; !ok {
		instrumentIncreaseSectionGauge(s.Name)
	}
	s.sections[key] = section
}

func (s *SectionStore) Remove(c graph.SectionCoord) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := c.Pack()
	if _, ok := s.sections[key]; ok {
		delete(s.sections, key)
		instrumentDecreaseSectionGauge(s.Name)
	}
}

// SectionByCoord returns the section at the given coordinate.
func (s *SectionStore) SectionByCoord(c graph.SectionCoord) (*RenderSection, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	section, ok := s.sections[c.Pack()]
	return section, ok
}

func (s *SectionStore) Sections() []*RenderSection {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sections := make([]*RenderSection, 0, len(s.sections))
	for _, section := range s.sections {
		sections = append(sections, section)
	}
	return sections
}

func (s *SectionStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sections)
}

// Clear removes every section.
func (s *SectionStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	instrumentSubSectionGauge(s.Name, len(s.sections))
	clear(s.sections)
}
