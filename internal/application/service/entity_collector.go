package service

import (
	"sync"

	"commerce-agent/internal/domain/entity"
)

// EntityCollector accumulates entities discovered while handling one
// request. Entities with the same name are merged, never duplicated.
type EntityCollector struct {
	mu       sync.RWMutex
	entities []entity.NamedEntity
	index    map[string]int
}

func NewEntityCollector() *EntityCollector {
	return &EntityCollector{
		index: make(map[string]int),
	}
}

// AddEntity unions the type set and shallow-merges metadata into an
// existing entity of the same name, or appends a new one.
func (c *EntityCollector) AddEntity(name string, types []string, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[name]; ok {
		existing := &c.entities[i]
		existing.Types = unionTypes(existing.Types, types)
		if len(metadata) > 0 && existing.Metadata == nil {
			existing.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			existing.Metadata[k] = v
		}
		return
	}

	e := entity.NamedEntity{
		Name:  name,
		Types: unionTypes(nil, types),
	}
	if len(metadata) > 0 {
		e.Metadata = make(map[string]any, len(metadata))
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
	c.index[name] = len(c.entities)
	c.entities = append(c.entities, e)
}

// Entities returns a copy in insertion order.
func (c *EntityCollector) Entities() []entity.NamedEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.NamedEntity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e.Clone())
	}
	return out
}

func (c *EntityCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

func (c *EntityCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities = nil
	c.index = make(map[string]int)
}

func unionTypes(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]bool, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, t := range list {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
