package esphome

import (
	"sort"
	"strings"
	"sync"
)

// Entity is one device endpoint announced during enumeration.
type Entity struct {
	// Key is the device-assigned numeric handle. Keys are scoped to a
	// single session and must never be persisted.
	Key uint32

	// Name is the human-readable entity name from the device.
	Name string

	// Type is the entity kind ("cover", "switch", "light", ...).
	Type string

	// ID is the stable derived identifier ("cover-door").
	ID string
}

// DeriveEntityID builds the stable entity identifier from its kind and
// name: lowercased type, a hyphen, then the lowercased name with spaces
// replaced by underscores. "Garage Door" as a cover becomes
// "cover-garage_door".
func DeriveEntityID(entityType, name string) string {
	normalized := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	return strings.ToLower(entityType) + "-" + normalized
}

// Catalog maps between stable entity ids and session-scoped numeric
// keys. It is rebuilt from scratch on every session: keys from a prior
// session are meaningless after reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[string]*Entity
	byKey map[uint32]*Entity
}

// NewCatalog creates an empty entity catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byID:  make(map[string]*Entity),
		byKey: make(map[uint32]*Entity),
	}
}

// Add registers an announced entity. A duplicate key or id replaces
// the earlier entry; the device is authoritative.
func (c *Catalog) Add(entityType, name string, key uint32) Entity {
	entity := Entity{
		Key:  key,
		Name: name,
		Type: strings.ToLower(entityType),
		ID:   DeriveEntityID(entityType, name),
	}

	c.mu.Lock()
	c.byID[entity.ID] = &entity
	c.byKey[entity.Key] = &entity
	c.mu.Unlock()

	return entity
}

// LookupID resolves a stable entity id to its entity.
//
// Returns:
//   - Entity: The catalog entry
//   - bool: False if the id was never announced this session
func (c *Catalog) LookupID(entityID string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entity, ok := c.byID[entityID]
	if !ok {
		return Entity{}, false
	}
	return *entity, true
}

// LookupKey resolves a session key to its entity.
func (c *Catalog) LookupKey(key uint32) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entity, ok := c.byKey[key]
	if !ok {
		return Entity{}, false
	}
	return *entity, true
}

// Len returns the number of catalogued entities.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// AvailableEntityIDs returns all known entity ids grouped by entity
// type, each group sorted for stable output.
func (c *Catalog) AvailableEntityIDs() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	grouped := make(map[string][]string)
	for _, entity := range c.byID {
		grouped[entity.Type] = append(grouped[entity.Type], entity.ID)
	}
	for _, ids := range grouped {
		sort.Strings(ids)
	}

	return grouped
}

// Entities returns a snapshot of all catalogued entities, sorted by id.
func (c *Catalog) Entities() []Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entities := make([]Entity, 0, len(c.byID))
	for _, entity := range c.byID {
		entities = append(entities, *entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return entities
}
