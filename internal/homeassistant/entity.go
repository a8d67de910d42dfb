// Package homeassistant implements the Home Assistant integration: a REST
// client for snapshots and commands, and a WebSocket sync client that keeps a
// per-user in-memory entity set current.
package homeassistant

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entity is one addressable smart-home object, identified as
// "domain.object_id" with a current state string and open attribute mapping.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the prefix before the first dot of an entity id, denoting
// its capability class (light, switch, climate, sensor, ...).
func Domain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i]
	}
	return entityID
}

var domainIcons = map[string]string{
	"light":               "mdi:lightbulb",
	"switch":              "mdi:toggle-switch",
	"sensor":              "mdi:gauge",
	"binary_sensor":       "mdi:checkbox-marked-circle",
	"climate":             "mdi:thermostat",
	"cover":               "mdi:window-shutter",
	"media_player":        "mdi:speaker",
	"camera":              "mdi:camera",
	"lock":                "mdi:lock",
	"alarm_control_panel": "mdi:shield-home",
	"fan":                 "mdi:fan",
	"vacuum":              "mdi:robot-vacuum",
}

// Icon picks the entity's own icon attribute, falling back to a domain default.
func (e Entity) Icon() string {
	if icon, ok := e.Attributes["icon"].(string); ok && icon != "" {
		return icon
	}
	if icon, ok := domainIcons[Domain(e.EntityID)]; ok {
		return icon
	}
	return "mdi:help-circle"
}

// FormatState renders a human-readable state string for widget display.
func (e Entity) FormatState() string {
	if unit, ok := e.Attributes["unit_of_measurement"].(string); ok && unit != "" {
		return e.State + " " + unit
	}

	switch Domain(e.EntityID) {
	case "binary_sensor", "switch", "light":
		if e.State == "on" {
			return "On"
		}
		return "Off"
	case "climate":
		if temp, ok := e.Attributes["current_temperature"]; ok {
			return fmt.Sprintf("%s (%v°)", e.State, temp)
		}
	}
	return e.State
}

var controllableDomains = map[string]bool{
	"light":        true,
	"switch":       true,
	"climate":      true,
	"cover":        true,
	"media_player": true,
	"fan":          true,
	"lock":         true,
}

// Controllable reports whether the dashboard offers controls for the entity.
func (e Entity) Controllable() bool {
	return controllableDomains[Domain(e.EntityID)]
}

// EntitySet is the in-memory last-known state of one Home Assistant instance.
// ReplaceAll swaps the whole set (REST snapshot); Patch updates a single
// entity (state_changed event). Single writer, any number of readers.
type EntitySet struct {
	mu       sync.RWMutex
	entities map[string]Entity
}

func NewEntitySet() *EntitySet {
	return &EntitySet{entities: make(map[string]Entity)}
}

// ReplaceAll discards the current set and installs the snapshot.
func (s *EntitySet) ReplaceAll(entities []Entity) {
	next := make(map[string]Entity, len(entities))
	for _, e := range entities {
		next[e.EntityID] = e
	}

	s.mu.Lock()
	s.entities = next
	s.mu.Unlock()
}

// Patch updates exactly the named entity, leaving all others untouched.
func (s *EntitySet) Patch(e Entity) {
	s.mu.Lock()
	s.entities[e.EntityID] = e
	s.mu.Unlock()
}

// Get returns the entity and whether it is known.
func (s *EntitySet) Get(entityID string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	return e, ok
}

// Snapshot returns a copy of all known entities.
func (s *EntitySet) Snapshot() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out
}

// Len reports the number of known entities.
func (s *EntitySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
