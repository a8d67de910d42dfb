package homeassistant

import (
	"testing"
	"time"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		entityID string
		want     string
	}{
		{"light.living_room", "light"},
		{"binary_sensor.front_door", "binary_sensor"},
		{"sensor.outdoor.temp", "sensor"},
		{"nodots", "nodots"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Domain(tc.entityID); got != tc.want {
			t.Errorf("Domain(%q) = %q, want %q", tc.entityID, got, tc.want)
		}
	}
}

func TestEntityIcon(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{
			name:   "explicit icon attribute wins",
			entity: Entity{EntityID: "light.desk", Attributes: map[string]any{"icon": "mdi:desk-lamp"}},
			want:   "mdi:desk-lamp",
		},
		{
			name:   "domain default",
			entity: Entity{EntityID: "climate.hallway"},
			want:   "mdi:thermostat",
		},
		{
			name:   "unknown domain",
			entity: Entity{EntityID: "weirdthing.x"},
			want:   "mdi:help-circle",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entity.Icon(); got != tc.want {
				t.Errorf("Icon() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEntityFormatState(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{
			name:   "unit of measurement",
			entity: Entity{EntityID: "sensor.outdoor_temp", State: "21.4", Attributes: map[string]any{"unit_of_measurement": "°C"}},
			want:   "21.4 °C",
		},
		{
			name:   "light on",
			entity: Entity{EntityID: "light.desk", State: "on"},
			want:   "On",
		},
		{
			name:   "switch off",
			entity: Entity{EntityID: "switch.heater", State: "off"},
			want:   "Off",
		},
		{
			name:   "climate with current temperature",
			entity: Entity{EntityID: "climate.hallway", State: "heat", Attributes: map[string]any{"current_temperature": 19.5}},
			want:   "heat (19.5°)",
		},
		{
			name:   "plain state",
			entity: Entity{EntityID: "media_player.tv", State: "playing"},
			want:   "playing",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entity.FormatState(); got != tc.want {
				t.Errorf("FormatState() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEntityControllable(t *testing.T) {
	if !(Entity{EntityID: "light.desk"}).Controllable() {
		t.Error("light should be controllable")
	}
	if (Entity{EntityID: "sensor.outdoor_temp"}).Controllable() {
		t.Error("sensor should not be controllable")
	}
}

func TestEntitySetPatchLeavesOthersUntouched(t *testing.T) {
	set := NewEntitySet()
	set.ReplaceAll([]Entity{
		{EntityID: "light.a", State: "off"},
		{EntityID: "light.b", State: "off"},
	})

	set.Patch(Entity{EntityID: "light.a", State: "on", LastUpdated: time.Now()})

	a, ok := set.Get("light.a")
	if !ok || a.State != "on" {
		t.Errorf("light.a = %+v, want state on", a)
	}
	b, ok := set.Get("light.b")
	if !ok || b.State != "off" {
		t.Errorf("light.b = %+v, want untouched state off", b)
	}
	if set.Len() != 2 {
		t.Errorf("Len = %d, want 2", set.Len())
	}
}

func TestEntitySetReplaceAllDiscardsStale(t *testing.T) {
	set := NewEntitySet()
	set.ReplaceAll([]Entity{{EntityID: "light.old"}})
	set.ReplaceAll([]Entity{{EntityID: "light.new"}})

	if _, ok := set.Get("light.old"); ok {
		t.Error("stale entity survived ReplaceAll")
	}
	if _, ok := set.Get("light.new"); !ok {
		t.Error("new entity missing after ReplaceAll")
	}
}
