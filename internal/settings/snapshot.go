package settings

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/codec"
)

// RenamesKey is the store key of the rename map.
const RenamesKey = "renamedApps"

var renameCodec = codec.JSON[map[string]string]("rename map")

// Snapshot is one complete, immutable view of every setting. Missing or
// malformed persisted values are replaced by defaults, so every field always
// holds a usable value. Snapshots are passed by value; treat HiddenApps as
// read-only.
type Snapshot struct {
	AppTheme     int
	ShowAppNames bool
	ShowAppIcons bool
	IconSize     int
	TextScale    float64
	StatusBar    bool
	WallpaperDim float64

	GridRows       int
	GridColumns    int
	LockHomeScreen bool

	SearchType       int
	SearchAutoLaunch bool
	SearchWeb        bool
	SearchEngineURL  string
	Calculator       bool
	ShowKeyboard     bool

	HiddenApps         []string
	SortOrder          int
	ShowHiddenInSearch bool

	GesturesEnabled bool
	Gestures        [gestureCount]apps.Reference

	renames  map[string]string
	revision uint64
}

// Defaults returns the snapshot of a fresh install.
func Defaults() Snapshot {
	return Snapshot{
		AppTheme:     0,
		ShowAppNames: true,
		ShowAppIcons: true,
		IconSize:     48,
		TextScale:    1,
		StatusBar:    true,
		WallpaperDim: 0,

		GridRows:    6,
		GridColumns: 4,

		SearchType:      0,
		SearchWeb:       true,
		SearchEngineURL: "https://duckduckgo.com/?q=%s",
		Calculator:      true,
		ShowKeyboard:    true,

		HiddenApps: []string{},
		SortOrder:  0,

		GesturesEnabled: true,

		renames: map[string]string{},
	}
}

// fromValues decodes a raw store map. Absent keys keep their defaults;
// malformed values are logged and replaced by defaults.
func fromValues(values map[string]string, revision uint64, log *slog.Logger) Snapshot {
	s := Defaults()
	s.revision = revision
	for i := range fields {
		if raw, ok := values[fields[i].desc.Name]; ok {
			fields[i].decode(&s, raw, log)
		}
	}
	if raw, ok := values[RenamesKey]; ok {
		s.renames = decodeRenames(raw, log)
	}
	return s
}

// Revision is the store revision the snapshot was decoded from.
func (s Snapshot) Revision() uint64 { return s.revision }

// Value returns the value of the named setting.
func (s Snapshot) Value(name string) (any, bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return nil, false
	}
	v := f.get(&s)
	if set, ok := v.([]string); ok {
		v = slices.Clone(set)
	}
	return v, true
}

// Values returns every setting keyed by name.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(fields))
	for i := range fields {
		out[fields[i].desc.Name], _ = s.Value(fields[i].desc.Name)
	}
	return out
}

// Encoded returns the persisted form of every setting that has one. Unbound
// gesture slots are omitted.
func (s Snapshot) Encoded() (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for i := range fields {
		raw, present, err := fields[i].encode(&s)
		if err != nil {
			return nil, err
		}
		if present {
			out[fields[i].desc.Name] = raw
		}
	}
	return out, nil
}

// Enabled reports whether the setting's DependsOn chain is switched on.
// Settings without a gate, and unknown names, are always enabled.
func (s Snapshot) Enabled(name string) bool {
	for seen := 0; seen < len(fields); seen++ {
		f, ok := fieldsByName[name]
		if !ok || f.desc.DependsOn == "" {
			return true
		}
		v, _ := s.Value(f.desc.DependsOn)
		if on, ok := v.(bool); !ok || !on {
			return false
		}
		name = f.desc.DependsOn
	}
	return true
}

// IsHidden reports whether the app with identity key key is hidden.
func (s Snapshot) IsHidden(key string) bool {
	_, found := slices.BinarySearch(s.HiddenApps, key)
	return found
}

// Label returns the user's custom label for the app key, or def.
func (s Snapshot) Label(key, def string) string {
	if l, ok := s.renames[key]; ok {
		return l
	}
	return def
}

// Renames returns a copy of the rename map.
func (s Snapshot) Renames() map[string]string {
	return maps.Clone(s.renames)
}

type snapshotView struct {
	Revision uint64            `json:"revision"`
	Values   map[string]any    `json:"values"`
	Renames  map[string]string `json:"renamedApps"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	values := s.Values()
	for _, g := range Gestures() {
		if s.Gestures[g].IsZero() {
			values[g.Key()] = nil
		}
	}
	renames := s.Renames()
	if renames == nil {
		renames = map[string]string{}
	}
	return json.Marshal(snapshotView{Revision: s.revision, Values: values, Renames: renames})
}
