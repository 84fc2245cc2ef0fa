package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/codec"
)

var (
	// ErrUnknownField names a setting that is not in the schema. Update logs and
	// ignores unknown names; Lookup lets strict callers detect them first.
	ErrUnknownField = errors.New("unknown setting")

	// ErrInvalidValue is returned when a value has the wrong type or falls
	// outside the descriptor's bounds.
	ErrInvalidValue = errors.New("invalid setting value")
)

// field binds one descriptor to a typed slot of Snapshot. The table of fields
// is the closed dispatch used by Update instead of reflection.
type field struct {
	desc Descriptor

	get func(s *Snapshot) any

	// encode returns the persisted form; present is false when the value is
	// represented by the absence of the key.
	encode func(s *Snapshot) (raw string, present bool, err error)

	// decode replaces the default already in s with the persisted value, or
	// keeps the default when raw does not decode.
	decode func(s *Snapshot, raw string, log *slog.Logger)

	assign func(s *Snapshot, v any) error
}

func makeField[T any](d Descriptor, c codec.Codec[T], at func(*Snapshot) *T, coerce func(any) (T, bool), absent func(T) bool) field {
	return field{
		desc: d,
		get:  func(s *Snapshot) any { return *at(s) },
		encode: func(s *Snapshot) (string, bool, error) {
			v := *at(s)
			if absent != nil && absent(v) {
				return "", false, nil
			}
			raw, err := c.Encode(v)
			if err != nil {
				return "", false, fmt.Errorf("encoding %s: %w", d.Name, err)
			}
			return raw, true, nil
		},
		decode: func(s *Snapshot, raw string, log *slog.Logger) {
			def := *at(s)
			v := codec.DecodeOrDefault(log, c, d.Name, raw, def)
			if err := d.check(v); err != nil {
				log.Warn("persisted value out of range, using default", "key", d.Name, "error", err)
				v = def
			}
			*at(s) = v
		},
		assign: func(s *Snapshot, v any) error {
			t, ok := coerce(v)
			if !ok {
				return fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidValue, d.Name, d.Kind, v)
			}
			if err := d.check(t); err != nil {
				return err
			}
			*at(s) = t
			return nil
		},
	}
}

func (d Descriptor) check(v any) error {
	switch x := v.(type) {
	case int:
		if len(d.Options) > 0 {
			if x < 0 || x >= len(d.Options) {
				return fmt.Errorf("%w: %s option %d out of range [0, %d)", ErrInvalidValue, d.Name, x, len(d.Options))
			}
			return nil
		}
		return d.checkRange(float64(x))
	case float64:
		return d.checkRange(x)
	case apps.Reference:
		if !x.IsZero() && x.PackageName == "" {
			return fmt.Errorf("%w: %s needs a package name", ErrInvalidValue, d.Name)
		}
	}
	return nil
}

func (d Descriptor) checkRange(x float64) error {
	if d.Max <= d.Min {
		return nil
	}
	// Tolerate float noise from slider steps such as 0.1.
	const eps = 1e-9
	if x < d.Min-eps || x > d.Max+eps {
		return fmt.Errorf("%w: %s value %v out of range [%v, %v]", ErrInvalidValue, d.Name, x, d.Min, d.Max)
	}
	return nil
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return false, false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt || x > math.MaxInt {
			return 0, false
		}
		return int(x), true
	case json.Number:
		i, err := strconv.Atoi(x.String())
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asSet(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return codec.NormalizeSet(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return codec.NormalizeSet(out), true
	}
	return nil, false
}

func asReference(v any) (apps.Reference, bool) {
	switch x := v.(type) {
	case apps.Reference:
		return x, true
	case *apps.Reference:
		if x == nil {
			return apps.Reference{}, true
		}
		return *x, true
	case nil:
		return apps.Reference{}, true
	case string:
		if strings.TrimSpace(x) == "" {
			return apps.Reference{}, true
		}
		ref, err := referenceCodec.Decode(x)
		return ref, err == nil
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return apps.Reference{}, false
		}
		ref, err := referenceCodec.Decode(string(b))
		return ref, err == nil
	}
	return apps.Reference{}, false
}

func boolField(d Descriptor, at func(*Snapshot) *bool) field {
	return makeField(d, codec.Bool, at, asBool, nil)
}

func intField(d Descriptor, at func(*Snapshot) *int) field {
	return makeField(d, codec.Int, at, asInt, nil)
}

func floatField(d Descriptor, at func(*Snapshot) *float64) field {
	return makeField(d, codec.Float, at, asFloat, nil)
}

func stringField(d Descriptor, at func(*Snapshot) *string) field {
	return makeField(d, codec.String, at, asString, nil)
}

func setField(d Descriptor, at func(*Snapshot) *[]string) field {
	return makeField(d, codec.StringSet, at, asSet, nil)
}

func gestureField(d Descriptor, g Gesture) field {
	at := func(s *Snapshot) *apps.Reference { return &s.Gestures[g] }
	return makeField[apps.Reference](d, referenceCodec, at, asReference, apps.Reference.IsZero)
}

// accessors maps every scalar descriptor to its Snapshot slot. Gesture slots
// are bound separately from the gesture table.
var accessors = map[string]func(Descriptor) field{
	"appTheme":           func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.AppTheme }) },
	"showAppNames":       func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.ShowAppNames }) },
	"showAppIcons":       func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.ShowAppIcons }) },
	"iconSize":           func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.IconSize }) },
	"textScale":          func(d Descriptor) field { return floatField(d, func(s *Snapshot) *float64 { return &s.TextScale }) },
	"statusBar":          func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.StatusBar }) },
	"wallpaperDim":       func(d Descriptor) field { return floatField(d, func(s *Snapshot) *float64 { return &s.WallpaperDim }) },
	"gridRows":           func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.GridRows }) },
	"gridColumns":        func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.GridColumns }) },
	"lockHomeScreen":     func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.LockHomeScreen }) },
	"searchType":         func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.SearchType }) },
	"searchAutoLaunch":   func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.SearchAutoLaunch }) },
	"searchWeb":          func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.SearchWeb }) },
	"searchEngineURL":    func(d Descriptor) field { return stringField(d, func(s *Snapshot) *string { return &s.SearchEngineURL }) },
	"calculator":         func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.Calculator }) },
	"showKeyboard":       func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.ShowKeyboard }) },
	"hiddenApps":         func(d Descriptor) field { return setField(d, func(s *Snapshot) *[]string { return &s.HiddenApps }) },
	"sortOrder":          func(d Descriptor) field { return intField(d, func(s *Snapshot) *int { return &s.SortOrder }) },
	"showHiddenInSearch": func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.ShowHiddenInSearch }) },
	"gesturesEnabled":    func(d Descriptor) field { return boolField(d, func(s *Snapshot) *bool { return &s.GesturesEnabled }) },
}

// fields is built once from the descriptor table; every descriptor has
// exactly one field.
var fields, fieldsByName = buildFields(descriptors)

func buildFields(table []Descriptor) ([]field, map[string]*field) {
	list := make([]field, 0, len(table))
	for _, d := range table {
		if g, ok := ParseGesture(d.Name); ok && d.Kind == KindApp {
			list = append(list, gestureField(d, g))
			continue
		}
		bind, ok := accessors[d.Name]
		if !ok {
			panic("settings: descriptor " + d.Name + " has no snapshot field")
		}
		list = append(list, bind(d))
	}
	byName := make(map[string]*field, len(list))
	for i := range list {
		byName[list[i].desc.Name] = &list[i]
	}
	return list, byName
}
