package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/hearth/internal/codec"
)

// Key is the store key of the home layout.
const Key = "homeLayout"

const (
	typeShortcut = "shortcut"
	typeWidget   = "widget"
)

// Document is the persisted form of one item: a JSON object tagged by "type".
type Document json.RawMessage

func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d, nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}

type shortcutDoc struct {
	Type              string `json:"type"`
	Row               int    `json:"row"`
	Column            int    `json:"column"`
	RowSpan           int    `json:"rowSpan"`
	ColumnSpan        int    `json:"columnSpan"`
	Label             string `json:"label"`
	PackageName       string `json:"packageName"`
	ActivityClassName string `json:"activityClassName"`
	UserProfileID     int    `json:"userProfileId"`
	Hidden            bool   `json:"hidden"`
}

type widgetDoc struct {
	Type              string `json:"type"`
	Row               int    `json:"row"`
	Column            int    `json:"column"`
	RowSpan           int    `json:"rowSpan"`
	ColumnSpan        int    `json:"columnSpan"`
	WidgetInstanceID  int    `json:"widgetInstanceId"`
	PackageName       string `json:"packageName"`
	ProviderClassName string `json:"providerClassName"`
}

// Serialize returns the persisted form of it.
func Serialize(it Item) (Document, error) {
	var doc any
	switch v := it.(type) {
	case Shortcut:
		doc = shortcutDoc{
			Type:              typeShortcut,
			Row:               v.Row,
			Column:            v.Column,
			RowSpan:           v.RowSpan,
			ColumnSpan:        v.ColumnSpan,
			Label:             v.Label,
			PackageName:       v.PackageName,
			ActivityClassName: v.ActivityClassName,
			UserProfileID:     v.UserProfileID,
			Hidden:            v.Hidden,
		}
	case Widget:
		doc = widgetDoc{
			Type:              typeWidget,
			Row:               v.Row,
			Column:            v.Column,
			RowSpan:           v.RowSpan,
			ColumnSpan:        v.ColumnSpan,
			WidgetInstanceID:  v.WidgetInstanceID,
			PackageName:       v.PackageName,
			ProviderClassName: v.ProviderClassName,
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidItem, it)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding layout item: %w", err)
	}
	return Document(b), nil
}

// Deserialize rebuilds an item from its persisted form. Unknown fields are
// ignored; a missing type, missing identity or bad placement is an error.
func Deserialize(doc Document) (Item, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	var it Item
	switch head.Type {
	case typeShortcut:
		var d shortcutDoc
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		it = Shortcut{
			Placement:         Placement{Row: d.Row, Column: d.Column, RowSpan: d.RowSpan, ColumnSpan: d.ColumnSpan},
			Label:             d.Label,
			PackageName:       d.PackageName,
			ActivityClassName: d.ActivityClassName,
			UserProfileID:     d.UserProfileID,
			Hidden:            d.Hidden,
		}
	case typeWidget:
		var d widgetDoc
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		it = Widget{
			Placement:         Placement{Row: d.Row, Column: d.Column, RowSpan: d.RowSpan, ColumnSpan: d.ColumnSpan},
			WidgetInstanceID:  d.WidgetInstanceID,
			PackageName:       d.PackageName,
			ProviderClassName: d.ProviderClassName,
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, head.Type)
	}

	if err := validateItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

type layoutCodec struct{}

// Codec stores a whole layout as a JSON array of item documents. Decode
// fails only when the array itself is unreadable; malformed or duplicate
// items are logged and skipped so one bad entry never costs the user the
// rest of the grid.
var Codec codec.Codec[[]Item] = layoutCodec{}

func (layoutCodec) Encode(items []Item) (string, error) {
	docs := make([]Document, 0, len(items))
	for _, it := range items {
		doc, err := Serialize(it)
		if err != nil {
			return "", err
		}
		docs = append(docs, doc)
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encoding layout: %w", err)
	}
	return string(b), nil
}

func (layoutCodec) Decode(raw string) ([]Item, error) {
	var docs []Document
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&docs); err != nil {
		return nil, &codec.DecodeError{Type: "layout", Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &codec.DecodeError{Type: "layout", Raw: raw, Err: fmt.Errorf("trailing data after layout")}
	}

	items := make([]Item, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, doc := range docs {
		it, err := Deserialize(doc)
		if err != nil {
			slog.Warn("skipping malformed layout item", "index", i, "error", err)
			continue
		}
		if seen[it.ID()] {
			slog.Warn("skipping duplicate layout item", "index", i, "id", it.ID())
			continue
		}
		seen[it.ID()] = true
		items = append(items, it)
	}
	return items, nil
}

// EncodeLayout returns the persisted form of items.
func EncodeLayout(items []Item) (string, error) {
	return Codec.Encode(items)
}

// DecodeLayout decodes a persisted layout. An unreadable layout yields an
// empty one.
func DecodeLayout(raw string) []Item {
	return codec.DecodeOrDefault(nil, Codec, Key, raw, []Item{})
}
