// Package layout persists the home-screen grid: shortcuts and widgets placed
// by row, column and span. Only the stable identity of each item is stored;
// icons and live widget providers are joined back in by Resolver after load.
package layout

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kalambet/hearth/internal/apps"
)

var (
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrInvalidItem      = errors.New("invalid layout item")
	ErrOutOfBounds      = errors.New("item does not fit the grid")
	ErrOverlap          = errors.New("item overlaps another item")
	ErrDuplicate        = errors.New("item already on the grid")
	ErrItemNotFound     = errors.New("item not on the grid")
	ErrLocked           = errors.New("home screen is locked")
)

// Placement is the grid rectangle of an item. Row and Column are 0-based.
type Placement struct {
	Row        int
	Column     int
	RowSpan    int
	ColumnSpan int
}

// Validate checks the placement on its own, without a grid.
func (p Placement) Validate() error {
	if p.Row < 0 || p.Column < 0 {
		return fmt.Errorf("%w: negative position (%d,%d)", ErrInvalidPlacement, p.Row, p.Column)
	}
	if p.RowSpan < 1 || p.ColumnSpan < 1 {
		return fmt.Errorf("%w: span %dx%d", ErrInvalidPlacement, p.RowSpan, p.ColumnSpan)
	}
	return nil
}

// Overlaps reports whether p and q share at least one cell.
func (p Placement) Overlaps(q Placement) bool {
	return p.Row < q.Row+q.RowSpan && q.Row < p.Row+p.RowSpan &&
		p.Column < q.Column+q.ColumnSpan && q.Column < p.Column+p.ColumnSpan
}

// Item is a Shortcut or a Widget.
type Item interface {
	ID() string
	Place() Placement
	isItem()
}

// Shortcut launches an app activity. Its icon is never stored; it is loaded
// on demand from (PackageName, ActivityClassName, UserProfileID).
type Shortcut struct {
	Placement
	Label             string
	PackageName       string
	ActivityClassName string
	UserProfileID     int
	Hidden            bool
}

// NewShortcut places the app referenced by ref at p.
func NewShortcut(ref apps.Reference, p Placement) Shortcut {
	return Shortcut{
		Placement:         p,
		Label:             ref.Label,
		PackageName:       ref.PackageName,
		ActivityClassName: ref.ActivityClassName,
		UserProfileID:     ref.UserProfileID,
	}
}

// ID is the app identity key of the shortcut.
func (s Shortcut) ID() string { return apps.Key(s.PackageName, s.UserProfileID) }

func (s Shortcut) Place() Placement { return s.Placement }

// Reference returns the launch target of the shortcut.
func (s Shortcut) Reference() apps.Reference {
	return apps.Reference{
		Label:             s.Label,
		PackageName:       s.PackageName,
		ActivityClassName: s.ActivityClassName,
		UserProfileID:     s.UserProfileID,
	}
}

func (Shortcut) isItem() {}

// Widget embeds a host widget instance. The provider that renders it is
// resolved from the host registry and may be missing after an uninstall.
type Widget struct {
	Placement
	WidgetInstanceID  int
	PackageName       string
	ProviderClassName string
}

// WidgetID builds the item id of a widget instance.
func WidgetID(instanceID int) string { return "widget_" + strconv.Itoa(instanceID) }

func (w Widget) ID() string { return WidgetID(w.WidgetInstanceID) }

func (w Widget) Place() Placement { return w.Placement }

func (Widget) isItem() {}

func validateItem(it Item) error {
	switch v := it.(type) {
	case Shortcut:
		if v.PackageName == "" {
			return fmt.Errorf("%w: shortcut without package name", ErrInvalidItem)
		}
	case Widget:
		if v.PackageName == "" || v.ProviderClassName == "" {
			return fmt.Errorf("%w: widget %d without provider", ErrInvalidItem, v.WidgetInstanceID)
		}
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidItem, it)
	}
	return it.Place().Validate()
}

func withPlacement(it Item, p Placement) Item {
	switch v := it.(type) {
	case Shortcut:
		v.Placement = p
		return v
	case Widget:
		v.Placement = p
		return v
	}
	return it
}
