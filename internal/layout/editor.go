package layout

import (
	"context"
	"fmt"
	"slices"

	"github.com/kalambet/hearth/internal/storage"
)

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithLock makes every edit fail with ErrLocked while locked returns true.
func WithLock(locked func() bool) EditorOption {
	return func(e *Editor) { e.locked = locked }
}

// Editor applies structural changes to the layout. Each change reads the
// layout, checks the grid invariants and writes it back in one store
// transaction, so a failed write leaves the persisted layout as it was.
type Editor struct {
	store  Store
	grid   func() Grid
	locked func() bool
}

// NewEditor creates an editor; grid reports the current grid size.
func NewEditor(store Store, grid func() Grid, opts ...EditorOption) *Editor {
	e := &Editor{store: store, grid: grid}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Items returns the persisted layout.
func (e *Editor) Items(ctx context.Context) ([]Item, error) {
	return NewRepository(e.store).Load(ctx)
}

// Add places it on the grid.
func (e *Editor) Add(ctx context.Context, it Item) ([]Item, error) {
	return e.edit(ctx, func(items []Item, g Grid) ([]Item, error) {
		if err := g.Place(items, it, ""); err != nil {
			return nil, err
		}
		return append(items, it), nil
	})
}

// Move puts the item at (row, column), keeping its span.
func (e *Editor) Move(ctx context.Context, id string, row, column int) ([]Item, error) {
	return e.reposition(ctx, id, func(p Placement) Placement {
		p.Row, p.Column = row, column
		return p
	})
}

// Resize changes the span of the item, keeping its position. A span that
// would leave the grid is rejected with ErrOutOfBounds.
func (e *Editor) Resize(ctx context.Context, id string, rowSpan, columnSpan int) ([]Item, error) {
	return e.reposition(ctx, id, func(p Placement) Placement {
		p.RowSpan, p.ColumnSpan = rowSpan, columnSpan
		return p
	})
}

// Remove takes the item off the grid.
func (e *Editor) Remove(ctx context.Context, id string) ([]Item, error) {
	return e.edit(ctx, func(items []Item, _ Grid) ([]Item, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		return slices.Delete(items, i, i+1), nil
	})
}

// SetHidden hides or shows a shortcut without removing it.
func (e *Editor) SetHidden(ctx context.Context, id string, hidden bool) ([]Item, error) {
	return e.edit(ctx, func(items []Item, _ Grid) ([]Item, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		s, ok := items[i].(Shortcut)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a shortcut", ErrInvalidItem, id)
		}
		s.Hidden = hidden
		items[i] = s
		return items, nil
	})
}

func (e *Editor) reposition(ctx context.Context, id string, change func(Placement) Placement) ([]Item, error) {
	return e.edit(ctx, func(items []Item, g Grid) ([]Item, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		moved := withPlacement(items[i], change(items[i].Place()))
		if err := g.Place(items, moved, id); err != nil {
			return nil, err
		}
		items[i] = moved
		return items, nil
	})
}

func (e *Editor) edit(ctx context.Context, fn func(items []Item, g Grid) ([]Item, error)) ([]Item, error) {
	if e.locked != nil && e.locked() {
		return nil, ErrLocked
	}

	var result []Item
	err := e.store.Edit(ctx, func(tx *storage.Tx) error {
		items, err := loadTx(tx)
		if err != nil {
			return err
		}
		next, err := fn(items, e.grid())
		if err != nil {
			return err
		}
		raw, err := EncodeLayout(next)
		if err != nil {
			return err
		}
		if err := tx.Set(Key, raw); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func indexOf(items []Item, id string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ID() == id })
}
