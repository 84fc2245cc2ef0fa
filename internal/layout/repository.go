package layout

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kalambet/hearth/internal/storage"
)

// Store is the subset of *storage.Store used for the layout.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Edit(ctx context.Context, fn func(tx *storage.Tx) error) error
}

// Repository loads and saves the home layout under Key.
type Repository struct {
	store Store
}

// NewRepository creates a repository over store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Load returns the persisted layout. A missing or unreadable layout is empty;
// only a failing store is an error.
func (r *Repository) Load(ctx context.Context) ([]Item, error) {
	raw, err := r.store.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading layout: %w", err)
	}
	return DecodeLayout(raw), nil
}

// Save replaces the persisted layout with items.
func (r *Repository) Save(ctx context.Context, items []Item) error {
	raw, err := EncodeLayout(items)
	if err != nil {
		return err
	}
	err = r.store.Edit(ctx, func(tx *storage.Tx) error {
		return tx.Set(Key, raw)
	})
	if err != nil {
		return fmt.Errorf("saving layout: %w", err)
	}
	return nil
}

func loadTx(tx *storage.Tx) ([]Item, error) {
	raw, ok, err := tx.Get(Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Item{}, nil
	}
	return DecodeLayout(raw), nil
}

// Reconcile fits the layout stored in tx to a grid of rows by columns.
// Items that still fit keep
// their place. Any other item is clamped into the grid; when the clamped
// place is taken it moves to the first free cell holding its clamped span,
// or failing that a single cell. If no cell is left the whole change is
// rejected with ErrOutOfBounds.
func Reconcile(tx *storage.Tx, rows, columns int) error {
	g := Grid{Rows: rows, Columns: columns}
	items, err := loadTx(tx)
	if err != nil {
		return err
	}

	placed := make([]Item, 0, len(items))
	var misfits []int
	for i, it := range items {
		if g.Fits(it.Place()) == nil {
			placed = append(placed, it)
		} else {
			misfits = append(misfits, i)
		}
	}
	if len(misfits) == 0 {
		return nil
	}

	next := slices.Clone(items)
	for _, i := range misfits {
		it := withPlacement(items[i], g.Clamp(items[i].Place()))
		if g.Place(placed, it, "") != nil {
			p := it.Place()
			cell, ok := g.FreeCell(placed, p.RowSpan, p.ColumnSpan)
			if !ok {
				cell, ok = g.FreeCell(placed, 1, 1)
			}
			if !ok {
				return fmt.Errorf("%w: no free cell left for %s on a %dx%d grid",
					ErrOutOfBounds, it.ID(), g.Rows, g.Columns)
			}
			it = withPlacement(it, cell)
		}
		placed = append(placed, it)
		next[i] = it
	}

	raw, err := EncodeLayout(next)
	if err != nil {
		return err
	}
	return tx.Set(Key, raw)
}
