package settings

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/kalambet/hearth/internal/storage"
	"github.com/kalambet/hearth/internal/stream"
)

// Store is the subset of *storage.Store the service depends on.
type Store interface {
	Edit(ctx context.Context, fn func(tx *storage.Tx) error) error
	Subscribe() *stream.Subscription[storage.Change]
	Latest() storage.Change
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for warnings. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// GridReconciler fits data laid out on the grid to a new grid size. It runs
// inside the transaction that changes gridRows or gridColumns, and an error
// rejects that change.
type GridReconciler func(tx *storage.Tx, rows, columns int) error

// WithGridReconciler runs fn whenever an update or reset touches the grid size.
func WithGridReconciler(fn GridReconciler) Option {
	return func(s *Service) { s.reconcile = fn }
}

// Service exposes the settings snapshot stream and the write operations on
// it. All writes go through the store; the cached snapshot only advances
// when the store reports a newer committed revision.
type Service struct {
	store     Store
	log       *slog.Logger
	snaps     *stream.Hub[Snapshot]
	reconcile GridReconciler
}

// NewService creates a service seeded with the store's latest state.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   slog.Default(),
		snaps: stream.NewHub[Snapshot](),
	}
	for _, o := range opts {
		o(s)
	}
	s.refresh()
	return s
}

// Run follows the store until ctx is done, republishing a snapshot for every
// committed change, including ones written by other components.
func (s *Service) Run(ctx context.Context) error {
	sub := s.store.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.apply(c)
		}
	}
}

// Current returns the latest snapshot.
func (s *Service) Current() Snapshot {
	snap, _ := s.snaps.Latest()
	return snap
}

// Subscribe returns a stream of snapshots starting with the current one.
// Close the subscription to stop receiving.
func (s *Service) Subscribe() *stream.Subscription[Snapshot] {
	return s.snaps.Subscribe()
}

// Update sets the setting called name to value. Unknown names are logged and
// ignored. Values of the wrong type or out of bounds return ErrInvalidValue.
// Only the named key is written, and nothing is written when the value is
// already in effect. A change of the grid size also runs the grid
// reconciler, whose error rejects the update. Concurrent updates of the same
// setting are last-write-wins.
func (s *Service) Update(ctx context.Context, name string, value any) error {
	_, err := s.UpdateAll(ctx, map[string]any{name: value})
	return err
}

// UpdateAll applies several updates as one batch. Every value is checked
// before anything is written and all of them are written in one
// transaction, so a rejected value leaves the store untouched. Unknown names
// are logged, skipped and returned.
func (s *Service) UpdateAll(ctx context.Context, values map[string]any) ([]string, error) {
	type change struct {
		f       *field
		raw     string
		present bool
	}

	var ignored []string
	changes := make([]change, 0, len(values))
	grid := false
	for _, name := range slices.Sorted(maps.Keys(values)) {
		f, ok := fieldsByName[name]
		if !ok {
			s.log.Warn("ignoring update of unknown setting", "key", name)
			ignored = append(ignored, name)
			continue
		}
		candidate := Defaults()
		if err := f.assign(&candidate, values[name]); err != nil {
			return ignored, err
		}
		raw, present, err := f.encode(&candidate)
		if err != nil {
			return ignored, err
		}
		changes = append(changes, change{f: f, raw: raw, present: present})
		grid = grid || isGridField(name)
	}
	if len(changes) == 0 {
		return ignored, nil
	}

	err := s.store.Edit(ctx, func(tx *storage.Tx) error {
		for _, c := range changes {
			if err := writeField(tx, c.f, c.raw, c.present); err != nil {
				return err
			}
		}
		if grid {
			return s.reconcileGrid(tx)
		}
		return nil
	})
	if err != nil {
		target := "settings"
		if len(changes) == 1 {
			target = changes[0].f.desc.Name
		}
		return ignored, fmt.Errorf("saving %s: %w", target, err)
	}
	s.refresh()
	return ignored, nil
}

func isGridField(name string) bool {
	return name == "gridRows" || name == "gridColumns"
}

// reconcileGrid hands the grid size as persisted in tx to the reconciler.
func (s *Service) reconcileGrid(tx *storage.Tx) error {
	if s.reconcile == nil {
		return nil
	}
	g := Defaults()
	for _, name := range []string{"gridRows", "gridColumns"} {
		raw, ok, err := tx.Get(name)
		if err != nil {
			return err
		}
		if ok {
			fieldsByName[name].decode(&g, raw, s.log)
		}
	}
	return s.reconcile(tx, g.GridRows, g.GridColumns)
}

// writeField stores raw under the field's key unless the effective persisted
// value already encodes to raw.
func writeField(tx *storage.Tx, f *field, raw string, present bool) error {
	name := f.desc.Name
	stored, ok, err := tx.Get(name)
	if err != nil {
		return err
	}
	if !present {
		if ok {
			return tx.Delete(name)
		}
		return nil
	}
	if ok && stored == raw {
		return nil
	}
	if !ok {
		base := Defaults()
		baseRaw, basePresent, err := f.encode(&base)
		if err != nil {
			return err
		}
		if basePresent && baseRaw == raw {
			return nil
		}
	}
	return tx.Set(name, raw)
}

// SetAppHidden adds the app key to, or removes it from, the hidden apps set.
// The set is read and written in one transaction.
func (s *Service) SetAppHidden(ctx context.Context, key string, hidden bool) error {
	if key == "" {
		return fmt.Errorf("%w: empty app key", ErrInvalidValue)
	}
	f := fieldsByName["hiddenApps"]

	err := s.store.Edit(ctx, func(tx *storage.Tx) error {
		current := Defaults()
		stored, ok, err := tx.Get(f.desc.Name)
		if err != nil {
			return err
		}
		if ok {
			f.decode(&current, stored, s.log)
		}

		set := current.HiddenApps
		if hidden {
			set = append(set, key)
		} else {
			set = removeString(set, key)
		}
		if err := f.assign(&current, set); err != nil {
			return err
		}
		raw, present, err := f.encode(&current)
		if err != nil {
			return err
		}
		return writeField(tx, f, raw, present)
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", f.desc.Name, err)
	}
	s.refresh()
	return nil
}

func removeString(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, e := range set {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// Reset deletes every setting key so defaults apply again, and fits the grid
// to the default size. Custom app labels are kept.
func (s *Service) Reset(ctx context.Context) error {
	err := s.store.Edit(ctx, func(tx *storage.Tx) error {
		for i := range fields {
			if err := tx.Delete(fields[i].desc.Name); err != nil {
				return err
			}
		}
		return s.reconcileGrid(tx)
	})
	if err != nil {
		return fmt.Errorf("resetting settings: %w", err)
	}
	s.refresh()
	return nil
}

func (s *Service) refresh() {
	s.apply(s.store.Latest())
}

func (s *Service) apply(c storage.Change) {
	snap := fromValues(c.Values, c.Revision, s.log)
	s.snaps.Update(func(old Snapshot, has bool) (Snapshot, bool) {
		if has && old.revision >= c.Revision {
			return old, false
		}
		return snap, true
	})
}
