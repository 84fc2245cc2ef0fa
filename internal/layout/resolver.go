package layout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/hearth/internal/apps"
)

// Entry is an item joined with its runtime state. Icon and Provider are never
// persisted.
type Entry struct {
	Item     Item
	Icon     []byte
	Provider *apps.ProviderInfo

	// Unresolved is set on widgets whose provider could not be found. The
	// widget keeps its place on the grid.
	Unresolved bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTimeout bounds each host lookup.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// WithConcurrency bounds the number of lookups in flight.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) { r.limit = n }
}

// WithResolverLogger sets the logger for failed lookups.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

// Resolver loads icons and widget providers for a decoded layout. Either
// collaborator may be nil, in which case that state is left empty.
type Resolver struct {
	icons     apps.IconLoader
	providers apps.ProviderRegistry
	timeout   time.Duration
	limit     int
	log       *slog.Logger
}

// NewResolver creates a resolver with a 2s lookup timeout and 4 lookups in
// flight.
func NewResolver(icons apps.IconLoader, providers apps.ProviderRegistry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		icons:     icons,
		providers: providers,
		timeout:   2 * time.Second,
		limit:     4,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns one entry per item, in order. Lookup failures never drop an
// item: a shortcut without an icon keeps a nil Icon and a widget without a
// provider is marked Unresolved. Only cancellation of ctx is an error.
func (r *Resolver) Resolve(ctx context.Context, items []Item) ([]Entry, error) {
	entries := make([]Entry, len(items))
	g, gCtx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	for i, it := range items {
		entries[i].Item = it
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			r.resolve(gCtx, &entries[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Resolver) resolve(ctx context.Context, e *Entry) {
	lookupCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	switch it := e.Item.(type) {
	case Shortcut:
		if r.icons == nil {
			return
		}
		icon, err := r.icons.LoadIcon(lookupCtx, it.PackageName, it.ActivityClassName, it.UserProfileID)
		if err != nil {
			if !errors.Is(err, apps.ErrIconNotFound) {
				r.log.Warn("loading icon failed", "id", it.ID(), "error", err)
			}
			return
		}
		e.Icon = icon

	case Widget:
		if r.providers == nil {
			e.Unresolved = true
			return
		}
		info, err := r.providers.ResolveProvider(lookupCtx, it.PackageName, it.ProviderClassName)
		if err != nil {
			r.log.Warn("widget provider unresolved", "id", it.ID(), "provider", it.ProviderClassName, "error", err)
			e.Unresolved = true
			return
		}
		e.Provider = &info
	}
}
