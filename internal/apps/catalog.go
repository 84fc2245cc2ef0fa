package apps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// CatalogFile is the catalog location relative to the XDG config dirs.
const CatalogFile = "hearth/apps.toml"

// Catalog is a file-backed host for machines without a launcher-capable OS
// API. It enumerates apps, loads icons from disk and resolves widget
// providers from the same TOML document.
type Catalog struct {
	dir       string
	apps      []catalogApp
	providers map[string]catalogWidget
}

type catalogFile struct {
	Apps    []catalogApp    `toml:"app"`
	Widgets []catalogWidget `toml:"widget"`
}

type catalogApp struct {
	Label       string    `toml:"label"`
	Package     string    `toml:"package"`
	Activity    string    `toml:"activity"`
	User        int       `toml:"user"`
	InstalledAt time.Time `toml:"installed_at"`
	Icon        string    `toml:"icon"`
}

type catalogWidget struct {
	Package    string `toml:"package"`
	Provider   string `toml:"provider"`
	Label      string `toml:"label"`
	MinRows    int    `toml:"min_rows"`
	MinColumns int    `toml:"min_columns"`
}

// LoadCatalog reads a catalog from path. An empty path searches the XDG config
// directories for CatalogFile; when nothing is found an empty catalog is
// returned.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(CatalogFile)
		if err != nil {
			return ParseCatalog(nil, "")
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading app catalog: %w", err)
	}
	return ParseCatalog(data, filepath.Dir(path))
}

// ParseCatalog parses a TOML catalog. Relative icon paths are resolved
// against dir.
func ParseCatalog(data []byte, dir string) (*Catalog, error) {
	var f catalogFile
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing app catalog: %w", err)
		}
	}

	c := &Catalog{dir: dir, providers: make(map[string]catalogWidget, len(f.Widgets))}
	for i, a := range f.Apps {
		if a.Package == "" {
			return nil, fmt.Errorf("app catalog: entry %d has no package", i)
		}
		if a.Label == "" {
			a.Label = a.Package
		}
		c.apps = append(c.apps, a)
	}
	for i, w := range f.Widgets {
		if w.Package == "" || w.Provider == "" {
			return nil, fmt.Errorf("app catalog: widget %d needs package and provider", i)
		}
		c.providers[providerKey(w.Package, w.Provider)] = w
	}
	return c, nil
}

// List returns the catalog apps sorted by label.
func (c *Catalog) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(c.apps))
	for _, a := range c.apps {
		out = append(out, Info{
			Label:             a.Label,
			PackageName:       a.Package,
			ActivityClassName: a.Activity,
			UserProfileID:     a.User,
			InstalledAt:       a.InstalledAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out, nil
}

// LoadIcon reads the icon file configured for the activity.
func (c *Catalog) LoadIcon(ctx context.Context, packageName, activityClassName string, userProfileID int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, a := range c.apps {
		if a.Package != packageName || a.User != userProfileID {
			continue
		}
		if activityClassName != "" && a.Activity != activityClassName {
			continue
		}
		if a.Icon == "" {
			return nil, ErrIconNotFound
		}
		path := a.Icon
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading icon for %s: %w", Key(packageName, userProfileID), err)
		}
		return data, nil
	}
	return nil, ErrIconNotFound
}

// ResolveProvider looks up a widget provider declared in the catalog.
func (c *Catalog) ResolveProvider(ctx context.Context, packageName, providerClassName string) (ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return ProviderInfo{}, err
	}
	w, ok := c.providers[providerKey(packageName, providerClassName)]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("%w: %s/%s", ErrProviderNotFound, packageName, providerClassName)
	}
	return ProviderInfo{
		PackageName:       w.Package,
		ProviderClassName: w.Provider,
		Label:             w.Label,
		MinRowSpan:        max(w.MinRows, 1),
		MinColumnSpan:     max(w.MinColumns, 1),
	}, nil
}

func providerKey(pkg, class string) string {
	return pkg + "\x00" + class
}
