package apps

import (
	"context"
	"errors"
	"time"
)

// ErrProviderNotFound is returned when no widget provider matches a
// (package, provider class) pair, typically after the providing app was
// uninstalled.
var ErrProviderNotFound = errors.New("widget provider not found")

// ErrIconNotFound is returned when no icon is available for an app.
var ErrIconNotFound = errors.New("icon not found")

// Info describes one launchable activity reported by the host.
type Info struct {
	Label             string
	PackageName       string
	ActivityClassName string
	UserProfileID     int
	InstalledAt       time.Time
}

// Reference converts i to the value bound to gestures and shortcuts.
func (i Info) Reference() Reference {
	return Reference{
		Label:             i.Label,
		PackageName:       i.PackageName,
		ActivityClassName: i.ActivityClassName,
		UserProfileID:     i.UserProfileID,
	}
}

// Key returns the app identity key of i.
func (i Info) Key() string {
	return Key(i.PackageName, i.UserProfileID)
}

// ProviderInfo is the host's live description of a widget provider. It is
// runtime-only state and never persisted.
type ProviderInfo struct {
	PackageName       string
	ProviderClassName string
	Label             string
	MinRowSpan        int
	MinColumnSpan     int
}

// Enumerator lists launchable apps.
type Enumerator interface {
	List(ctx context.Context) ([]Info, error)
}

// IconLoader loads the icon of one activity.
type IconLoader interface {
	LoadIcon(ctx context.Context, packageName, activityClassName string, userProfileID int) ([]byte, error)
}

// ProviderRegistry resolves widget providers from the host registry.
type ProviderRegistry interface {
	ResolveProvider(ctx context.Context, packageName, providerClassName string) (ProviderInfo, error)
}
