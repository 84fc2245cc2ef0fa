package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/layout"
	"github.com/kalambet/hearth/internal/settings"
	"github.com/kalambet/hearth/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds what the settings UI API needs. Resolver and Apps are
// optional.
type AppDeps struct {
	Settings *settings.Service
	Layout   *layout.Editor
	Resolver *layout.Resolver
	Apps     apps.Enumerator
	Token    string
}

// NewAppHandler returns the bearer-protected HTTP API used by the settings UI.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/descriptors", handleDescriptors)
		r.Get("/settings", handleGetSettings(deps))
		r.Patch("/settings", handlePatchSettings(deps))
		r.Delete("/settings", handleResetSettings(deps))
		r.Get("/settings/events", handleSettingsEvents(deps))
		r.Get("/settings/{name}", handleGetSetting(deps))

		r.Get("/gestures", handleListGestures(deps))
		r.Put("/gestures/{gesture}", handleSetGesture(deps))
		r.Delete("/gestures/{gesture}", handleClearGesture(deps))

		r.Post("/apps/rename", handleRenameApp(deps))
		r.Post("/apps/hidden", handleHideApp(deps))
		r.Get("/apps", handleListApps(deps))

		r.Get("/layout", handleGetLayout(deps))
		r.Post("/layout/items", handleAddItem(deps))
		r.Patch("/layout/items/*", handlePatchItem(deps))
		r.Delete("/layout/items/*", handleRemoveItem(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var ioErr *storage.IOError
	switch {
	case errors.As(err, &ioErr):
		httpError(w, http.StatusInternalServerError, "storage_error", "%v", err)
	case errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, layout.ErrInvalidItem),
		errors.Is(err, layout.ErrInvalidPlacement):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, layout.ErrItemNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, layout.ErrOutOfBounds),
		errors.Is(err, layout.ErrOverlap),
		errors.Is(err, layout.ErrDuplicate):
		httpError(w, http.StatusConflict, "layout_conflict", "%v", err)
	case errors.Is(err, layout.ErrLocked):
		httpError(w, http.StatusLocked, "locked", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func handleDescriptors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, settings.ByCategory())
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Settings.Current())
	}
}

type settingView struct {
	Name    string `json:"name"`
	Value   any    `json:"value"`
	Enabled bool   `json:"enabled"`
}

func handleGetSetting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		snap := deps.Settings.Current()
		v, ok := snap.Value(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "unknown setting %q", name)
			return
		}
		if ref, isRef := v.(apps.Reference); isRef && ref.IsZero() {
			v = nil
		}
		writeJSON(w, settingView{Name: name, Value: v, Enabled: snap.Enabled(name)})
	}
}

// handlePatchSettings applies the body as one batch: either every field is
// saved or none is. Unknown names are ignored and reported back.
func handlePatchSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if !decodeBody(w, r, &fields) {
			return
		}

		ignored, err := deps.Settings.UpdateAll(r.Context(), fields)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]any{
			"settings": deps.Settings.Current(),
			"ignored":  nonNil(ignored),
		})
	}
}

func handleResetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Settings.Reset(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, deps.Settings.Current())
	}
}

func handleListGestures(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]*apps.Reference, len(settings.Gestures()))
		for _, g := range settings.Gestures() {
			if ref, ok := deps.Settings.GestureApp(g); ok {
				out[g.String()] = &ref
			} else {
				out[g.String()] = nil
			}
		}
		writeJSON(w, out)
	}
}

func gestureParam(w http.ResponseWriter, r *http.Request) (settings.Gesture, bool) {
	name := chi.URLParam(r, "gesture")
	g, ok := settings.ParseGesture(name)
	if !ok {
		httpError(w, http.StatusNotFound, "not_found", "unknown gesture %q", name)
	}
	return g, ok
}

func handleSetGesture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := gestureParam(w, r)
		if !ok {
			return
		}
		var ref apps.Reference
		if !decodeBody(w, r, &ref) {
			return
		}
		if err := deps.Settings.SetGestureApp(r.Context(), g, ref); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"gesture": g.String(), "app": ref})
	}
}

func handleClearGesture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := gestureParam(w, r)
		if !ok {
			return
		}
		if err := deps.Settings.ClearGestureApp(r.Context(), g); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

type renameRequest struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	DefaultLabel string `json:"defaultLabel"`
}

func handleRenameApp(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Key == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "key is required")
			return
		}
		if err := deps.Settings.RenameApp(r.Context(), req.Key, req.Label, req.DefaultLabel); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{
			"key":   req.Key,
			"label": deps.Settings.Current().Label(req.Key, req.DefaultLabel),
		})
	}
}

type hideRequest struct {
	Key    string `json:"key"`
	Hidden bool   `json:"hidden"`
}

func handleHideApp(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hideRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Key == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "key is required")
			return
		}
		if err := deps.Settings.SetAppHidden(r.Context(), req.Key, req.Hidden); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"key": req.Key, "hidden": req.Hidden})
	}
}

type appView struct {
	Key               string    `json:"key"`
	Label             string    `json:"label"`
	DefaultLabel      string    `json:"defaultLabel"`
	PackageName       string    `json:"packageName"`
	ActivityClassName string    `json:"activityClassName"`
	UserProfileID     int       `json:"userProfileId"`
	Hidden            bool      `json:"hidden"`
	InstalledAt       time.Time `json:"installedAt,omitzero"`
}

func handleListApps(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Apps == nil {
			writeJSON(w, []appView{})
			return
		}
		list, err := deps.Apps.List(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "host_error", "listing apps: %v", err)
			return
		}
		all := r.URL.Query().Get("all") == "true"
		entries := deps.Settings.Current().Drawer(list, all)

		out := make([]appView, 0, len(entries))
		for _, e := range entries {
			out = append(out, appView{
				Key:               e.Key(),
				Label:             e.DisplayLabel,
				DefaultLabel:      e.Label,
				PackageName:       e.PackageName,
				ActivityClassName: e.ActivityClassName,
				UserProfileID:     e.UserProfileID,
				Hidden:            e.Hidden,
				InstalledAt:       e.InstalledAt,
			})
		}
		writeJSON(w, out)
	}
}

type providerView struct {
	Label         string `json:"label"`
	MinRowSpan    int    `json:"minRowSpan"`
	MinColumnSpan int    `json:"minColumnSpan"`
}

type entryView struct {
	ID         string          `json:"id"`
	Item       layout.Document `json:"item"`
	HasIcon    bool            `json:"hasIcon,omitempty"`
	Provider   *providerView   `json:"provider,omitempty"`
	Unresolved bool            `json:"unresolved,omitempty"`
}

// layoutView loads the layout and, when a resolver is configured, joins in
// runtime state.
func layoutView(ctx context.Context, deps layoutDeps) ([]entryView, error) {
	items, err := deps.Layout.Items(ctx)
	if err != nil {
		return nil, err
	}

	var entries []layout.Entry
	if deps.Resolver != nil {
		entries, err = deps.Resolver.Resolve(ctx, items)
		if err != nil {
			return nil, err
		}
	} else {
		entries = make([]layout.Entry, len(items))
		for i, it := range items {
			entries[i].Item = it
		}
	}

	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		doc, err := layout.Serialize(e.Item)
		if err != nil {
			return nil, err
		}
		v := entryView{ID: e.Item.ID(), Item: doc, HasIcon: len(e.Icon) > 0, Unresolved: e.Unresolved}
		if e.Provider != nil {
			v.Provider = &providerView{Label: e.Provider.Label, MinRowSpan: e.Provider.MinRowSpan, MinColumnSpan: e.Provider.MinColumnSpan}
		}
		out = append(out, v)
	}
	return out, nil
}

type layoutDeps struct {
	Layout   *layout.Editor
	Resolver *layout.Resolver
}

func handleGetLayout(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := layoutView(r.Context(), layoutDeps{Layout: deps.Layout, Resolver: deps.Resolver})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, view)
	}
}

func handleAddItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc layout.Document
		if !decodeBody(w, r, &doc) {
			return
		}
		it, err := layout.Deserialize(doc)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := deps.Layout.Add(r.Context(), it)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeItems(w, items)
	}
}

// itemPatch changes one aspect of an item; exactly one group must be set.
type itemPatch struct {
	Row        *int  `json:"row"`
	Column     *int  `json:"column"`
	RowSpan    *int  `json:"rowSpan"`
	ColumnSpan *int  `json:"columnSpan"`
	Hidden     *bool `json:"hidden"`
}

func handlePatchItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "*")
		var p itemPatch
		if !decodeBody(w, r, &p) {
			return
		}

		var (
			items []layout.Item
			err   error
		)
		switch {
		case p.Row != nil && p.Column != nil:
			items, err = deps.Layout.Move(r.Context(), id, *p.Row, *p.Column)
		case p.RowSpan != nil && p.ColumnSpan != nil:
			items, err = deps.Layout.Resize(r.Context(), id, *p.RowSpan, *p.ColumnSpan)
		case p.Hidden != nil:
			items, err = deps.Layout.SetHidden(r.Context(), id, *p.Hidden)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "expected row+column, rowSpan+columnSpan or hidden")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeItems(w, items)
	}
}

func handleRemoveItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Layout.Remove(r.Context(), chi.URLParam(r, "*"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeItems(w, items)
	}
}

func writeItems(w http.ResponseWriter, items []layout.Item) {
	docs := make([]layout.Document, 0, len(items))
	for _, it := range items {
		doc, err := layout.Serialize(it)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		docs = append(docs, doc)
	}
	writeJSON(w, docs)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
