package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/layout"
	"github.com/kalambet/hearth/internal/settings"
	"github.com/kalambet/hearth/internal/storage"
)

const testToken = "test-token-123"

type mockEnumerator struct {
	list []apps.Info
	err  error
}

func (m *mockEnumerator) List(_ context.Context) ([]apps.Info, error) {
	return m.list, m.err
}

type mockProviders struct {
	known map[string]apps.ProviderInfo
}

func (m *mockProviders) ResolveProvider(_ context.Context, pkg, class string) (apps.ProviderInfo, error) {
	info, ok := m.known[pkg+"/"+class]
	if !ok {
		return apps.ProviderInfo{}, apps.ErrProviderNotFound
	}
	return info, nil
}

func newTestAppDeps(t *testing.T) AppDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := settings.NewService(store, settings.WithGridReconciler(layout.Reconcile))
	editor := layout.NewEditor(store,
		func() layout.Grid {
			snap := svc.Current()
			return layout.Grid{Rows: snap.GridRows, Columns: snap.GridColumns}
		},
		layout.WithLock(func() bool { return svc.Current().LockHomeScreen }),
	)
	return AppDeps{
		Settings: svc,
		Layout:   editor,
		Resolver: layout.NewResolver(nil, &mockProviders{}),
		Token:    testToken,
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return resp.Error.Type
}

func TestHealth(t *testing.T) {
	h := NewAppHandler(newTestAppDeps(t))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuth_RejectsMissingAndWrongToken(t *testing.T) {
	h := NewAppHandler(newTestAppDeps(t))

	for _, token := range []string{"", "wrong"} {
		rr := serve(h, authReq(http.MethodGet, "/settings", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want %d", token, rr.Code, http.StatusUnauthorized)
		}
		if typ := errorType(t, rr); typ != "authentication_error" {
			t.Errorf("token %q: error type = %q", token, typ)
		}
	}
}

func TestDescriptors(t *testing.T) {
	h := NewAppHandler(newTestAppDeps(t))

	rr := serve(h, authReq(http.MethodGet, "/descriptors", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var groups []settings.Group
	if err := json.NewDecoder(rr.Body).Decode(&groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != len(settings.Categories()) {
		t.Errorf("groups = %d, want %d", len(groups), len(settings.Categories()))
	}
}

func TestPatchSettings(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	body := `{"iconSize": 64, "showAppNames": false, "noSuchSetting": 1}`
	rr := serve(h, authReq(http.MethodPatch, "/settings", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Ignored []string `json:"ignored"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Ignored) != 1 || resp.Ignored[0] != "noSuchSetting" {
		t.Errorf("ignored = %v", resp.Ignored)
	}

	snap := deps.Settings.Current()
	if snap.IconSize != 64 || snap.ShowAppNames {
		t.Errorf("snapshot = iconSize %d, showAppNames %v", snap.IconSize, snap.ShowAppNames)
	}
}

func TestPatchSettings_InvalidValue(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	rr := serve(h, authReq(http.MethodPatch, "/settings", `{"iconSize": 1000}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if deps.Settings.Current().IconSize != settings.Defaults().IconSize {
		t.Error("invalid value was applied")
	}
}

func TestPatchSettings_InvalidFieldRejectsWholeBatch(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	for i := 0; i < 20; i++ {
		rr := serve(h, authReq(http.MethodPatch, "/settings", `{"statusBar": false, "iconSize": 9999}`, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
		if !deps.Settings.Current().StatusBar {
			t.Fatalf("run %d: statusBar saved although the request failed", i)
		}
	}
}

func TestPatchSettings_GridShrinkFitsLayout(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)
	ctx := context.Background()

	if rr := serve(h, authReq(http.MethodPatch, "/settings", `{"gridRows": 8}`, testToken)); rr.Code != http.StatusOK {
		t.Fatalf("grow: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	item := layout.Shortcut{
		Placement:   layout.Placement{Row: 7, Column: 3, RowSpan: 1, ColumnSpan: 1},
		Label:       "Mail",
		PackageName: "com.example.mail",
	}
	if _, err := deps.Layout.Add(ctx, item); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if rr := serve(h, authReq(http.MethodPatch, "/settings", `{"gridRows": 4}`, testToken)); rr.Code != http.StatusOK {
		t.Fatalf("shrink: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	items, err := deps.Layout.Items(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := (layout.Grid{Rows: 4, Columns: 4}).Validate(items); err != nil {
		t.Errorf("layout after shrink: %v", err)
	}
	if p := items[0].Place(); p.Row != 3 || p.Column != 3 {
		t.Errorf("placement = %+v, want clamped to (3,3)", p)
	}
}

func TestPatchSettings_BadBody(t *testing.T) {
	h := NewAppHandler(newTestAppDeps(t))

	rr := serve(h, authReq(http.MethodPatch, "/settings", `not json`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if typ := errorType(t, rr); typ != "invalid_request_error" {
		t.Errorf("error type = %q", typ)
	}
}

func TestGetSetting(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	deps.Settings.Update(context.Background(), "showAppIcons", false)

	rr := serve(h, authReq(http.MethodGet, "/settings/iconSize", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var v settingView
	json.NewDecoder(rr.Body).Decode(&v)
	if v.Value != float64(48) || v.Enabled {
		t.Errorf("iconSize = %+v, want 48 and disabled", v)
	}

	rr = serve(h, authReq(http.MethodGet, "/settings/nope", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown setting status = %d", rr.Code)
	}
}

func TestResetSettings(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)
	ctx := context.Background()

	deps.Settings.Update(ctx, "gridRows", 8)
	rr := serve(h, authReq(http.MethodDelete, "/settings", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if deps.Settings.Current().GridRows != settings.Defaults().GridRows {
		t.Error("reset did not restore gridRows")
	}
}

func TestGestures_SetListClear(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	body := `{"label":"Camera","packageName":"org.camera","activityClassName":"org.camera.Main","userString":"0"}`
	rr := serve(h, authReq(http.MethodPut, "/gestures/swipeUp", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	ref, ok := deps.Settings.GestureApp(settings.SwipeUp)
	if !ok || ref.PackageName != "org.camera" {
		t.Fatalf("swipeUp = %+v, %v", ref, ok)
	}

	rr = serve(h, authReq(http.MethodGet, "/gestures", "", testToken))
	var list map[string]*apps.Reference
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != len(settings.Gestures()) {
		t.Errorf("listed %d gestures", len(list))
	}
	if list["swipeUp"] == nil || list["swipeDown"] != nil {
		t.Errorf("list = %v", list)
	}

	rr = serve(h, authReq(http.MethodDelete, "/gestures/swipeUpApp", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rr.Code)
	}
	if _, ok := deps.Settings.GestureApp(settings.SwipeUp); ok {
		t.Error("swipeUp still bound")
	}

	rr = serve(h, authReq(http.MethodPut, "/gestures/wiggle", body, testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown gesture status = %d", rr.Code)
	}
}

func TestRenameAndHideApp(t *testing.T) {
	deps := newTestAppDeps(t)
	deps.Apps = &mockEnumerator{list: []apps.Info{
		{Label: "Mail", PackageName: "org.mail", ActivityClassName: "org.mail.Main"},
		{Label: "Notes", PackageName: "org.notes", ActivityClassName: "org.notes.Main"},
	}}
	h := NewAppHandler(deps)

	rr := serve(h, authReq(http.MethodPost, "/apps/rename", `{"key":"org.mail/0","label":"Post","defaultLabel":"Mail"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("rename status = %d; body = %s", rr.Code, rr.Body.String())
	}
	rr = serve(h, authReq(http.MethodPost, "/apps/hidden", `{"key":"org.notes/0","hidden":true}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("hide status = %d", rr.Code)
	}

	rr = serve(h, authReq(http.MethodGet, "/apps", "", testToken))
	var list []appView
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].Label != "Post" || list[0].DefaultLabel != "Mail" {
		t.Errorf("apps = %+v", list)
	}

	rr = serve(h, authReq(http.MethodGet, "/apps?all=true", "", testToken))
	list = nil
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 2 {
		t.Errorf("apps with hidden = %d, want 2", len(list))
	}

	rr = serve(h, authReq(http.MethodPost, "/apps/rename", `{"label":"x"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d", rr.Code)
	}
}

func TestLayout_AddMoveRemove(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	shortcut := `{"type":"shortcut","row":0,"column":0,"rowSpan":1,"columnSpan":1,"label":"Mail","packageName":"org.mail","activityClassName":"org.mail.Main","userProfileId":0,"hidden":false}`
	rr := serve(h, authReq(http.MethodPost, "/layout/items", shortcut, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d; body = %s", rr.Code, rr.Body.String())
	}

	widget := `{"type":"widget","row":2,"column":0,"rowSpan":2,"columnSpan":2,"widgetInstanceId":7,"packageName":"org.clock","providerClassName":"org.clock.Widget"}`
	rr = serve(h, authReq(http.MethodPost, "/layout/items", widget, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add widget status = %d; body = %s", rr.Code, rr.Body.String())
	}

	// The app key contains a slash, so the id is matched as a wildcard.
	rr = serve(h, authReq(http.MethodPatch, "/layout/items/org.mail/0", `{"row":1,"column":3}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodPatch, "/layout/items/org.mail/0", `{"row":2,"column":1}`, testToken))
	if rr.Code != http.StatusConflict {
		t.Errorf("overlapping move status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = serve(h, authReq(http.MethodGet, "/layout", "", testToken))
	var view []entryView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if len(view) != 2 {
		t.Fatalf("layout = %d entries", len(view))
	}
	if view[0].ID != "org.mail/0" || view[1].ID != "widget_7" || !view[1].Unresolved {
		t.Errorf("layout = %+v", view)
	}

	rr = serve(h, authReq(http.MethodDelete, "/layout/items/widget_7", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rr.Code)
	}
	rr = serve(h, authReq(http.MethodDelete, "/layout/items/widget_7", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLayout_Errors(t *testing.T) {
	deps := newTestAppDeps(t)
	h := NewAppHandler(deps)

	outside := `{"type":"widget","row":7,"column":3,"rowSpan":1,"columnSpan":2,"widgetInstanceId":1,"packageName":"p","providerClassName":"c"}`
	deps.Settings.Update(context.Background(), "gridRows", 8)
	rr := serve(h, authReq(http.MethodPost, "/layout/items", outside, testToken))
	if rr.Code != http.StatusConflict {
		t.Errorf("out of bounds status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = serve(h, authReq(http.MethodPost, "/layout/items", `{"type":"folder"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = serve(h, authReq(http.MethodPatch, "/layout/items/x", `{}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d", rr.Code)
	}

	deps.Settings.Update(context.Background(), "lockHomeScreen", true)
	inside := `{"type":"widget","row":0,"column":0,"rowSpan":1,"columnSpan":1,"widgetInstanceId":2,"packageName":"p","providerClassName":"c"}`
	rr = serve(h, authReq(http.MethodPost, "/layout/items", inside, testToken))
	if rr.Code != http.StatusLocked {
		t.Errorf("locked status = %d, want %d", rr.Code, http.StatusLocked)
	}
}

func TestSettingsEvents_StreamsSnapshots(t *testing.T) {
	deps := newTestAppDeps(t)
	srv := httptest.NewServer(NewAppHandler(deps))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/settings/events", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() map[string]any {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var snap struct {
					Values map[string]any `json:"values"`
				}
				if err := json.Unmarshal([]byte(data), &snap); err != nil {
					t.Fatalf("decoding event: %v", err)
				}
				return snap.Values
			}
		}
	}

	if v := next(); v["iconSize"] != float64(48) {
		t.Fatalf("first event iconSize = %v", v["iconSize"])
	}

	if err := deps.Settings.Update(ctx, "iconSize", 72); err != nil {
		t.Fatal(err)
	}
	if v := next(); v["iconSize"] != float64(72) {
		t.Errorf("second event iconSize = %v", v["iconSize"])
	}
}

func TestAuth_QueryTokenOnlyForGet(t *testing.T) {
	h := NewAppHandler(newTestAppDeps(t))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/settings?access_token="+testToken, nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET with query token: status = %d", rr.Code)
	}

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/settings?access_token="+testToken, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("DELETE with query token: status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuth_EmptyServerTokenRejectsAll(t *testing.T) {
	deps := newTestAppDeps(t)
	deps.Token = ""
	h := NewAppHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", "Bearer ")
	if rr := serve(h, req); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
