package apps

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKey_Format(t *testing.T) {
	if got := Key("com.example.mail", 10); got != "com.example.mail/10" {
		t.Errorf("Key = %q", got)
	}
	ref := Reference{PackageName: "com.example.mail", UserProfileID: 10}
	info := Info{PackageName: "com.example.mail", UserProfileID: 10}
	if ref.Key() != info.Key() {
		t.Errorf("reference key %q != info key %q", ref.Key(), info.Key())
	}
}

func TestReference_JSONDocument(t *testing.T) {
	ref := Reference{Label: "Mail", PackageName: "com.example.mail", ActivityClassName: "com.example.mail.Inbox", UserProfileID: 10}

	b, err := json.Marshal(ref)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"label":"Mail","packageName":"com.example.mail","activityClassName":"com.example.mail.Inbox","userString":"10"}`
	if string(b) != want {
		t.Errorf("document = %s\nwant       %s", b, want)
	}

	var back Reference
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != ref {
		t.Errorf("round trip = %+v, want %+v", back, ref)
	}
}

func TestReference_RejectsStaleShapes(t *testing.T) {
	for _, raw := range []string{
		`{"label":"Mail"}`,
		`{"packageName":"p","userString":"abc"}`,
		`{"packageName":42}`,
		`"com.example.mail"`,
	} {
		var r Reference
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", raw)
		}
	}
}

func TestReference_IsZero(t *testing.T) {
	if !(Reference{}).IsZero() {
		t.Error("zero reference not reported as zero")
	}
	if (Reference{PackageName: "p"}).IsZero() {
		t.Error("bound reference reported as zero")
	}
}

const testCatalog = `
[[app]]
label = "Zebra"
package = "org.zoo.zebra"
activity = "org.zoo.zebra.Main"

[[app]]
label = "clock"
package = "com.example.clock"
activity = "com.example.clock.Main"
user = 10
icon = "clock.png"

[[widget]]
package = "com.example.clock"
provider = "com.example.clock.AnalogWidget"
label = "Analog clock"
min_columns = 2
`

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clock.png"), []byte("PNG"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "apps.toml")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	ctx := context.Background()

	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Label != "clock" || list[1].Label != "Zebra" {
		t.Fatalf("List = %+v, want clock then Zebra", list)
	}

	icon, err := c.LoadIcon(ctx, "com.example.clock", "com.example.clock.Main", 10)
	if err != nil || string(icon) != "PNG" {
		t.Errorf("LoadIcon = %q, %v", icon, err)
	}
	if _, err := c.LoadIcon(ctx, "org.zoo.zebra", "", 0); !errors.Is(err, ErrIconNotFound) {
		t.Errorf("LoadIcon without icon: %v, want ErrIconNotFound", err)
	}

	p, err := c.ResolveProvider(ctx, "com.example.clock", "com.example.clock.AnalogWidget")
	if err != nil {
		t.Fatalf("ResolveProvider: %v", err)
	}
	if p.MinColumnSpan != 2 || p.MinRowSpan != 1 {
		t.Errorf("provider spans = %d x %d", p.MinRowSpan, p.MinColumnSpan)
	}
	if _, err := c.ResolveProvider(ctx, "gone", "gone.Widget"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("ResolveProvider(missing) = %v, want ErrProviderNotFound", err)
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	if _, err := ParseCatalog([]byte("[[app]]\nlabel = \"x\"\n"), ""); err == nil {
		t.Error("expected error for app without package")
	}
	if _, err := ParseCatalog([]byte("not = [toml"), ""); err == nil {
		t.Error("expected parse error")
	}
}
