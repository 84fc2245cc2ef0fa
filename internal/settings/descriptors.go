package settings

// Category groups settings on the settings screen.
type Category string

const (
	CategoryAppearance Category = "appearance"
	CategoryHomeScreen Category = "home_screen"
	CategorySearch     Category = "search"
	CategoryApps       Category = "apps"
	CategoryGestures   Category = "gestures"
)

// Control is the UI control used to edit a setting.
type Control string

const (
	ControlToggle    Control = "toggle"
	ControlSlider    Control = "slider"
	ControlChoice    Control = "choice"
	ControlText      Control = "text"
	ControlAppSet    Control = "app_set"
	ControlAppPicker Control = "app_picker"
)

// Kind is the value type of a setting.
type Kind string

const (
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindSet    Kind = "set"
	KindApp    Kind = "app"
)

// Descriptor is the static schema of one user-facing setting. Its Name is
// also the store key of the setting.
type Descriptor struct {
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	Category  Category `json:"category"`
	Control   Control  `json:"control"`
	Kind      Kind     `json:"kind"`
	DependsOn string   `json:"dependsOn,omitempty"`
	Min       float64  `json:"min,omitempty"`
	Max       float64  `json:"max,omitempty"`
	Step      float64  `json:"step,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// Group is one category of descriptors in table order.
type Group struct {
	Category    Category     `json:"category"`
	Descriptors []Descriptor `json:"descriptors"`
}

var descriptors = func() []Descriptor {
	table := []Descriptor{
		{Name: "appTheme", Title: "Theme", Category: CategoryAppearance, Control: ControlChoice, Kind: KindInt,
			Options: []string{"System", "Light", "Dark"}},
		{Name: "showAppNames", Title: "Show app names", Category: CategoryAppearance, Control: ControlToggle, Kind: KindBool},
		{Name: "showAppIcons", Title: "Show app icons", Category: CategoryAppearance, Control: ControlToggle, Kind: KindBool},
		{Name: "iconSize", Title: "Icon size", Category: CategoryAppearance, Control: ControlSlider, Kind: KindInt,
			DependsOn: "showAppIcons", Min: 24, Max: 96, Step: 8},
		{Name: "textScale", Title: "Text size", Category: CategoryAppearance, Control: ControlSlider, Kind: KindFloat,
			Min: 0.5, Max: 2, Step: 0.1},
		{Name: "statusBar", Title: "Show status bar", Category: CategoryAppearance, Control: ControlToggle, Kind: KindBool},
		{Name: "wallpaperDim", Title: "Dim wallpaper", Category: CategoryAppearance, Control: ControlSlider, Kind: KindFloat,
			Min: 0, Max: 0.9, Step: 0.1},

		{Name: "gridRows", Title: "Rows", Category: CategoryHomeScreen, Control: ControlSlider, Kind: KindInt,
			Min: 4, Max: 12, Step: 1},
		{Name: "gridColumns", Title: "Columns", Category: CategoryHomeScreen, Control: ControlSlider, Kind: KindInt,
			Min: 2, Max: 8, Step: 1},
		{Name: "lockHomeScreen", Title: "Lock home screen layout", Category: CategoryHomeScreen, Control: ControlToggle, Kind: KindBool},

		{Name: "searchType", Title: "Match apps by", Category: CategorySearch, Control: ControlChoice, Kind: KindInt,
			Options: []string{"Contains", "Starts with", "Fuzzy"}},
		{Name: "searchAutoLaunch", Title: "Launch single result", Category: CategorySearch, Control: ControlToggle, Kind: KindBool},
		{Name: "searchWeb", Title: "Offer web search", Category: CategorySearch, Control: ControlToggle, Kind: KindBool},
		{Name: "searchEngineURL", Title: "Search engine URL", Category: CategorySearch, Control: ControlText, Kind: KindString,
			DependsOn: "searchWeb"},
		{Name: "calculator", Title: "Calculator", Category: CategorySearch, Control: ControlToggle, Kind: KindBool},
		{Name: "showKeyboard", Title: "Open keyboard on search", Category: CategorySearch, Control: ControlToggle, Kind: KindBool},

		{Name: "hiddenApps", Title: "Hidden apps", Category: CategoryApps, Control: ControlAppSet, Kind: KindSet},
		{Name: "sortOrder", Title: "Sort apps by", Category: CategoryApps, Control: ControlChoice, Kind: KindInt,
			Options: []string{"Name", "Recently installed"}},
		{Name: "showHiddenInSearch", Title: "Find hidden apps in search", Category: CategoryApps, Control: ControlToggle, Kind: KindBool},

		{Name: "gesturesEnabled", Title: "Gestures", Category: CategoryGestures, Control: ControlToggle, Kind: KindBool},
	}
	for _, g := range Gestures() {
		table = append(table, Descriptor{
			Name:      g.Key(),
			Title:     g.Title(),
			Category:  CategoryGestures,
			Control:   ControlAppPicker,
			Kind:      KindApp,
			DependsOn: "gesturesEnabled",
		})
	}
	return table
}()

// Descriptors returns the full setting schema in display order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup returns the descriptor named name.
func Lookup(name string) (Descriptor, bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return Descriptor{}, false
	}
	return f.desc, true
}

// Categories returns the categories in the order they first appear.
func Categories() []Category {
	var out []Category
	seen := make(map[Category]bool)
	for _, d := range descriptors {
		if !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	return out
}

// ByCategory groups the descriptors by category, preserving table order.
func ByCategory() []Group {
	groups := make([]Group, 0, len(Categories()))
	index := make(map[Category]int)
	for _, d := range descriptors {
		i, ok := index[d.Category]
		if !ok {
			i = len(groups)
			index[d.Category] = i
			groups = append(groups, Group{Category: d.Category})
		}
		groups[i].Descriptors = append(groups[i].Descriptors, d)
	}
	return groups
}
