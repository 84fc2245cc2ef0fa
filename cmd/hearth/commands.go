package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/hearth/internal/config"
	"github.com/kalambet/hearth/internal/layout"
)

// parseValue reads a CLI value as JSON, falling back to a plain string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change launcher settings",
}

type settingsView struct {
	Revision uint64         `json:"revision"`
	Values   map[string]any `json:"values"`
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings grouped by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listSettings(cmd.Context(), client)
	},
}

func listSettings(ctx context.Context, client *apiClient) error {
	resp, err := client.get(ctx, "/descriptors")
	if err != nil {
		return err
	}
	var groups []struct {
		Category    string `json:"category"`
		Descriptors []struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		} `json:"descriptors"`
	}
	if err := decodeJSON(resp, &groups); err != nil {
		return err
	}

	resp, err = client.get(ctx, "/settings")
	if err != nil {
		return err
	}
	var snap settingsView
	if err := decodeJSON(resp, &snap); err != nil {
		return err
	}

	for _, g := range groups {
		fmt.Println(colorize(colorBold, g.Category))
		for _, d := range g.Descriptors {
			fmt.Printf("  %-22s %s\n", colorize(colorCyan, d.Name), formatValue(snap.Values[d.Name]))
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case map[string]any:
		if pkg, ok := v["packageName"].(string); ok {
			if label, _ := v["label"].(string); label != "" {
				return fmt.Sprintf("%s (%s)", label, pkg)
			}
			return pkg
		}
	case []any:
		if len(v) == 0 {
			return "[]"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/settings/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var v struct {
			Name    string `json:"name"`
			Value   any    `json:"value"`
			Enabled bool   `json:"enabled"`
		}
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		fmt.Println(formatValue(v.Value))
		if !v.Enabled {
			printWarning("%s has no effect while its parent toggle is off", v.Name)
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change one setting (value is JSON or a bare string)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, raw := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/settings", map[string]any{name: parseValue(raw)})
		if err != nil {
			return err
		}
		var result struct {
			Ignored []string `json:"ignored"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if len(result.Ignored) > 0 {
			printWarning("unknown setting %q ignored", name)
			return nil
		}
		printSuccess("Set %s = %s", name, raw)
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every setting to its default",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This resets ALL settings. Use --confirm to proceed.")
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/settings")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Settings reset")
		return nil
	},
}

var settingsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print each settings snapshot as it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.httpClient = &http.Client{}
		return watchSettings(cmd.Context(), client, func(s settingsView) {
			fmt.Printf("%s %s\n", colorize(colorCyan, fmt.Sprintf("rev %d", s.Revision)), formatValue(s.Values))
		})
	},
}

func watchSettings(ctx context.Context, client *apiClient, fn func(settingsView)) error {
	resp, err := client.get(ctx, "/settings/events")
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return decodeJSON(resp, nil)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var s settingsView
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return fmt.Errorf("decoding event: %w", err)
		}
		fn(s)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func init() {
	settingsResetCmd.Flags().Bool("confirm", false, "confirm the reset")
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsWatchCmd)
}

// --- gesture ---

var gestureCmd = &cobra.Command{
	Use:   "gesture",
	Short: "Bind apps to gestures",
}

var gestureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gesture bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/gestures")
		if err != nil {
			return err
		}
		var bindings map[string]any
		if err := decodeJSON(resp, &bindings); err != nil {
			return err
		}

		names := make([]string, 0, len(bindings))
		for name := range bindings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-22s %s\n", colorize(colorCyan, name), formatValue(bindings[name]))
		}
		return nil
	},
}

var gestureSetCmd = &cobra.Command{
	Use:   "set <gesture> <package>",
	Short: "Bind an app to a gesture",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		activity, _ := cmd.Flags().GetString("activity")
		label, _ := cmd.Flags().GetString("label")
		user, _ := cmd.Flags().GetInt("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		body := map[string]any{
			"label":             label,
			"packageName":       args[1],
			"activityClassName": activity,
			"userString":        fmt.Sprint(user),
		}
		resp, err := client.put(cmd.Context(), "/gestures/"+url.PathEscape(args[0]), body)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Bound %s to %s", args[0], args[1])
		return nil
	},
}

var gestureClearCmd = &cobra.Command{
	Use:   "clear <gesture>",
	Short: "Unbind a gesture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/gestures/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Cleared %s", args[0])
		return nil
	},
}

func init() {
	gestureSetCmd.Flags().String("activity", "", "activity class name")
	gestureSetCmd.Flags().String("label", "", "label shown for the binding")
	gestureSetCmd.Flags().Int("user", 0, "user profile id")
	gestureCmd.AddCommand(gestureListCmd)
	gestureCmd.AddCommand(gestureSetCmd)
	gestureCmd.AddCommand(gestureClearCmd)
}

// --- apps ---

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List, rename and hide drawer apps",
}

type appRow struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Hidden bool   `json:"hidden"`
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps in drawer order",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/apps"
		if all {
			path += "?all=true"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var rows []appRow
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No apps found.")
			return nil
		}
		for _, r := range rows {
			line := fmt.Sprintf("%-30s %s", r.Label, colorize(colorCyan, r.Key))
			if r.Hidden {
				line += " " + colorize(colorYellow, "(hidden)")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var appsRenameCmd = &cobra.Command{
	Use:   "rename <key> [label]",
	Short: "Set a custom label; omit the label to restore the default",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, _ := cmd.Flags().GetString("default")
		label := ""
		if len(args) == 2 {
			label = args[1]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/apps/rename", map[string]string{
			"key": args[0], "label": label, "defaultLabel": def,
		})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("%s is labeled %q", args[0], result["label"])
		return nil
	},
}

func hideCommand(use, short, done string, hidden bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <key>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := client.post(cmd.Context(), "/apps/hidden", map[string]any{"key": args[0], "hidden": hidden})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			printSuccess("%s %s", done, args[0])
			return nil
		},
	}
}

func init() {
	appsListCmd.Flags().Bool("all", false, "include hidden apps")
	appsRenameCmd.Flags().String("default", "", "the app's own label")
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsRenameCmd)
	appsCmd.AddCommand(hideCommand("hide", "Hide an app from the drawer", "Hid", true))
	appsCmd.AddCommand(hideCommand("unhide", "Show a hidden app in the drawer", "Unhid", false))
}

// --- layout ---

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Edit the home screen layout",
}

type layoutRow struct {
	ID         string          `json:"id"`
	Item       layout.Document `json:"item"`
	Unresolved bool            `json:"unresolved"`
}

func fetchLayout(ctx context.Context, client *apiClient) ([]layoutRow, []layout.Item, error) {
	resp, err := client.get(ctx, "/layout")
	if err != nil {
		return nil, nil, err
	}
	var rows []layoutRow
	if err := decodeJSON(resp, &rows); err != nil {
		return nil, nil, err
	}
	items := make([]layout.Item, 0, len(rows))
	for _, r := range rows {
		it, err := layout.Deserialize(r.Item)
		if err != nil {
			return nil, nil, fmt.Errorf("item %s: %w", r.ID, err)
		}
		items = append(items, it)
	}
	return rows, items, nil
}

func fetchGrid(ctx context.Context, client *apiClient) (layout.Grid, error) {
	resp, err := client.get(ctx, "/settings")
	if err != nil {
		return layout.Grid{}, err
	}
	var snap settingsView
	if err := decodeJSON(resp, &snap); err != nil {
		return layout.Grid{}, err
	}
	rows, _ := snap.Values["gridRows"].(float64)
	cols, _ := snap.Values["gridColumns"].(float64)
	return layout.Grid{Rows: int(rows), Columns: int(cols)}, nil
}

var layoutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List home screen items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rows, items, err := fetchLayout(cmd.Context(), client)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Home screen is empty.")
			return nil
		}
		for i, it := range items {
			fmt.Println(describeItem(it, rows[i].Unresolved))
		}
		return nil
	},
}

func describeItem(it layout.Item, unresolved bool) string {
	p := it.Place()
	pos := fmt.Sprintf("(%d,%d %dx%d)", p.Row, p.Column, p.RowSpan, p.ColumnSpan)
	switch it := it.(type) {
	case layout.Shortcut:
		line := fmt.Sprintf("%-14s %-24s %s", pos, it.Label, colorize(colorCyan, it.ID()))
		if it.Hidden {
			line += " " + colorize(colorYellow, "(hidden)")
		}
		return line
	case layout.Widget:
		line := fmt.Sprintf("%-14s %-24s %s", pos, it.ProviderClassName, colorize(colorCyan, it.ID()))
		if unresolved {
			line += " " + colorize(colorRed, "(provider missing)")
		}
		return line
	}
	return pos
}

// placement returns the cell from --row/--column, or the first free cell
// when neither is given.
func placement(ctx context.Context, cmd *cobra.Command, client *apiClient, rowSpan, colSpan int) (layout.Placement, error) {
	row, _ := cmd.Flags().GetInt("row")
	col, _ := cmd.Flags().GetInt("column")
	if row >= 0 && col >= 0 {
		return layout.Placement{Row: row, Column: col, RowSpan: rowSpan, ColumnSpan: colSpan}, nil
	}

	grid, err := fetchGrid(ctx, client)
	if err != nil {
		return layout.Placement{}, err
	}
	_, items, err := fetchLayout(ctx, client)
	if err != nil {
		return layout.Placement{}, err
	}
	p, ok := grid.FreeCell(items, rowSpan, colSpan)
	if !ok {
		return layout.Placement{}, fmt.Errorf("no free %dx%d cell on the %dx%d grid", rowSpan, colSpan, grid.Rows, grid.Columns)
	}
	return p, nil
}

func addItem(ctx context.Context, client *apiClient, it layout.Item) error {
	doc, err := layout.Serialize(it)
	if err != nil {
		return err
	}
	resp, err := client.post(ctx, "/layout/items", doc)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

var layoutAddCmd = &cobra.Command{
	Use:   "add <package>",
	Short: "Add an app shortcut",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		activity, _ := cmd.Flags().GetString("activity")
		label, _ := cmd.Flags().GetString("label")
		user, _ := cmd.Flags().GetInt("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		p, err := placement(cmd.Context(), cmd, client, 1, 1)
		if err != nil {
			return err
		}
		s := layout.Shortcut{
			Placement:         p,
			Label:             label,
			PackageName:       args[0],
			ActivityClassName: activity,
			UserProfileID:     user,
		}
		if err := addItem(cmd.Context(), client, s); err != nil {
			return err
		}
		printSuccess("Added %s at (%d, %d)", s.ID(), p.Row, p.Column)
		return nil
	},
}

// newWidgetID derives a positive instance id for widgets added from the CLI.
func newWidgetID() int {
	return int(uuid.New().ID() & 0x7fffffff)
}

var layoutAddWidgetCmd = &cobra.Command{
	Use:   "add-widget <package> <provider>",
	Short: "Add a widget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rowSpan, _ := cmd.Flags().GetInt("rows")
		colSpan, _ := cmd.Flags().GetInt("columns")
		id, _ := cmd.Flags().GetInt("id")
		if id <= 0 {
			id = newWidgetID()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		p, err := placement(cmd.Context(), cmd, client, rowSpan, colSpan)
		if err != nil {
			return err
		}
		w := layout.Widget{
			Placement:         p,
			WidgetInstanceID:  id,
			PackageName:       args[0],
			ProviderClassName: args[1],
		}
		if err := addItem(cmd.Context(), client, w); err != nil {
			return err
		}
		printSuccess("Added %s at (%d, %d)", w.ID(), p.Row, p.Column)
		return nil
	},
}

var layoutMoveCmd = &cobra.Command{
	Use:   "move <id> <row> <column>",
	Short: "Move an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchItem(cmd.Context(), args[0], map[string]any{"row": parseValue(args[1]), "column": parseValue(args[2])},
			"Moved %s", args[0])
	},
}

var layoutResizeCmd = &cobra.Command{
	Use:   "resize <id> <rowSpan> <columnSpan>",
	Short: "Resize an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchItem(cmd.Context(), args[0], map[string]any{"rowSpan": parseValue(args[1]), "columnSpan": parseValue(args[2])},
			"Resized %s", args[0])
	},
}

var layoutHideCmd = &cobra.Command{
	Use:   "hide <id>",
	Short: "Hide a shortcut (use --undo to show it again)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")
		return patchItem(cmd.Context(), args[0], map[string]any{"hidden": !undo}, "Updated %s", args[0])
	},
}

func patchItem(ctx context.Context, id string, body map[string]any, done string, args ...any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.patch(ctx, "/layout/items/"+id, body)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return err
	}
	printSuccess(done, args...)
	return nil
}

var layoutRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/layout/items/"+args[0])
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Removed %s", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{layoutAddCmd, layoutAddWidgetCmd} {
		c.Flags().Int("row", -1, "row (default: first free cell)")
		c.Flags().Int("column", -1, "column (default: first free cell)")
	}
	layoutAddCmd.Flags().String("activity", "", "activity class name")
	layoutAddCmd.Flags().String("label", "", "shortcut label")
	layoutAddCmd.Flags().Int("user", 0, "user profile id")
	layoutAddWidgetCmd.Flags().Int("rows", 1, "row span")
	layoutAddWidgetCmd.Flags().Int("columns", 1, "column span")
	layoutAddWidgetCmd.Flags().Int("id", 0, "widget instance id (default: generated)")
	layoutHideCmd.Flags().Bool("undo", false, "show the shortcut again")

	layoutCmd.AddCommand(layoutListCmd)
	layoutCmd.AddCommand(layoutAddCmd)
	layoutCmd.AddCommand(layoutAddWidgetCmd)
	layoutCmd.AddCommand(layoutMoveCmd)
	layoutCmd.AddCommand(layoutResizeCmd)
	layoutCmd.AddCommand(layoutHideCmd)
	layoutCmd.AddCommand(layoutRemoveCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		keys := config.ShowAll(cfg)
		if asJSON {
			out := make(map[string]string, len(keys))
			for _, k := range keys {
				out[k.Key] = k.Value
			}
			return printJSON(out)
		}
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value, restoring its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "print as JSON")
	configSetCmd.Long = "Set a configuration value.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", ")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
