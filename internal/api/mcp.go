package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/layout"
	"github.com/kalambet/hearth/internal/settings"
)

// MCPDeps holds dependencies for the MCP server. Resolver is optional.
type MCPDeps struct {
	Settings *settings.Service
	Layout   *layout.Editor
	Resolver *layout.Resolver
}

// NewMCPServer creates an MCP server exposing launcher settings and the home
// layout.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"hearth",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("hearth: launcher settings, gesture bindings and home screen layout."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_settings",
			mcp.WithDescription("List every setting with its current value, grouped by category."),
		),
		mcpListSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("update_setting",
			mcp.WithDescription("Change one setting by name. The value is JSON (true, 48, \"text\", [\"a/0\"])."),
			mcp.WithString("name", mcp.Description("Setting name (e.g. iconSize)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value as JSON"), mcp.Required()),
		),
		mcpUpdateSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("set_gesture_app",
			mcp.WithDescription("Bind an app to a gesture slot. An empty package clears the slot."),
			mcp.WithString("gesture", mcp.Description("Gesture slot (e.g. swipeUpApp)"), mcp.Required()),
			mcp.WithString("package", mcp.Description("Package name of the app")),
			mcp.WithString("activity", mcp.Description("Activity class name")),
			mcp.WithString("label", mcp.Description("Label shown for the binding")),
			mcp.WithNumber("user", mcp.Description("User profile id (default 0)")),
		),
		mcpSetGestureApp(deps),
	)

	s.AddTool(
		mcp.NewTool("rename_app",
			mcp.WithDescription("Set a custom drawer label for an app. A blank label restores the default."),
			mcp.WithString("key", mcp.Description("App key <package>/<user>"), mcp.Required()),
			mcp.WithString("label", mcp.Description("Custom label")),
			mcp.WithString("default_label", mcp.Description("The app's own label")),
		),
		mcpRenameApp(deps),
	)

	s.AddTool(
		mcp.NewTool("hide_app",
			mcp.WithDescription("Hide or unhide an app in the drawer."),
			mcp.WithString("key", mcp.Description("App key <package>/<user>"), mcp.Required()),
			mcp.WithBoolean("hidden", mcp.Description("Hide when true (default true)")),
		),
		mcpHideApp(deps),
	)

	s.AddTool(
		mcp.NewTool("move_layout_item",
			mcp.WithDescription("Move a home screen item to a new cell."),
			mcp.WithString("id", mcp.Description("Item id"), mcp.Required()),
			mcp.WithNumber("row", mcp.Description("Target row"), mcp.Required()),
			mcp.WithNumber("column", mcp.Description("Target column"), mcp.Required()),
		),
		mcpMoveItem(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"settings://current",
			"Current Settings",
			mcp.WithResourceDescription("Current settings snapshot as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"layout://home",
			"Home Layout",
			mcp.WithResourceDescription("Home screen items with resolution state"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLayout(deps),
	)

	return s
}

func mcpListSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap := deps.Settings.Current()

		type settingResult struct {
			Name    string `json:"name"`
			Title   string `json:"title"`
			Value   any    `json:"value"`
			Enabled bool   `json:"enabled"`
		}
		type groupResult struct {
			Category string          `json:"category"`
			Settings []settingResult `json:"settings"`
		}

		var groups []groupResult
		for _, g := range settings.ByCategory() {
			gr := groupResult{Category: string(g.Category)}
			for _, d := range g.Descriptors {
				v, _ := snap.Value(d.Name)
				if ref, ok := v.(apps.Reference); ok && ref.IsZero() {
					v = nil
				}
				gr.Settings = append(gr.Settings, settingResult{
					Name:    d.Name,
					Title:   d.Title,
					Value:   v,
					Enabled: snap.Enabled(d.Name),
				})
			}
			groups = append(groups, gr)
		}

		b, err := json.Marshal(groups)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal settings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpdateSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		raw, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		if _, ok := settings.Lookup(name); !ok {
			return mcpError(fmt.Sprintf("unknown setting %q", name)), nil
		}

		// Bare words are taken as strings so URLs need no quoting.
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		if err := deps.Settings.Update(ctx, name, value); err != nil {
			return mcpError(fmt.Sprintf("failed to update %s: %v", name, err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", name, raw)), nil
	}
}

func mcpSetGestureApp(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("gesture")
		if err != nil {
			return mcpError("gesture is required"), nil
		}
		g, ok := settings.ParseGesture(name)
		if !ok {
			return mcpError(fmt.Sprintf("unknown gesture %q", name)), nil
		}

		ref := apps.Reference{
			Label:             req.GetString("label", ""),
			PackageName:       req.GetString("package", ""),
			ActivityClassName: req.GetString("activity", ""),
			UserProfileID:     req.GetInt("user", 0),
		}
		if ref.PackageName == "" {
			if err := deps.Settings.ClearGestureApp(ctx, g); err != nil {
				return mcpError(fmt.Sprintf("failed to clear %s: %v", g, err)), nil
			}
			return mcpText(fmt.Sprintf("Cleared %s", g)), nil
		}

		if err := deps.Settings.SetGestureApp(ctx, g, ref); err != nil {
			return mcpError(fmt.Sprintf("failed to bind %s: %v", g, err)), nil
		}
		return mcpText(fmt.Sprintf("Bound %s to %s", g, ref.Key())), nil
	}
}

func mcpRenameApp(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		def := req.GetString("default_label", "")
		if err := deps.Settings.RenameApp(ctx, key, req.GetString("label", ""), def); err != nil {
			return mcpError(fmt.Sprintf("failed to rename %s: %v", key, err)), nil
		}
		return mcpText(fmt.Sprintf("%s is now labeled %q", key, deps.Settings.Current().Label(key, def))), nil
	}
}

func mcpHideApp(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		hidden := req.GetBool("hidden", true)
		if err := deps.Settings.SetAppHidden(ctx, key, hidden); err != nil {
			return mcpError(fmt.Sprintf("failed to update %s: %v", key, err)), nil
		}
		if hidden {
			return mcpText(fmt.Sprintf("Hid %s", key)), nil
		}
		return mcpText(fmt.Sprintf("Unhid %s", key)), nil
	}
}

func mcpMoveItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		row, err := req.RequireInt("row")
		if err != nil {
			return mcpError("row is required"), nil
		}
		col, err := req.RequireInt("column")
		if err != nil {
			return mcpError("column is required"), nil
		}
		if _, err := deps.Layout.Move(ctx, id, row, col); err != nil {
			return mcpError(fmt.Sprintf("failed to move %s: %v", id, err)), nil
		}
		return mcpText(fmt.Sprintf("Moved %s to (%d, %d)", id, row, col)), nil
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Settings.Current())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceLayout(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		view, err := layoutView(ctx, layoutDeps{Layout: deps.Layout, Resolver: deps.Resolver})
		if err != nil {
			return nil, fmt.Errorf("failed to load layout: %w", err)
		}
		b, err := json.Marshal(view)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal layout: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
