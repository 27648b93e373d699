package tools

import (
	"context"
	"fmt"
)

// MenuItem is one orderable item from a vendor's menu.
type MenuItem struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Menu is a vendor's orderable menu.
type Menu struct {
	VendorID string     `json:"vendor_id"`
	Items    []MenuItem `json:"items"`
}

// MenuSource fetches a vendor's menu. Sources are tried in priority order
// by the order builder until one returns a non-empty menu.
type MenuSource interface {
	Name() string
	FetchMenu(ctx context.Context, vendorID string) (*Menu, error)
}

// MenuTool adapts a MenuSource to the Tool interface. Args: "vendor_id".
type MenuTool struct {
	source MenuSource
}

// NewMenuTool wraps a menu source as a dispatchable tool.
func NewMenuTool(source MenuSource) *MenuTool {
	return &MenuTool{source: source}
}

func (t *MenuTool) Name() string {
	return t.source.Name()
}

func (t *MenuTool) Call(ctx context.Context, args map[string]any) (any, error) {
	vendorID, _ := args["vendor_id"].(string)
	if vendorID == "" {
		return nil, fmt.Errorf("vendor_id required")
	}
	menu, err := t.source.FetchMenu(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if menu == nil || len(menu.Items) == 0 {
		// Empty lets FirstNonEmpty fall through to the next source.
		return nil, nil
	}
	return menu, nil
}

// CatalogMenus is a menu source backed by a fixed vendor-to-menu table.
type CatalogMenus struct {
	name  string
	menus map[string]*Menu
}

// NewCatalogMenus creates a catalog-backed menu source.
func NewCatalogMenus(name string, menus map[string]*Menu) *CatalogMenus {
	return &CatalogMenus{name: name, menus: menus}
}

func (s *CatalogMenus) Name() string {
	return s.name
}

func (s *CatalogMenus) FetchMenu(ctx context.Context, vendorID string) (*Menu, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.menus[vendorID], nil
}
