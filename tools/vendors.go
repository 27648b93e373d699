// Package tools provides the concrete external capabilities nodes invoke
// through the tool orchestrator: vendor search sources, menu sources, and
// delivery quotes. Sources are ordinary data providers behind the Tool
// interface so they can be dispatched concurrently, timed out, and mixed
// freely in tests.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// VendorSource finds vendors matching a query near a location.
type VendorSource interface {
	Name() string
	Search(ctx context.Context, query, location string, limit int) ([]order.Vendor, error)
}

// SearchTool adapts a VendorSource to the Tool interface. Args: "query",
// "location", "limit". The result is a []order.Vendor.
type SearchTool struct {
	source VendorSource
}

// NewSearchTool wraps a vendor source as a dispatchable tool.
func NewSearchTool(source VendorSource) *SearchTool {
	return &SearchTool{source: source}
}

func (t *SearchTool) Name() string {
	return t.source.Name()
}

func (t *SearchTool) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	location, _ := args["location"].(string)
	limit, _ := args["limit"].(int)
	if limit <= 0 {
		limit = 5
	}
	return t.source.Search(ctx, query, location, limit)
}

// VendorResults extracts the vendor lists from a dispatch batch, skipping
// failed calls. The returned lists preserve call order so merge precedence
// is deterministic.
func VendorResults(results []forkline.Result) [][]order.Vendor {
	lists := make([][]order.Vendor, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		if vendors, ok := result.Value.([]order.Vendor); ok {
			lists = append(lists, vendors)
		}
	}
	return lists
}

// CatalogSource is a vendor source backed by a fixed catalog. It serves as
// the deterministic default source and as the test double for the HTTP
// sources.
type CatalogSource struct {
	name    string
	vendors []order.Vendor
}

// NewCatalogSource creates a catalog-backed source.
func NewCatalogSource(name string, vendors []order.Vendor) *CatalogSource {
	return &CatalogSource{name: name, vendors: vendors}
}

func (s *CatalogSource) Name() string {
	return s.name
}

// Search filters the catalog by query terms against name and categories.
// An empty query matches everything.
func (s *CatalogSource) Search(ctx context.Context, query, location string, limit int) ([]order.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(query))
	var matches []order.Vendor
	for _, vendor := range s.vendors {
		if matchesTerms(vendor, terms) {
			matches = append(matches, vendor)
		}
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func matchesTerms(vendor order.Vendor, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(vendor.Name + " " + strings.Join(vendor.Categories, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// FailingSource always errors; tests use it to exercise partial-failure
// dispatch paths.
type FailingSource struct {
	name string
	err  error
}

// NewFailingSource creates a source that fails every search.
func NewFailingSource(name string, err error) *FailingSource {
	if err == nil {
		err = fmt.Errorf("source unavailable")
	}
	return &FailingSource{name: name, err: err}
}

func (s *FailingSource) Name() string {
	return s.name
}

func (s *FailingSource) Search(ctx context.Context, query, location string, limit int) ([]order.Vendor, error) {
	return nil, s.err
}
