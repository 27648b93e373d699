package main

import (
	"log/slog"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/nodes"
	"github.com/forkline-ai/forkline/order"
	"github.com/forkline-ai/forkline/tools"
)

func rating(v float64) *float64 { return &v }

// defaultDeps wires the node dependencies from built-in catalogs. Real
// vendor APIs can be layered in as additional sources via tools.HTTPSource.
func defaultDeps(logger *slog.Logger) nodes.Deps {
	primary := tools.NewCatalogSource("catalog", []order.Vendor{
		{ID: "v-tandoori", Name: "Tandoori Palace", Rating: rating(4.7), PriceLevel: "$$", Address: "12 Curry Ln", Categories: []string{"indian", "vegetarian"}},
		{ID: "v-luigi", Name: "Luigi's Trattoria", Rating: rating(4.5), PriceLevel: "$$", Address: "98 Olive St", Categories: []string{"italian", "pizza"}},
		{ID: "v-green", Name: "Green Bowl", Rating: rating(4.3), PriceLevel: "$", Address: "5 Kale Ave", Categories: []string{"salads", "vegan", "gluten-free"}},
		{ID: "v-sakura", Name: "Sakura Sushi", Rating: rating(4.8), PriceLevel: "$$$", Address: "33 Wasabi Way", Categories: []string{"japanese", "sushi"}},
		{ID: "v-taq", Name: "Taqueria del Sol", Rating: rating(4.4), PriceLevel: "$", Address: "77 Salsa Blvd", Categories: []string{"mexican", "tacos"}},
	})
	secondary := tools.NewCatalogSource("partners", []order.Vendor{
		{ID: "p-luigi", Name: "Luigi's Trattoria", Rating: rating(4.2), PriceLevel: "$$", Categories: []string{"italian"}},
		{ID: "p-pho", Name: "Pho Real", Rating: rating(4.6), PriceLevel: "$", Categories: []string{"vietnamese", "soup"}},
	})

	menus := tools.NewCatalogMenus("catalog", map[string]*tools.Menu{
		"v-tandoori": {VendorID: "v-tandoori", Items: []tools.MenuItem{
			{ID: "m-thali", Name: "Veggie Thali Tray", Price: 14.50},
			{ID: "m-tikka", Name: "Chicken Tikka Tray", Price: 16.75},
		}},
		"v-luigi": {VendorID: "v-luigi", Items: []tools.MenuItem{
			{ID: "m-pizza", Name: "Party Pizza", Price: 12.00},
			{ID: "m-pasta", Name: "Pasta Tray", Price: 13.25},
		}},
		"v-green": {VendorID: "v-green", Items: []tools.MenuItem{
			{ID: "m-bowl", Name: "Harvest Bowl", Price: 11.50},
		}},
		"v-sakura": {VendorID: "v-sakura", Items: []tools.MenuItem{
			{ID: "m-bento", Name: "Bento Box", Price: 18.00},
			{ID: "m-roll", Name: "Roll Platter", Price: 21.50},
		}},
		"v-taq": {VendorID: "v-taq", Items: []tools.MenuItem{
			{ID: "m-taco", Name: "Taco Bar Kit", Price: 10.25},
		}},
	})

	return nodes.Deps{
		Preferences: nodes.NewMemoryPreferences(),
		VendorSources: []forkline.Tool{
			tools.NewSearchTool(primary),
			tools.NewSearchTool(secondary),
		},
		MenuSources: []forkline.Tool{tools.NewMenuTool(menus)},
		Quotes:      tools.NewQuoteTool(tools.NewFlatRateQuotes("flatrate", 799)),
		Notifier:    nodes.LogNotifier{Logger: logger},
		Logger:      logger,
	}
}
