package tools

import (
	"context"
	"fmt"
)

func registerCatalogTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "search_catalog",
		Description: "Search the cached browser catalog by name substring, optionally " +
			"filtered to one category. Empty-handed while the catalog is cold.",
		Schema: `{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"category": {"type": "string"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 200}
			},
			"required": ["query"]
		}`,
		ErrorPrefix: "catalog search failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			query, err := args.String("query")
			if err != nil {
				return nil, err
			}
			category, err := args.StringOr("category", "")
			if err != nil {
				return nil, err
			}
			limit, err := args.IntOr("limit", 25)
			if err != nil {
				return nil, err
			}
			hits := deps.Catalog.Search(query, category, limit)
			return &Result{
				Message: fmt.Sprintf("%d catalog hits for %q", len(hits), query),
				Data:    map[string]any{"items": hits},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "list_catalog_category",
		Description: "List the cached entries of one catalog category.",
		Schema: `{
			"type": "object",
			"properties": {"category": {"type": "string", "minLength": 1}},
			"required": ["category"]
		}`,
		Needs:       Needs{Catalog: true},
		ErrorPrefix: "could not list category",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			category, err := args.String("category")
			if err != nil {
				return nil, err
			}
			items := deps.Catalog.ByCategory(category)
			return &Result{
				Message: fmt.Sprintf("%d items under %s", len(items), category),
				Data:    map[string]any{"items": items},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "refresh_catalog",
		Description: "Re-walk the DAW browser and rebuild the catalog indices. " +
			"A refresh already in flight makes this a no-op.",
		ErrorPrefix: "catalog refresh failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			if err := deps.Catalog.Populate(ctx); err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("catalog refreshed, %d items", deps.Catalog.Size()),
				Data:    deps.Catalog.Status(),
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "get_catalog_status",
		Description: "Report catalog population state, item count, and data source.",
		ErrorPrefix: "could not read catalog status",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			status := deps.Catalog.Status()
			return &Result{Message: "catalog status retrieved", Data: status}, nil
		},
	})
}
