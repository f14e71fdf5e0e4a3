package handlers

import (
	"media-catalog/internal/assets"
	"media-catalog/internal/catalog"
	"media-catalog/internal/notify"
	"media-catalog/internal/scanner"
)

type Handlers struct {
	cat     *catalog.Catalog
	scanner *scanner.Scanner
	cache   *assets.Cache
	hub     *notify.Hub
}

func New(cat *catalog.Catalog, scan *scanner.Scanner, cache *assets.Cache, hub *notify.Hub) *Handlers {
	return &Handlers{
		cat:     cat,
		scanner: scan,
		cache:   cache,
		hub:     hub,
	}
}
