package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/luxelabs/concierge/internal/indexer"
	"github.com/luxelabs/concierge/internal/store"
	"github.com/luxelabs/concierge/models"
)

// AdminHandler exposes the catalog writes that feed the discovery
// pipeline. Every write hands an index job to the background indexer.
type AdminHandler struct {
	Catalog store.Catalog
	Indexer *indexer.Indexer
	Logger  *log.Logger
}

func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	guard := func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) }
	g.POST("/products", h.upsertProduct, guard)
	g.DELETE("/products/:id", h.deleteProduct, guard)
	g.POST("/reindex", h.reindex, guard)
}

func (h *AdminHandler) upsertProduct(c echo.Context) error {
	var p models.Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and category are required")
	}
	if p.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be positive")
	}

	saved, err := h.Catalog.Upsert(c.Request().Context(), p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Indexer != nil {
		h.Indexer.EnqueueUpsert(saved)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *AdminHandler) deleteProduct(c echo.Context) error {
	id := c.Param("id")
	if err := h.Catalog.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Indexer != nil {
		h.Indexer.EnqueueDelete(id)
	}
	return c.NoContent(http.StatusNoContent)
}

// reindex triggers a full catalog resync in the background and returns
// immediately.
func (h *AdminHandler) reindex(c echo.Context) error {
	if h.Indexer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "indexer disabled")
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		ran, err := h.Indexer.TryResync(ctx)
		if err != nil {
			h.Logger.Printf("reindex failed: %v", err)
			return
		}
		if !ran {
			h.Logger.Printf("reindex skipped: another resync holds the lock")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "reindex started"})
}
