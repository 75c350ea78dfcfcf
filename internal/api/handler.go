// Package api is the HTTP surface over the catalog: public read
// endpoints for the front end and editor-protected correction
// endpoints that broadcast change events.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coindex/internal/auth"
	"coindex/internal/catalog"
	"coindex/internal/coinid"
	"coindex/internal/composition"
	"coindex/internal/events"
	"coindex/internal/export"
	"coindex/internal/resolver"
	"coindex/pkg/models"
)

type Handler struct {
	Coins        *catalog.CoinRepo
	Variants     *catalog.VariantRepo
	Resolver     *resolver.Resolver
	Compositions *composition.Registry
	Export       *export.Service
	Hub          *events.Hub
}

func NewHandler(coins *catalog.CoinRepo, variants *catalog.VariantRepo, res *resolver.Resolver, comps *composition.Registry, svc *export.Service, hub *events.Hub) *Handler {
	return &Handler{
		Coins:        coins,
		Variants:     variants,
		Resolver:     res,
		Compositions: comps,
		Export:       svc,
		Hub:          hub,
	}
}

// RegisterPublic mounts the read-only endpoints.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/coins", h.listCoins)
	rg.GET("/coins/:id", h.getCoin)
	rg.GET("/coins/:id/variants", h.coinVariants)
	rg.GET("/types/:type/variants", h.typeVariants)
	rg.GET("/compositions/:key", h.getComposition)
}

// RegisterEditor mounts the correction endpoints; the caller wraps the
// group in auth.EditorOnly.
func (h *Handler) RegisterEditor(rg *gin.RouterGroup) {
	rg.PUT("/coins/:id", h.putCoin)
	rg.PUT("/variants/:id", h.putVariant)
	rg.POST("/coins/:id/merge", h.mergeCoin)
}

func (h *Handler) listCoins(c *gin.Context) {
	q := catalog.ListQuery{
		Q:            c.Query("q"),
		Denomination: c.Query("denomination"),
		Rarity:       c.Query("rarity"),
		Limit:        parseInt(c.Query("limit"), 20),
		Offset:       parseInt(c.Query("offset"), 0),
	}

	total, err := h.Coins.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Coins.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getCoin(c *gin.Context) {
	coin, err := h.Coins.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if coin == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	view, err := h.Export.CoinView(c.Request.Context(), *coin)
	if err != nil {
		// attributes are still useful when variants can't resolve
		c.JSON(http.StatusOK, gin.H{"coin": coin, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// coinVariants returns the ordered, parent-resolved variant list for
// one coin identifier.
func (h *Handler) coinVariants(c *gin.Context) {
	id, err := coinid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed identifier"})
		return
	}

	variants, err := h.Variants.VariantsFor(c.Request.Context(), id.Type, id.Year, id.Mint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]export.ResolvedVariant, 0, len(variants))
	for _, v := range variants {
		base, err := h.Resolver.ResolveToBase(c.Request.Context(), v.VariantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, export.ResolvedVariant{Variant: v, BaseVariantID: base})
	}

	resp := gin.H{"coin_id": id.String(), "variants": out}
	if len(variants) > 0 {
		def, err := h.Resolver.ResolveAmbiguousBase(c.Request.Context(), id.Type, id.Year, id.Mint)
		if err == nil {
			resp["default_variant_id"] = def
		} else if !errors.Is(err, resolver.ErrNoBaseVariant) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) typeVariants(c *gin.Context) {
	out, err := h.Export.VariantsForType(c.Request.Context(), strings.ToUpper(c.Param("type")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": out})
}

func (h *Handler) getComposition(c *gin.Context) {
	comp, err := h.Compositions.Resolve(c.Param("key"))
	if err != nil {
		if errors.Is(err, composition.ErrUnknownCompositionKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (h *Handler) putCoin(c *gin.Context) {
	var coin models.CoinRecord
	if err := c.ShouldBindJSON(&coin); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	coin.CoinID = c.Param("id")

	if err := h.Coins.Upsert(c.Request.Context(), coin); err != nil {
		if errors.Is(err, coinid.ErrMalformedIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert failed"})
		return
	}

	h.broadcast(c, events.CatalogEvent{Type: "coin.update", CoinID: coin.CoinID})
	c.JSON(http.StatusOK, gin.H{"status": "updated", "coin_id": coin.CoinID})
}

func (h *Handler) putVariant(c *gin.Context) {
	var v models.Variant
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v.VariantID = c.Param("id")

	if err := h.Variants.Add(c.Request.Context(), v); err != nil {
		switch {
		case errors.Is(err, coinid.ErrMalformedIdentifier):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, catalog.ErrDuplicateVariant):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert failed"})
		}
		return
	}

	h.broadcast(c, events.CatalogEvent{Type: "variant.update", Variant: v.VariantID})
	c.JSON(http.StatusOK, gin.H{"status": "updated", "variant_id": v.VariantID})
}

type mergeReq struct {
	NewID string `json:"new_id"`
}

func (h *Handler) mergeCoin(c *gin.Context) {
	var req mergeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	oldID := c.Param("id")
	if err := h.Coins.MergeInto(c.Request.Context(), oldID, req.NewID); err != nil {
		if errors.Is(err, coinid.ErrMalformedIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcast(c, events.CatalogEvent{Type: "coin.merge", CoinID: req.NewID})
	c.JSON(http.StatusOK, gin.H{"status": "merged", "old_id": oldID, "new_id": req.NewID})
}

func (h *Handler) broadcast(c *gin.Context, ev events.CatalogEvent) {
	if h.Hub == nil {
		return
	}
	ev.At = time.Now().UTC()
	if claims := auth.MustGetClaims(c); claims != nil {
		ev.EditedBy = claims.Username
	}
	h.Hub.Broadcast(ev)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
