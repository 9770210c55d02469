package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/geocoder89/raksha/internal/cache"
	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/domain/dangerzone"
	"github.com/gin-gonic/gin"
)

const activeZonesCacheKey = "dangerzones:active"

type ZoneStore interface {
	Create(ctx context.Context, z dangerzone.Zone) error
	ListActive(ctx context.Context) ([]dangerzone.Zone, error)
}

type DangerZonesHandler struct {
	zones ZoneStore
	cache cache.Store
	now   func() time.Time

	// gen is bumped by every seed; a list only caches what it read under the same gen.
	mu  sync.Mutex
	gen uint64
}

// NewDangerZonesHandler accepts a nil cache, in which case every list hits the store.
func NewDangerZonesHandler(zones ZoneStore, c cache.Store) *DangerZonesHandler {
	return &DangerZonesHandler{zones: zones, cache: c, now: time.Now}
}

func (h *DangerZonesHandler) List(ctx *gin.Context) {
	if h.cache != nil {
		if b, ok := h.cache.Get(ctx.Request.Context(), activeZonesCacheKey); ok {
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	gen := h.generation()

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	zones, err := h.zones.ListActive(cctx)
	if err != nil {
		RespondInternal(ctx, "dangerzones.list", err)
		return
	}

	if zones == nil {
		zones = []dangerzone.Zone{}
	}

	b, err := json.Marshal(zones)
	if err != nil {
		RespondInternal(ctx, "dangerzones.list.encode", err)
		return
	}

	if h.cache != nil {
		h.cacheIfCurrent(ctx.Request.Context(), gen, b)
		ctx.Header("X-Cache", "MISS")
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

// SeedTestZone stores the fixed test polygon, with optional name, description and severity.
func (h *DangerZonesHandler) SeedTestZone(ctx *gin.Context) {
	var req dangerzone.SeedRequest
	if !BindOptionalJSON(ctx, &req) {
		return
	}

	zone, err := dangerzone.NewTestZone(req, h.now())
	if err != nil {
		if errors.Is(err, dangerzone.ErrInvalidSeverity) {
			RespondBadRequest(ctx, "Severity must be one of low, medium, high.", nil)
			return
		}
		RespondInternal(ctx, "dangerzones.seed.build", err)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.zones.Create(cctx, zone); err != nil {
		if errors.Is(err, dangerzone.ErrNameTaken) {
			RespondBadRequest(ctx, "Danger zone with this name already exists.", nil)
			return
		}
		RespondInternal(ctx, "dangerzones.seed.create", err)
		return
	}

	h.invalidate(ctx.Request.Context())

	ctx.JSON(http.StatusOK, gin.H{
		"msg":        "Test Danger Zone added successfully!",
		"dangerZone": zone,
	})
}

func (h *DangerZonesHandler) generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

// cacheIfCurrent drops b when a seed landed after the list read the store.
func (h *DangerZonesHandler) cacheIfCurrent(ctx context.Context, gen uint64, b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gen != gen {
		return
	}
	h.cache.Set(ctx, activeZonesCacheKey, b)
}

func (h *DangerZonesHandler) invalidate(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen++
	if h.cache != nil {
		h.cache.Delete(ctx, activeZonesCacheKey)
	}
}
