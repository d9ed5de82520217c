// Package admin exposes a read-only HTTP surface over the Registry for
// operators, mirroring the Handler/Register(router) shape of
// ppriyankuu-godkv/internal/api but trimmed to GET-only endpoints: the
// core coordination protocol never accepts mutation over HTTP.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mcastellin/chatmesh/pkg/registry"
)

// snapshotTTL bounds how stale a cached /peers response may be before
// the next request falls through to the Registry again.
const snapshotTTL = 2 * time.Second

// PeerLister is the subset of *registry.Registry the admin surface
// needs.
type PeerLister interface {
	List() []registry.PeerView
}

// Handler holds the Registry dependency injected from the registry
// binary's main.
type Handler struct {
	reg      PeerLister
	validate *validator.Validate
	cache    *snapshotCache
}

// NewHandler builds a Handler over reg.
func NewHandler(reg PeerLister) *Handler {
	return &Handler{reg: reg, validate: validator.New(), cache: newSnapshotCache(64, snapshotTTL)}
}

// listCached returns the Registry's peer list, reusing a cached
// snapshot when one is still fresh.
func (h *Handler) listCached() []registry.PeerView {
	if v, ok := h.cache.Get("peers"); ok {
		return v.([]registry.PeerView)
	}
	peers := h.reg.List()
	h.cache.Put("peers", peers)
	return peers
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/peers", h.Peers)
	r.GET("/peers/:id", h.Peer)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Peers handles GET /peers, returning the Registry's current
// active-peer snapshot.
func (h *Handler) Peers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peers": h.listCached()})
}

type peerIDParam struct {
	ID string `uri:"id" binding:"required"`
}

// Peer handles GET /peers/:id, returning a single peer's view if it is
// currently active.
func (h *Handler) Peer(c *gin.Context) {
	var param peerIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(param); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, p := range h.listCached() {
		if p.ID == param.ID {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "peer not found or expired"})
}

// NewEngine builds a gin.Engine in release mode with the admin routes
// mounted.
func NewEngine(reg PeerLister) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(reg).Register(r)
	return r
}
