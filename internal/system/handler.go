// Package system serves the service descriptor and health endpoints.
package system

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vigila/backend/pkg/response"
	"github.com/vigila/backend/pkg/storage"
)

// ServiceName is reported by the descriptor endpoint.
const ServiceName = "VIGILA Backend"

const pingTimeout = 2 * time.Second

// Pinger checks a backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles GET / and GET /healthz.
type Handler struct {
	db          Pinger
	objects     storage.ObjectStore
	objectStore string
	now         func() time.Time
	logger      *zap.Logger
}

// NewHandler creates a system handler. objectStore names the configured object-store driver.
func NewHandler(db Pinger, objects storage.ObjectStore, objectStore string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if objects == nil {
		objects = storage.Disabled{}
	}
	if !objects.Enabled() {
		objectStore = "disabled"
	}
	return &Handler{db: db, objects: objects, objectStore: objectStore, now: time.Now, logger: logger}
}

// Info handles GET /.
func (h *Handler) Info(c *gin.Context) {
	response.OK(c, gin.H{
		"service": ServiceName,
		"status":  "active",
		"storage": gin.H{
			"database":     "PostgreSQL",
			"object_store": h.objectStore,
		},
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Healthz handles GET /healthz. Only the database decides the status code.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	dbOK := true
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Debug("health: database ping failed", zap.Error(err))
		dbOK = false
	}
	s3OK := false
	if h.objects.Enabled() {
		if err := h.objects.Ping(ctx); err != nil {
			h.logger.Debug("health: object store ping failed", zap.Error(err))
		} else {
			s3OK = true
		}
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": dbOK, "db": dbOK, "s3": s3OK})
}
