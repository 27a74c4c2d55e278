// Package handler is the thin HTTP layer over the issuance core. It consumes
// the core through three narrow capability interfaces so transport code never
// sees more of the service than the routes it serves.
package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"bestiary/internal/issuance/models"
	"bestiary/internal/issuance/service"
	"bestiary/internal/platform/middleware"
)

// AdminOps are the owner-only configuration and lifecycle operations.
type AdminOps interface {
	SetRenderer(ctx context.Context, renderer common.Address) error
	SetCostUnit(ctx context.Context, unit uint64) error
	SetSigner(ctx context.Context, signer common.Address) error
	SetSettings(ctx context.Context, expirationWindow, totalCapacity uint64, thresholds []uint32) error
	StartIssuance(ctx context.Context, funds *big.Int) (service.StartResult, error)
}

// ClaimOps accept signed mint claims from the public.
type ClaimOps interface {
	SubmitClaim(ctx context.Context, claim models.Claim) (models.Record, error)
	PreviewClaim(ctx context.Context, claim models.Claim) (models.Record, error)
}

// QueryOps are the read-only accessors.
type QueryOps interface {
	Status(ctx context.Context) (service.Status, error)
	Record(ctx context.Context, id uint64) (models.Record, error)
	Document(ctx context.Context, id uint64) ([]byte, error)
}

// Handler wires the issuance routes.
type Handler struct {
	logger   *slog.Logger
	admin    AdminOps
	claims   ClaimOps
	queries  QueryOps
	ownerKey []byte
}

// New creates the issuance Handler. ownerKey signs the owner JWTs that gate
// the admin routes.
func New(admin AdminOps, claims ClaimOps, queries QueryOps, ownerKey []byte, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		admin:    admin,
		claims:   claims,
		queries:  queries,
		ownerKey: ownerKey,
	}
}

// Register mounts all issuance routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	root := chi.NewRouter()
	root.Use(middleware.Recovery(h.logger))
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(h.logger))
	root.Use(middleware.ContentTypeJSON)

	root.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireOwner(h.ownerKey, h.logger))
		admin.Use(timeout(30 * time.Second))
		admin.Post("/admin/renderer", h.handleSetRenderer)
		admin.Post("/admin/cost-unit", h.handleSetCostUnit)
		admin.Post("/admin/signer", h.handleSetSigner)
		admin.Post("/admin/settings", h.handleSetSettings)
		admin.Post("/admin/issuance/start", h.handleStartIssuance)
	})

	root.Post("/claims", h.handleSubmitClaim)
	root.Post("/claims/preview", h.handlePreviewClaim)
	root.Get("/issuance", h.handleStatus)
	root.Get("/creatures/{id}", h.handleGetRecord)
	root.Get("/creatures/{id}/document", h.handleGetDocument)

	r.Mount("/", root)
}

func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
