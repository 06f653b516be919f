package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/qr-tracker/internal/models"
)

// QRCodeService defines the interface for the core QR code business logic.
type QRCodeService interface {
	// CreateQRCode creates a QR code bound to the given destination URL.
	// It returns the persisted QR code including the rendered image, or an error
	// if the destination is invalid or the operation fails.
	CreateQRCode(ctx context.Context, originalURL, title, description string) (*models.QRCode, error)

	// ResolveShortID resolves a short ID to its QR code while recording a scan
	// event built from the request metadata. Unknown and inactive short IDs fail
	// with the same not-found error.
	ResolveShortID(ctx context.Context, shortID string, meta models.ScanEvent) (*models.QRCode, error)

	// ModifyURL updates the destination URL linked to the short ID without
	// touching the QR image.
	ModifyURL(ctx context.Context, shortID, originalURL string) (*models.QRCode, error)

	// DeactivateQRCode switches the QR code off; it stops resolving but stays
	// readable on the stats path.
	DeactivateQRCode(ctx context.Context, shortID string) error

	// GetQRCodeStats retrieves the dashboard projection of the QR code:
	// total scans, today's scans and the recent scan window.
	GetQRCodeStats(ctx context.Context, shortID string) (*models.QRCodeStats, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
// baseURL is the public base URL of the deployment, used for dashboard links and
// for the generic not-found and error redirect targets.
func NewRouter(logger *httplog.Logger, svc QRCodeService, baseURL string) http.Handler {
	baseURL = strings.TrimSuffix(baseURL, "/")

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()

	r.Get("/ping", handlePing)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Route("/qr", func(r chi.Router) {
		r.Post("/create", handleCreateQRCode(svc, validate, baseURL))
		r.Get("/stats/{shortID}", handleGetQRCodeStats(svc))

		r.Route("/{shortID}", func(r chi.Router) {
			r.Put("/", handleModifyURL(svc, validate))
			r.Delete("/", handleDeactivateQRCode(svc))
		})
	})

	r.Get("/redirect/{shortID}", handleRedirect(svc, baseURL))

	return r
}
