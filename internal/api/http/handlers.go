package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/qr-tracker/internal/database"
	"github.com/vadimbarashkov/qr-tracker/internal/models"
	"github.com/vadimbarashkov/qr-tracker/internal/service"
	"github.com/vadimbarashkov/qr-tracker/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// createQRCodeRequest represents the request payload for creating a QR code.
type createQRCodeRequest struct {
	URL         string `json:"url" validate:"required,url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateQRCodeRequest represents the request payload for changing a destination URL.
type updateQRCodeRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// qrCodeResponse represents the response payload for QR code operations.
// Field names follow the persisted wire format.
type qrCodeResponse struct {
	ShortID      string    `json:"shortId"`
	RedirectURL  string    `json:"redirectUrl"`
	QRCodeImage  string    `json:"qrCodeImage"`
	DashboardURL string    `json:"dashboardUrl,omitempty"`
	OriginalURL  string    `json:"originalUrl"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toQRCodeResponse(qr *models.QRCode) qrCodeResponse {
	return qrCodeResponse{
		ShortID:     qr.ShortID,
		RedirectURL: qr.RedirectURL,
		QRCodeImage: qr.Image,
		OriginalURL: qr.OriginalURL,
		Title:       qr.Title,
		Description: qr.Description,
		CreatedAt:   qr.CreatedAt,
		UpdatedAt:   qr.UpdatedAt,
	}
}

type scanEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Country   string    `json:"country,omitempty"`
}

// qrCodeStatsResponse represents the response payload for the stats endpoint.
type qrCodeStatsResponse struct {
	TotalScans  int64               `json:"totalScans"`
	ScansToday  int64               `json:"scansToday"`
	LastScanned *time.Time          `json:"lastScanned,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	Title       string              `json:"title"`
	OriginalURL string              `json:"originalUrl"`
	RecentScans []scanEventResponse `json:"recentScans"`
}

func toQRCodeStatsResponse(stats *models.QRCodeStats) qrCodeStatsResponse {
	recent := make([]scanEventResponse, 0, len(stats.RecentScans))
	for _, e := range stats.RecentScans {
		recent = append(recent, scanEventResponse(e))
	}

	return qrCodeStatsResponse{
		TotalScans:  stats.TotalScans,
		ScansToday:  stats.ScansToday,
		LastScanned: stats.LastScanned,
		CreatedAt:   stats.CreatedAt,
		Title:       stats.Title,
		OriginalURL: stats.OriginalURL,
		RecentScans: recent,
	}
}

// handleCreateQRCode handles POST requests to create a QR code.
//
// The request must contain a valid absolute destination URL; title and
// description are optional. The handler returns the persisted record
// including the rendered QR image and the dashboard link.
func handleCreateQRCode(svc QRCodeService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateQRCode"
	const successMsg = "The QR code has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createQRCodeRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		qr, err := svc.CreateQRCode(r.Context(), req.URL, req.Title, req.Description)
		if err != nil {
			if errors.Is(err, service.ErrInvalidURL) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := toQRCodeResponse(qr)
		data.DashboardURL = baseURL + "/dashboard/" + qr.ShortID

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleRedirect handles GET requests on the public redirect path.
//
// On success the client is redirected to the current destination URL and the
// scan is recorded. Unknown and inactive short IDs redirect to the generic
// not-found page; store failures redirect to the generic error page. The
// client never sees internal error detail on this path.
func handleRedirect(svc QRCodeService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortID := chi.URLParam(r, "shortID")

		meta := models.ScanEvent{
			UserAgent: r.UserAgent(),
			IP:        clientIP(r),
			Country:   r.Header.Get("CF-IPCountry"),
		}
		if meta.Country == "" {
			meta.Country = "unknown"
		}

		qr, err := svc.ResolveShortID(r.Context(), shortID, meta)
		if err != nil {
			if errors.Is(err, database.ErrQRCodeNotFound) {
				http.Redirect(w, r, baseURL+"/404", http.StatusFound)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			http.Redirect(w, r, baseURL+"/500", http.StatusFound)
			return
		}

		http.Redirect(w, r, qr.OriginalURL, http.StatusFound)
	}
}

// clientIP returns the client address as seen after the RealIP middleware,
// with any port stripped. The value is recorded as-is; no lookup is done.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

// handleGetQRCodeStats handles GET requests for the dashboard projection of a QR code.
//
// The handler returns total and today's scan counts plus the recent scan
// window, or a 404 error if the short ID doesn't exist.
func handleGetQRCodeStats(svc QRCodeService) http.HandlerFunc {
	const op = "api.http.handleGetQRCodeStats"
	const successMsg = "The QR code statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortID := chi.URLParam(r, "shortID")

		stats, err := svc.GetQRCodeStats(r.Context(), shortID)
		if err != nil {
			if errors.Is(err, database.ErrQRCodeNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toQRCodeStatsResponse(stats)))
	}
}

// handleModifyURL handles PUT requests to change the destination of a QR code.
//
// The request must contain a valid absolute URL. The QR image is not
// regenerated; it encodes the redirect URL, which never changes.
func handleModifyURL(svc QRCodeService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleModifyURL"
	const successMsg = "The QR code destination was successfully modified."

	return func(w http.ResponseWriter, r *http.Request) {
		var req updateQRCodeRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		shortID := chi.URLParam(r, "shortID")

		qr, err := svc.ModifyURL(r.Context(), shortID, req.URL)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			case errors.Is(err, database.ErrQRCodeNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toQRCodeResponse(qr)))
	}
}

// handleDeactivateQRCode handles DELETE requests to switch a QR code off.
//
// Once deactivated, the short ID resolves like an unknown ID while the stats
// endpoint keeps serving the accumulated history.
func handleDeactivateQRCode(svc QRCodeService) http.HandlerFunc {
	const op = "api.http.handleDeactivateQRCode"
	const successMsg = "The QR code was successfully deactivated."

	return func(w http.ResponseWriter, r *http.Request) {
		shortID := chi.URLParam(r, "shortID")

		err := svc.DeactivateQRCode(r.Context(), shortID)
		if err != nil {
			if errors.Is(err, database.ErrQRCodeNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}
