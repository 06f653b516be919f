package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vadimbarashkov/qr-tracker/internal/database"
	"github.com/vadimbarashkov/qr-tracker/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// shortIDAlphabet is the 62-symbol alphabet short IDs are drawn from.
	shortIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// shortIDLength is the fixed length of public short IDs.
	shortIDLength = 8
)

var (
	// ErrInvalidURL is returned when a destination URL is not a well-formed absolute URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short ID is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short id")
)

// QRCodeRepository defines the interface for working with QR code records
// at the business logic layer.
type QRCodeRepository interface {
	// Create inserts a new QR code record.
	// Returns the persisted QR code or database.ErrShortIDExists on an ID collision.
	Create(ctx context.Context, qr models.QRCode) (*models.QRCode, error)

	// RegisterScan atomically increments the scan counter, sets the last-scanned
	// time and appends one scan event for an active short ID.
	// Returns the updated QR code or database.ErrQRCodeNotFound when the short ID
	// is unknown or inactive.
	RegisterScan(ctx context.Context, shortID string, event models.ScanEvent) (*models.QRCode, error)

	// Update changes the destination URL for a given short ID.
	// Returns the updated QR code or database.ErrQRCodeNotFound.
	Update(ctx context.Context, shortID, originalURL string) (*models.QRCode, error)

	// Deactivate switches a QR code off, making it resolve like an unknown ID.
	// Returns database.ErrQRCodeNotFound when the short ID is unknown.
	Deactivate(ctx context.Context, shortID string) error

	// GetStats retrieves a QR code with its scan history capped to the most
	// recent entries, without registering a scan.
	GetStats(ctx context.Context, shortID string) (*models.QRCode, error)
}

// ImageEncoder renders a string into a QR image artifact.
type ImageEncoder interface {
	Encode(content string) (string, error)
}

// QRCodeService provides the QR code lifecycle: creation, resolution with
// scan tracking, destination updates, deactivation and stats aggregation.
type QRCodeService struct {
	repo    QRCodeRepository
	encoder ImageEncoder
	baseURL string
	now     func() time.Time
}

// NewQRCodeService creates a new QRCodeService. baseURL is the public base
// URL of the deployment, used to derive redirect and dashboard URLs.
func NewQRCodeService(repo QRCodeRepository, encoder ImageEncoder, baseURL string) *QRCodeService {
	return &QRCodeService{
		repo:    repo,
		encoder: encoder,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *QRCodeService) redirectURL(shortID string) string {
	return s.baseURL + "/redirect/" + shortID
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidURL
	}

	return u, nil
}

// CreateQRCode validates the destination URL, allocates a short ID, renders
// the QR image from the redirect URL and persists the new record. The image
// encodes the redirect URL, so later destination changes never invalidate it.
// ID collisions are retried with a fresh short ID up to a fixed bound.
func (s *QRCodeService) CreateQRCode(ctx context.Context, originalURL, title, description string) (*models.QRCode, error) {
	const op = "service.QRCodeService.CreateQRCode"
	const maxRetries = 5

	u, err := parseAbsoluteURL(originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if title == "" {
		title = "QR pour " + u.Hostname()
	}

	for i := 0; i < maxRetries; i++ {
		shortID, err := gonanoid.Generate(shortIDAlphabet, shortIDLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short id: %w", op, err)
		}

		redirectURL := s.redirectURL(shortID)

		image, err := s.encoder.Encode(redirectURL)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to render qr image: %w", op, err)
		}

		qr, err := s.repo.Create(ctx, models.QRCode{
			ShortID:     shortID,
			OriginalURL: originalURL,
			RedirectURL: redirectURL,
			Title:       title,
			Description: description,
			Image:       image,
		})
		if err != nil {
			if errors.Is(err, database.ErrShortIDExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create qr code: %w", op, err)
		}

		return qr, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortID resolves a short ID to its QR code while recording the scan.
// Lookup and scan write happen as one atomic store operation, so two
// concurrent resolutions of the same short ID never lose an increment.
// Unknown and inactive short IDs fail identically with database.ErrQRCodeNotFound.
func (s *QRCodeService) ResolveShortID(ctx context.Context, shortID string, meta models.ScanEvent) (*models.QRCode, error) {
	const op = "service.QRCodeService.ResolveShortID"

	meta.Timestamp = s.now()

	qr, err := s.repo.RegisterScan(ctx, shortID, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short id: %w", op, err)
	}

	return qr, nil
}

// ModifyURL updates the destination URL of a QR code. The QR image is left
// as generated at creation time.
func (s *QRCodeService) ModifyURL(ctx context.Context, shortID, originalURL string) (*models.QRCode, error) {
	const op = "service.QRCodeService.ModifyURL"

	if _, err := parseAbsoluteURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	qr, err := s.repo.Update(ctx, shortID, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	return qr, nil
}

// DeactivateQRCode switches a QR code off.
func (s *QRCodeService) DeactivateQRCode(ctx context.Context, shortID string) error {
	const op = "service.QRCodeService.DeactivateQRCode"

	if err := s.repo.Deactivate(ctx, shortID); err != nil {
		return fmt.Errorf("%s: failed to deactivate qr code: %w", op, err)
	}

	return nil
}

// GetQRCodeStats projects a QR code into its dashboard view. Today's scans
// are counted from local midnight in the server's calendar day. The total
// comes from the authoritative counter, not from the bounded history.
func (s *QRCodeService) GetQRCodeStats(ctx context.Context, shortID string) (*models.QRCodeStats, error) {
	const op = "service.QRCodeService.GetQRCodeStats"

	qr, err := s.repo.GetStats(ctx, shortID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get qr code stats: %w", op, err)
	}

	recent := qr.ScanHistory
	if len(recent) > models.MaxRecentScans {
		recent = recent[len(recent)-models.MaxRecentScans:]
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var scansToday int64
	for _, e := range recent {
		if !e.Timestamp.Before(midnight) {
			scansToday++
		}
	}

	return &models.QRCodeStats{
		TotalScans:  qr.Scans,
		ScansToday:  scansToday,
		LastScanned: qr.LastScanned,
		CreatedAt:   qr.CreatedAt,
		Title:       qr.Title,
		OriginalURL: qr.OriginalURL,
		RecentScans: recent,
	}, nil
}
