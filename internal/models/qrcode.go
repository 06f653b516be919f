package models

import "time"

// MaxRecentScans is the number of scan events returned by read paths.
// The stored history may be larger; reads only ever project the tail.
const MaxRecentScans = 50

// QRCode represents a dynamic QR code bound to a mutable destination URL.
type QRCode struct {
	// ID is the unique identifier of the record in the store.
	ID string
	// ShortID is the 8-character public identifier used in redirect URLs.
	ShortID string
	// OriginalURL is the destination the redirect resolves to.
	OriginalURL string
	// RedirectURL is the public URL encoded in the QR image. It is derived
	// from the short ID and the deployment base URL and never changes.
	RedirectURL string
	// Title is an optional human-readable label for the QR code.
	Title string
	// Description is optional free text attached to the QR code.
	Description string
	// Image is the rendered QR image as a base64 PNG data URL. It encodes
	// RedirectURL, so destination changes never require regeneration.
	Image string
	// Scans is the number of successful resolutions. It is authoritative
	// and independent of the bounded scan history.
	Scans int64
	// ScanHistory holds the recorded scan events in insertion order.
	ScanHistory []ScanEvent
	// LastScanned is the time of the most recent successful resolution.
	// It is nil until the first scan.
	LastScanned *time.Time
	// CreatedAt is the timestamp when the QR code was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp of the last destination or metadata change.
	UpdatedAt time.Time
	// IsActive indicates whether the QR code resolves. Inactive codes
	// behave exactly like unknown short IDs on the redirect path.
	IsActive bool
}

// ScanEvent is one recorded resolution of a short ID.
type ScanEvent struct {
	Timestamp time.Time
	UserAgent string
	IP        string
	Country   string
}

// QRCodeStats is the aggregated read-only projection of a QR code
// served to dashboards.
type QRCodeStats struct {
	TotalScans  int64
	ScansToday  int64
	LastScanned *time.Time
	CreatedAt   time.Time
	Title       string
	OriginalURL string
	RecentScans []ScanEvent
}
