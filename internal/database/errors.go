package database

import "errors"

var (
	// ErrShortIDExists is returned when an attempt is made to create
	// a new QR code with a short ID that already exists.
	ErrShortIDExists = errors.New("short id exists")
	// ErrQRCodeNotFound is returned when no QR code matches the given
	// short ID. The redirect path also maps inactive codes to this error.
	ErrQRCodeNotFound = errors.New("qr code not found")
)
