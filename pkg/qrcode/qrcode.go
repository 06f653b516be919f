// Package qrcode renders QR images as base64 PNG data URLs suitable for
// embedding directly in API responses and <img> tags.
package qrcode

import (
	"encoding/base64"
	"fmt"

	qrc "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered image size in pixels.
const DefaultSize = 400

// Generator encodes strings into QR images.
type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: DefaultSize}
}

// Encode renders content as a PNG QR code and returns it as a data URL.
func (g *Generator) Encode(content string) (string, error) {
	const op = "qrcode.Generator.Encode"

	png, err := qrc.Encode(content, qrc.Medium, g.size)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode qr code: %w", op, err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
