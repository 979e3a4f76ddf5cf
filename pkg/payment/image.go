package payment

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultImageSize is the PNG edge length in pixels.
const DefaultImageSize = 320

// RenderPNG draws qr as a PNG image.
func RenderPNG(qr string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	return qrcode.Encode(qr, qrcode.Medium, size)
}

// PNGDataURI wraps png bytes as a data URI suitable for an <img src>.
func PNGDataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
