package presentation

import (
	"bytes"
	"encoding/json"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the rendered image edge in pixels.
const DefaultQRSize = 256

// RenderPNG encodes the payload's JSON form as a QR code image.
func RenderPNG(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	content, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.New(string(content), qrcode.Medium)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
