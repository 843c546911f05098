package gateway

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// pairingImage renders a pairing code as a PNG data URL, the format the
// original web clients expect in an <img> src.
func pairingImage(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
