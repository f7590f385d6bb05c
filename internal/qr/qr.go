// Package qr renders the QR codes handed out at registration.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ErrEncoding is returned when content cannot be encoded as a QR code.
var ErrEncoding = errors.New("qr encoding error")

const dataURLPrefix = "data:image/png;base64,"

// Issuer encodes student page URLs as PNG QR codes.
type Issuer struct {
	size  int
	level qrcode.RecoveryLevel
}

// New creates an Issuer producing size x size images at medium recovery.
func New(size int) *Issuer {
	if size <= 0 {
		size = 256
	}
	return &Issuer{size: size, level: qrcode.Medium}
}

// StudentURL is the page a student's QR code resolves to.
func StudentURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/student/" + url.PathEscape(id)
}

// Issue returns a data URL holding the QR code for the student's page.
func (i *Issuer) Issue(baseURL, id string) (string, error) {
	png, err := i.PNG(StudentURL(baseURL, id))
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// PNG encodes content as a PNG QR code.
func (i *Issuer) PNG(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, i.level, i.size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return png, nil
}
