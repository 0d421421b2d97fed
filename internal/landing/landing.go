// Package landing builds the public click-to-chat link and its QR code.
package landing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/LeventeLantos/blast-desk/internal/phone"
)

const QRSize = 200

var ErrNoDigits = errors.New("whatsapp number has no digits")

// Link returns https://wa.me/<digits>?text=<keyword>. The keyword is
// percent-encoded with spaces as %20; an empty keyword drops the text
// parameter.
func Link(number, keyword string) (string, error) {
	digits := phone.Digits(number)
	if digits == "" {
		return "", ErrNoDigits
	}
	u := "https://wa.me/" + digits
	if keyword != "" {
		u += "?text=" + strings.ReplaceAll(url.QueryEscape(keyword), "+", "%20")
	}
	return u, nil
}

// QRCode renders link as a size x size PNG with medium error recovery.
func QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = QRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// PNGCache stores rendered QR codes by link.
type PNGCache interface {
	GetPNG(ctx context.Context, key string) ([]byte, bool, error)
	SetPNG(ctx context.Context, key string, png []byte) error
}

type Page struct {
	Number  string `json:"number_e164"`
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
	QRPath  string `json:"qr_path"`
}

// Service serves the landing page data. The link is fixed at construction.
type Service struct {
	page  Page
	cache PNGCache
}

// New validates the configured number. cache may be nil.
func New(number, keyword string, cache PNGCache) (*Service, error) {
	u, err := Link(number, keyword)
	if err != nil {
		return nil, err
	}
	return &Service{
		page: Page{
			Number:  number,
			Keyword: keyword,
			URL:     u,
			QRPath:  "/qr.png",
		},
		cache: cache,
	}, nil
}

func (s *Service) Page() Page {
	return s.page
}

// QR returns the PNG for the landing link. Cache errors are logged and the
// code is rendered anyway.
func (s *Service) QR(ctx context.Context) ([]byte, error) {
	if s.cache != nil {
		png, ok, err := s.cache.GetPNG(ctx, s.page.URL)
		switch {
		case err != nil:
			slog.Warn("qr cache read failed", "error", err)
		case ok:
			return png, nil
		}
	}

	png, err := QRCode(s.page.URL, QRSize)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPNG(ctx, s.page.URL, png); err != nil {
			slog.Warn("qr cache write failed", "error", err)
		}
	}
	return png, nil
}
