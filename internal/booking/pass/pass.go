package pass

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"quarterdeck-booking/internal/models"
)

var (
	ErrNotConfirmed = errors.New("passes are issued for confirmed bookings only")
	ErrInvalidPass  = errors.New("pass is invalid or was issued under another key")
)

// Claims is what a scanned pass proves: one resource unit for one window.
type Claims struct {
	BookingID  string    `json:"bid"`
	FacilityID string    `json:"fid"`
	ResourceID int       `json:"rid"`
	Date       string    `json:"d"`
	StartTime  string    `json:"s"`
	EndTime    string    `json:"e"`
	IssuedAt   time.Time `json:"iat"`
}

type Generator struct {
	aead cipher.AEAD
	now  func() time.Time
}

func NewGenerator(secret string) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("pass secret is empty")
	}
	key := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead, now: time.Now}, nil
}

// Seal encrypts the booking's claims into a URL-safe token.
func (g *Generator) Seal(b models.Booking) (string, error) {
	if b.Status != models.BookingConfirmed {
		return "", ErrNotConfirmed
	}

	data, err := json.Marshal(Claims{
		BookingID:  b.ID,
		FacilityID: b.FacilityID,
		ResourceID: b.ResourceID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		IssuedAt:   g.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// QR renders the sealed token as a PNG.
func (g *Generator) QR(b models.Booking, size int) ([]byte, error) {
	token, err := g.Seal(b)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

// Open authenticates and decrypts a scanned token.
func (g *Generator) Open(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPass
	}
	n := g.aead.NonceSize()
	if len(raw) < n+g.aead.Overhead() {
		return nil, ErrInvalidPass
	}

	data, err := g.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrInvalidPass
	}

	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return &c, nil
}
