package qr

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

	"ms-reservation/internal/models"

	"github.com/skip2/go-qrcode"
)

// Payload is what a scanned order confirmation decodes to.
type Payload struct {
	OrderID    int64              `json:"order_id"`
	EventID    int64              `json:"event_id"`
	UserID     int64              `json:"user_id"`
	SeatIDs    []int64            `json:"seat_ids"`
	TotalPrice int64              `json:"total_price"`
	Status     models.OrderStatus `json:"status"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

func PayloadFor(order models.OrderWithLines) Payload {
	seatIDs := make([]int64, 0, len(order.Lines))
	for _, line := range order.Lines {
		seatIDs = append(seatIDs, line.SeatID)
	}
	return Payload{
		OrderID:    order.ID,
		EventID:    order.EventID,
		UserID:     order.UserID,
		SeatIDs:    seatIDs,
		TotalPrice: order.TotalPrice,
		Status:     order.Status,
	}
}

// Token encrypts the order payload into the string carried by the QR code.
func (q *QRGenerator) Token(order models.OrderWithLines) (string, error) {
	data, err := json.Marshal(PayloadFor(order))
	if err != nil {
		return "", err
	}
	return seal(data, q.secret)
}

// GenerateOrderQR renders the encrypted order payload as a PNG.
func (q *QRGenerator) GenerateOrderQR(order models.OrderWithLines, size int) ([]byte, error) {
	token, err := q.Token(order)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

// Decode reverses Token. Gate scanners use it to check a confirmation.
func (q *QRGenerator) Decode(token string) (*Payload, error) {
	data, err := open(token, q.secret)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	return &p, nil
}

func seal(data, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func open(token string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode qr token: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("qr token too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
