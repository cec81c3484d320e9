package lib

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode"
)

const QRContentType = "image/jpeg"

func ticketSignature(code string, transactionID, userID uuid.UUID, secret string) string {
	data := fmt.Sprintf("%s:%s:%s", code, transactionID, userID)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// TicketQRData is the text encoded in a ticket's QR image. Door staff verify
// it with VerifyTicketQRData.
func TicketQRData(code string, transactionID, userID uuid.UUID, secret string) string {
	return fmt.Sprintf("ticket:%s;transaction:%s;user:%s;signature:%s",
		code, transactionID, userID, ticketSignature(code, transactionID, userID, secret))
}

func VerifyTicketQRData(data string, secret string) (string, error) {
	parts := strings.Split(data, ";")
	if len(parts) != 4 {
		return "", fmt.Errorf("invalid QR data format")
	}
	prefixes := []string{"ticket:", "transaction:", "user:", "signature:"}
	values := make([]string, len(parts))
	for i, part := range parts {
		if !strings.HasPrefix(part, prefixes[i]) {
			return "", fmt.Errorf("invalid QR data format")
		}
		values[i] = strings.TrimPrefix(part, prefixes[i])
	}
	transactionID, err := uuid.Parse(values[1])
	if err != nil {
		return "", fmt.Errorf("invalid QR data format")
	}
	userID, err := uuid.Parse(values[2])
	if err != nil {
		return "", fmt.Errorf("invalid QR data format")
	}
	expected := ticketSignature(values[0], transactionID, userID, secret)
	if !hmac.Equal([]byte(expected), []byte(values[3])) {
		return "", fmt.Errorf("invalid QR signature")
	}
	return values[0], nil
}

func WriteQRCode(w io.Writer, data string) error {
	qrc, err := qrcode.New(data)
	if err != nil {
		return err
	}
	return qrc.SaveTo(w)
}
