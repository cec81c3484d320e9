package lib

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketQRDataRoundTrip(t *testing.T) {
	txnID, userID := uuid.New(), uuid.New()
	data := TicketQRData("TIX-0123456789AB", txnID, userID, "secret")

	code, err := VerifyTicketQRData(data, "secret")
	require.NoError(t, err)
	assert.Equal(t, "TIX-0123456789AB", code)

	_, err = VerifyTicketQRData(data, "other-secret")
	assert.Error(t, err)

	forged := strings.Replace(data, "TIX-0123456789AB", "TIX-FFFFFFFFFFFF", 1)
	_, err = VerifyTicketQRData(forged, "secret")
	assert.Error(t, err)

	_, err = VerifyTicketQRData("garbage", "secret")
	assert.Error(t, err)
}

func TestWriteQRCode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteQRCode(&buf, "ticket:TIX-0123456789AB"))
	assert.NotZero(t, buf.Len())
	assert.True(t, strings.HasPrefix(http.DetectContentType(buf.Bytes()), "image/"))
}
