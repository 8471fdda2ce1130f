package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsight/backend/internal/domain"
)

func TestParseReadEventChannel(t *testing.T) {
	userID, ok := ParseReadEventChannel("read_event:user-1")
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	_, ok = ParseReadEventChannel("read_event:")
	assert.False(t, ok)

	_, ok = ParseReadEventChannel("other_channel:user-1")
	assert.False(t, ok)
}

func TestDecodeReadEvent(t *testing.T) {
	readAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(&domain.ReadLog{
		ID:         "log-1",
		MailID:     "mail-1",
		UserID:     "user-1",
		ReadAt:     readAt,
		IPAddress:  "203.0.113.7",
		DeviceType: domain.DeviceMobile,
		Browser:    domain.BrowserSafari,
		OS:         domain.OSAndroid,
	})
	require.NoError(t, err)

	log, err := DecodeReadEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "mail-1", log.MailID)
	assert.Equal(t, domain.DeviceMobile, log.DeviceType)
	assert.True(t, readAt.Equal(log.ReadAt))

	_, err = DecodeReadEvent([]byte("not json"))
	assert.Error(t, err)
}
