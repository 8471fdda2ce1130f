package cached

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
	"mailsight/backend/internal/storage/memory"
)

// countingStore 统计像素点查询次数，验证缓存命中
type countingStore struct {
	*memory.Store
	pixelLookups int
}

func (s *countingStore) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	s.pixelLookups++
	return s.Store.GetPixelByCode(code)
}

func seedPixel(t *testing.T, store domain.Store, mailID, code string) *domain.TrackingPixel {
	t.Helper()
	require.NoError(t, store.SaveMailItem(&domain.MailItem{
		ID:     mailID,
		UserID: "user-1",
		Title:  "tracked",
		Status: domain.MailStatusPending,
	}))
	pixel := &domain.TrackingPixel{
		ID:        "pixel-" + mailID,
		MailID:    mailID,
		PixelCode: code,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SavePixel(pixel))
	return pixel
}

func TestStore_GetPixelByCode_CachesLookups(t *testing.T) {
	inner := &countingStore{Store: memory.NewStore()}
	store := NewStore(inner, time.Minute)
	defer store.Close()

	// 直接写底层，绕过 SavePixel 的缓存预热
	seedPixel(t, inner.Store, "mail-1", "abc123def456")

	for i := 0; i < 5; i++ {
		pixel, err := store.GetPixelByCode("abc123def456")
		require.NoError(t, err)
		assert.Equal(t, "mail-1", pixel.MailID)
	}

	// 首次回源，其余走缓存
	assert.Equal(t, 1, inner.pixelLookups)
}

func TestStore_SavePixel_WarmsCache(t *testing.T) {
	inner := &countingStore{Store: memory.NewStore()}
	store := NewStore(inner, time.Minute)
	defer store.Close()

	seedPixel(t, store, "mail-1", "abc123def456")

	_, err := store.GetPixelByCode("abc123def456")
	require.NoError(t, err)
	assert.Equal(t, 0, inner.pixelLookups)
}

func TestStore_DeleteMailItem_InvalidatesPixel(t *testing.T) {
	store := NewStore(memory.NewStore(), time.Minute)
	defer store.Close()

	seedPixel(t, store, "mail-1", "abc123def456")

	_, err := store.GetPixelByCode("abc123def456")
	require.NoError(t, err)

	require.NoError(t, store.DeleteMailItem("mail-1"))

	// 删除后不能再从缓存读到已失效的像素
	_, err = store.GetPixelByCode("abc123def456")
	assert.ErrorIs(t, err, storage.ErrPixelNotFound)
}

func TestStore_DeleteUser_InvalidatesPixels(t *testing.T) {
	mem := memory.NewStore()
	store := NewStore(mem, time.Minute)
	defer store.Close()

	require.NoError(t, mem.CreateUser(&domain.User{
		ID:       "user-1",
		Email:    "user-1@example.com",
		IsActive: true,
	}))
	seedPixel(t, store, "mail-1", "abc123def456")

	_, err := store.GetPixelByCode("abc123def456")
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser("user-1"))

	_, err = store.GetPixelByCode("abc123def456")
	assert.ErrorIs(t, err, storage.ErrPixelNotFound)
}
