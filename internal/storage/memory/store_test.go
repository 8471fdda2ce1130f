package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

func newMail(id, userID string) *domain.MailItem {
	now := time.Now()
	return &domain.MailItem{
		ID:        id,
		UserID:    userID,
		Title:     "给客户的报价单",
		Status:    domain.MailStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_SaveAndGetMailItem(t *testing.T) {
	store := NewStore()

	mail := newMail("mail-1", "user-1")
	require.NoError(t, store.SaveMailItem(mail))

	got, err := store.GetMailItem("mail-1")
	require.NoError(t, err)
	assert.Equal(t, "给客户的报价单", got.Title)
	assert.Equal(t, domain.MailStatusPending, got.Status)

	_, err = store.GetMailItem("missing")
	assert.ErrorIs(t, err, storage.ErrMailNotFound)
}

func TestStore_PixelLookup(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))

	pixel := &domain.TrackingPixel{
		ID:        "pixel-1",
		MailID:    "mail-1",
		PixelCode: "a1b2c3d4e5f6",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SavePixel(pixel))

	byCode, err := store.GetPixelByCode("a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, "mail-1", byCode.MailID)

	byMail, err := store.GetPixelByMailID("mail-1")
	require.NoError(t, err)
	assert.Equal(t, "pixel-1", byMail.ID)

	_, err = store.GetPixelByCode("000000000000")
	assert.ErrorIs(t, err, storage.ErrPixelNotFound)

	// 同一代码不能被第二个像素占用
	dup := &domain.TrackingPixel{ID: "pixel-2", MailID: "mail-2", PixelCode: "a1b2c3d4e5f6"}
	assert.ErrorIs(t, store.SavePixel(dup), storage.ErrPixelCodeConflict)
}

func TestStore_UpdateMailItem_PreservesCounters(t *testing.T) {
	store := NewStore()
	mail := &domain.MailItem{
		ID:     "mail-1",
		UserID: "user-1",
		Title:  "before",
		Status: domain.MailStatusPending,
	}
	require.NoError(t, store.SaveMailItem(mail))

	_, err := store.RecordOpen("mail-1", time.Now().UTC())
	require.NoError(t, err)

	mail.Title = "after"
	mail.Notes = "updated"
	require.NoError(t, store.UpdateMailItem(mail))

	fresh, err := store.GetMailItem("mail-1")
	require.NoError(t, err)
	assert.Equal(t, "after", fresh.Title)
	assert.Equal(t, "updated", fresh.Notes)
	// 元数据更新不影响打开统计
	assert.Equal(t, 1, fresh.OpenCount)
	assert.Equal(t, domain.MailStatusOpened, fresh.Status)
	assert.NotNil(t, fresh.FirstOpenedAt)

	assert.ErrorIs(t,
		store.UpdateMailItem(&domain.MailItem{ID: "missing"}),
		storage.ErrMailNotFound)
}

func TestStore_RecordOpen_FirstOpenWins(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))

	openedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.RecordOpen("mail-1", openedAt)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.RecordOpen("mail-1", openedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second)

	mail, err := store.GetMailItem("mail-1")
	require.NoError(t, err)
	assert.Equal(t, 2, mail.OpenCount)
	assert.Equal(t, domain.MailStatusOpened, mail.Status)
	// 首次打开时间不会被后续打开覆盖
	require.NotNil(t, mail.FirstOpenedAt)
	assert.Equal(t, openedAt, *mail.FirstOpenedAt)
}

func TestStore_RecordOpen_Concurrent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))

	const goroutines = 50
	firstCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := store.RecordOpen("mail-1", time.Now())
			require.NoError(t, err)
			if first {
				mu.Lock()
				firstCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 并发打开时恰有一次被判定为首次
	assert.Equal(t, 1, firstCount)

	mail, err := store.GetMailItem("mail-1")
	require.NoError(t, err)
	assert.Equal(t, goroutines, mail.OpenCount)
}

func TestStore_RecordOpen_MissingMail(t *testing.T) {
	store := NewStore()
	_, err := store.RecordOpen("missing", time.Now())
	assert.ErrorIs(t, err, storage.ErrMailNotFound)
}

func TestStore_ReadLogsPagination(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, store.SaveReadLog(&domain.ReadLog{
			ID:        fmt.Sprintf("log-%d", i),
			PixelID:   "pixel-1",
			MailID:    "mail-1",
			UserID:    "user-1",
			ReadAt:    base.Add(time.Duration(i) * time.Minute),
			IPAddress: fmt.Sprintf("10.0.0.%d", i%3),
		}))
	}

	page, err := store.ListReadLogs(domain.ReadLogQuery{MailID: "mail-1", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Items, 10)
	// 最新的记录排在最前
	assert.Equal(t, "log-24", page.Items[0].ID)

	last, err := store.ListReadLogs(domain.ReadLogQuery{MailID: "mail-1", Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)
}

func TestStore_GetMailStats(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.SaveReadLog(&domain.ReadLog{
			ID:        fmt.Sprintf("log-%d", i),
			MailID:    "mail-1",
			ReadAt:    base.Add(time.Duration(i) * time.Hour),
			IPAddress: fmt.Sprintf("10.0.0.%d", i%2), // 两个去重 IP
		}))
	}

	stats, err := store.GetMailStats("mail-1")
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalReads)
	assert.Equal(t, 2, stats.UniqueReaders)
	require.NotNil(t, stats.LastReadAt)
	assert.Equal(t, base.Add(5*time.Hour), *stats.LastReadAt)
}

func TestStore_GetDashboardStats(t *testing.T) {
	store := NewStore()

	opened := newMail("mail-1", "user-1")
	require.NoError(t, store.SaveMailItem(opened))
	_, err := store.RecordOpen("mail-1", time.Now())
	require.NoError(t, err)
	_, err = store.RecordOpen("mail-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, store.SaveMailItem(newMail("mail-2", "user-1")))
	require.NoError(t, store.SaveMailItem(newMail("mail-3", "other-user")))

	stats, err := store.GetDashboardStats("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMails)
	assert.Equal(t, 1, stats.OpenedMails)
	assert.Equal(t, 1, stats.PendingMails)
	assert.Equal(t, 2, stats.TotalOpens)
}

func TestStore_UserCRUD(t *testing.T) {
	store := NewStore()

	user := &domain.User{
		ID:        "user-1",
		Email:     "alice@example.com",
		Username:  "alice",
		Role:      domain.RoleUser,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateUser(user))

	// 邮箱唯一
	err := store.CreateUser(&domain.User{ID: "user-2", Email: "Alice@Example.com"})
	assert.ErrorIs(t, err, storage.ErrEmailExists)

	got, err := store.GetUserByEmail("ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	byName, err := store.GetUserByUsername("Alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byName.ID)

	require.NoError(t, store.UpdateLastLogin("user-1"))
	got, err = store.GetUserByID("user-1")
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

func TestStore_DeleteUser_Cascades(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.CreateUser(&domain.User{ID: "user-1", Email: "alice@example.com"}))
	require.NoError(t, store.SaveMailItem(newMail("mail-1", "user-1")))
	require.NoError(t, store.SavePixel(&domain.TrackingPixel{ID: "pixel-1", MailID: "mail-1", PixelCode: "a1b2c3d4e5f6"}))
	require.NoError(t, store.SaveReadLog(&domain.ReadLog{ID: "log-1", MailID: "mail-1", UserID: "user-1", ReadAt: time.Now()}))

	require.NoError(t, store.DeleteUser("user-1"))

	_, err := store.GetMailItem("mail-1")
	assert.ErrorIs(t, err, storage.ErrMailNotFound)
	_, err = store.GetPixelByCode("a1b2c3d4e5f6")
	assert.ErrorIs(t, err, storage.ErrPixelNotFound)
	// 邮箱可以重新注册
	assert.NoError(t, store.CreateUser(&domain.User{ID: "user-2", Email: "alice@example.com"}))
}

func TestStore_WebhookDeliveries(t *testing.T) {
	store := NewStore()

	webhook := &domain.Webhook{
		ID:     "wh-1",
		UserID: "user-1",
		URL:    "https://example.com/hook",
		Events: []string{string(domain.WebhookEventMailOpened)},
	}
	require.NoError(t, store.CreateWebhook(webhook))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.RecordDelivery(&domain.WebhookDelivery{
		ID:        "d-1",
		WebhookID: "wh-1",
		Event:     domain.WebhookEventMailOpened,
		Success:   false,
		Error:     "connection refused",
		NextRetry: &past,
	}))

	pending, err := store.GetPendingDeliveries(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d-1", pending[0].ID)

	// 取出后队列清空
	pending, err = store.GetPendingDeliveries(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := store.GetWebhook("wh-1")
	require.NoError(t, err)
	assert.Equal(t, "connection refused", got.LastError)
}
