package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/monitoring"
	"mailsight/backend/internal/storage/memory"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// trackingFixture 组装一套基于内存存储的追踪服务
type trackingFixture struct {
	store    *memory.Store
	mails    *MailService
	tracking *TrackingService
}

func newTrackingFixture(t *testing.T) *trackingFixture {
	t.Helper()
	store := memory.NewStore()
	seedUser(t, store, "user-1", domain.TierFree)

	return &trackingFixture{
		store:    store,
		mails:    NewMailService(store, testConfig()),
		tracking: NewTrackingService(store, zap.NewNop(), monitoring.NewMetrics()),
	}
}

func (f *trackingFixture) createMail(t *testing.T) *domain.MailItem {
	t.Helper()
	mail, err := f.mails.Create(CreateMailInput{UserID: "user-1", Title: "tracked"})
	require.NoError(t, err)
	return mail
}

func TestTrackingService_ProcessHit(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{
		IPAddress: "203.0.113.7",
		UserAgent: testUA,
	})

	// 打开计数与首次打开时间已更新
	fresh, err := f.store.GetMailItem(mail.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.OpenCount)
	assert.Equal(t, domain.MailStatusOpened, fresh.Status)
	assert.NotNil(t, fresh.FirstOpenedAt)

	// 打开记录带有分类结果与原始请求上下文
	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	log := page.Items[0]
	assert.Equal(t, "203.0.113.7", log.IPAddress)
	assert.Equal(t, testUA, log.UserAgent)
	assert.Equal(t, domain.DeviceDesktop, log.DeviceType)
	assert.Equal(t, domain.BrowserChrome, log.Browser)
	assert.Equal(t, domain.OSWindows, log.OS)
	assert.Equal(t, "user-1", log.UserID)
	assert.Nil(t, log.Referer)
}

func TestTrackingService_ProcessHit_UnknownCode(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t)

	// 未知代码不产生任何副作用，也不会 panic
	f.tracking.ProcessHit("000000000000", HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})

	fresh, err := f.store.GetMailItem(mail.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.OpenCount)

	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestTrackingService_ProcessHit_EmptyUserAgent(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "Unknown"})

	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.DeviceDesktop, page.Items[0].DeviceType)
	assert.Equal(t, domain.BrowserUnknown, page.Items[0].Browser)
	assert.Equal(t, domain.OSUnknown, page.Items[0].OS)
}

func TestTrackingService_ProcessHit_Referer(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{
		IPAddress: "203.0.113.7",
		UserAgent: testUA,
		Referer:   "https://mail.example.com/",
	})

	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Referer)
	assert.Equal(t, "https://mail.example.com/", *page.Items[0].Referer)
}

// captureNotifier 记录收到的实时推送
type captureNotifier struct {
	mu     sync.Mutex
	events []*domain.ReadLog
}

func (n *captureNotifier) NotifyReadEvent(userID string, log *domain.ReadLog) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, log)
}

func TestTrackingService_NotifierReceivesEveryHit(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t)

	notifier := &captureNotifier{}
	f.tracking.SetNotifier(notifier)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})
	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.8", UserAgent: testUA})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.events, 2)
	assert.Equal(t, mail.ID, notifier.events[0].MailID)
}

// captureMailer 记录首次打开通知
type captureMailer struct {
	ch chan string
}

func (m *captureMailer) SendFirstOpenNotification(user *domain.User, mail *domain.MailItem, log *domain.ReadLog) error {
	m.ch <- mail.ID
	return nil
}

func TestTrackingService_FirstOpenNotification(t *testing.T) {
	f := newTrackingFixture(t)

	// 打开通知开关
	user, err := f.store.GetUserByID("user-1")
	require.NoError(t, err)
	user.NotifyOnOpen = true
	require.NoError(t, f.store.UpdateUser(user))

	mail := f.createMail(t)
	mailer := &captureMailer{ch: make(chan string, 4)}
	f.tracking.SetMailer(mailer)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})

	select {
	case mailID := <-mailer.ch:
		assert.Equal(t, mail.ID, mailID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected first-open notification")
	}

	// 第二次打开不再发送通知
	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})
	select {
	case <-mailer.ch:
		t.Fatal("notification must fire only on first open")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackingService_NotificationRespectsUserSetting(t *testing.T) {
	f := newTrackingFixture(t)
	mail := f.createMail(t) // NotifyOnOpen 默认为 false

	mailer := &captureMailer{ch: make(chan string, 4)}
	f.tracking.SetMailer(mailer)

	f.tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})

	select {
	case <-mailer.ch:
		t.Fatal("notification must respect the user's notify_on_open setting")
	case <-time.After(100 * time.Millisecond):
	}
}

// failingReadLogStore 打开记录写入永远失败的存储
type failingReadLogStore struct {
	domain.Store
}

func (s *failingReadLogStore) SaveReadLog(log *domain.ReadLog) error {
	return errors.New("disk full")
}

func TestTrackingService_ReadLogFailureDoesNotBlockCount(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user-1", domain.TierFree)
	mails := NewMailService(store, testConfig())
	mail, err := mails.Create(CreateMailInput{UserID: "user-1", Title: "tracked"})
	require.NoError(t, err)

	tracking := NewTrackingService(&failingReadLogStore{Store: store}, zap.NewNop(), monitoring.NewMetrics())

	// 打开记录写入失败不影响打开计数，也不会 panic
	tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})

	fresh, err := store.GetMailItem(mail.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.OpenCount)
	assert.NotNil(t, fresh.FirstOpenedAt)
}

// failingRecordOpenStore 打开计数更新永远失败的存储
type failingRecordOpenStore struct {
	domain.Store
}

func (s *failingRecordOpenStore) RecordOpen(mailID string, openedAt time.Time) (bool, error) {
	return false, errors.New("lock timeout")
}

func TestTrackingService_RecordOpenFailureKeepsReadLog(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user-1", domain.TierFree)
	mails := NewMailService(store, testConfig())
	mail, err := mails.Create(CreateMailInput{UserID: "user-1", Title: "tracked"})
	require.NoError(t, err)

	tracking := NewTrackingService(&failingRecordOpenStore{Store: store}, zap.NewNop(), monitoring.NewMetrics())

	tracking.ProcessHit(mail.Pixel.PixelCode, HitContext{IPAddress: "203.0.113.7", UserAgent: testUA})

	// 计数失败，但打开记录已经写入
	page, err := store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
