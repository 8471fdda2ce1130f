package httptransport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailsight/backend/internal/config"
	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/middleware"
	"mailsight/backend/internal/monitoring"
	"mailsight/backend/internal/service"
	"mailsight/backend/internal/storage/memory"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// pixelFixture 组装一套仅含像素路由的测试环境
type pixelFixture struct {
	store  *memory.Store
	mails  *service.MailService
	router *gin.Engine
}

func newPixelFixture(t *testing.T, store domain.Store) *pixelFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := memory.NewStore()
	if store == nil {
		store = mem
	}

	require.NoError(t, mem.CreateUser(&domain.User{
		ID:        "user-1",
		Email:     "user-1@example.com",
		Tier:      domain.TierFree,
		Role:      domain.RoleUser,
		IsActive:  true,
		CreatedAt: time.Now(),
	}))

	cfg := &config.Config{
		Tracking: config.TrackingConfig{
			BaseURL:    "https://track.example.com",
			CodeLength: 12,
		},
	}

	tracking := service.NewTrackingService(store, zap.NewNop(), monitoring.NewMetrics())
	handler := NewTrackingHandler(tracking)

	router := gin.New()
	router.GET("/api/pixel/:code", handler.ServePixel)
	router.GET("/pixel/:code", handler.ServePixel)

	return &pixelFixture{
		store:  mem,
		mails:  service.NewMailService(mem, cfg),
		router: router,
	}
}

func (f *pixelFixture) createMail(t *testing.T) *domain.MailItem {
	t.Helper()
	mail, err := f.mails.Create(service.CreateMailInput{UserID: "user-1", Title: "tracked"})
	require.NoError(t, err)
	return mail
}

func (f *pixelFixture) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestServePixel_ReturnsGIF(t *testing.T) {
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	w := f.get("/api/pixel/"+mail.Pixel.PixelCode+".gif", map[string]string{
		"User-Agent": testUA,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, w.Body.Bytes())

	// 禁止缓存的响应头
	assert.Equal(t, "no-store, no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
}

func TestServePixel_RecordsReadLog(t *testing.T) {
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	f.get("/pixel/"+mail.Pixel.PixelCode+".png", map[string]string{
		"User-Agent": testUA,
	})

	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.BrowserChrome, page.Items[0].Browser)
	assert.Equal(t, domain.OSWindows, page.Items[0].OS)

	fresh, err := f.store.GetMailItem(mail.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.OpenCount)
	assert.Equal(t, domain.MailStatusOpened, fresh.Status)
}

func TestServePixel_UnknownCodeStill200(t *testing.T) {
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	w := f.get("/api/pixel/nosuchcode.gif", map[string]string{"User-Agent": testUA})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pixelGIF, w.Body.Bytes())

	// 未命中不产生打开记录
	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

// brokenStore 所有查询和写入都失败的存储
type brokenStore struct {
	domain.Store
}

func (s *brokenStore) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	return nil, errors.New("connection refused")
}

func (s *brokenStore) SaveReadLog(log *domain.ReadLog) error {
	return errors.New("connection refused")
}

func TestServePixel_StorageFailureStill200(t *testing.T) {
	f := newPixelFixture(t, &brokenStore{Store: memory.NewStore()})

	w := f.get("/api/pixel/anycode.gif", map[string]string{"User-Agent": testUA})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, w.Body.Bytes())
}

func TestServePixel_ExtensionStripping(t *testing.T) {
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	// 带 .gif、.png 和不带扩展名都能命中同一个像素
	for _, path := range []string{
		"/api/pixel/" + mail.Pixel.PixelCode + ".gif",
		"/api/pixel/" + mail.Pixel.PixelCode + ".png",
		"/api/pixel/" + mail.Pixel.PixelCode,
	} {
		w := f.get(path, map[string]string{"User-Agent": testUA})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestServePixel_IPExtraction(t *testing.T) {
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	cases := []struct {
		name    string
		headers map[string]string
		wantIP  string
	}{
		{
			name:    "forwarded chain takes first entry",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2"},
			wantIP:  "203.0.113.7",
		},
		{
			name:    "forwarded entry is trimmed",
			headers: map[string]string{"X-Forwarded-For": "  203.0.113.8  "},
			wantIP:  "203.0.113.8",
		},
		{
			name:    "real ip fallback",
			headers: map[string]string{"X-Real-IP": "198.51.100.3"},
			wantIP:  "198.51.100.3",
		},
		{
			name:    "no header falls back to Unknown",
			headers: map[string]string{},
			wantIP:  "Unknown",
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{"User-Agent": testUA}
			for k, v := range tc.headers {
				headers[k] = v
			}
			f.get("/api/pixel/"+mail.Pixel.PixelCode+".gif", headers)

			page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
			require.NoError(t, err)
			require.Len(t, page.Items, i+1)
			// 最新记录排在最前
			assert.Equal(t, tc.wantIP, page.Items[0].IPAddress)
		})
	}
}

func TestServePixel_RateLimitedStill200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newPixelFixture(t, nil)
	mail := f.createMail(t)

	// 令牌桶只放 2 个请求，之后全部超限
	limiter := middleware.NewRateLimiter(0, 2, nil)
	tracking := service.NewTrackingService(f.store, zap.NewNop(), monitoring.NewMetrics())
	handler := NewTrackingHandler(tracking)

	router := gin.New()
	router.GET("/api/pixel/:code", limiter.SoftLimit("pixel"), handler.ServePixel)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/pixel/"+mail.Pixel.PixelCode+".gif", nil)
		req.Header.Set("User-Agent", testUA)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// 超限与否都必须是同一份 200 图片响应
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
		assert.Equal(t, pixelGIF, w.Body.Bytes())
	}

	// 超限的请求被降级：不再写打开记录
	page, err := f.store.ListReadLogs(domain.ReadLogQuery{MailID: mail.ID})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestStripImageExtension(t *testing.T) {
	assert.Equal(t, "abc123", stripImageExtension("abc123.gif"))
	assert.Equal(t, "abc123", stripImageExtension("abc123.png"))
	assert.Equal(t, "abc123", stripImageExtension("abc123"))
}
