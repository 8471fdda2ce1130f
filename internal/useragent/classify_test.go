package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsight/backend/internal/domain"
)

func TestClassify_Device(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want domain.DeviceType
	}{
		{
			name: "安卓手机（带 Mobile 标记）优先判定为手机",
			ua:   "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Mobile Safari/537.36",
			want: domain.DeviceMobile,
		},
		{
			name: "安卓平板（无 mobi 标记）判定为平板",
			ua:   "Mozilla/5.0 (Linux; Android 11; SM-T870) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Safari/537.36",
			want: domain.DeviceTablet,
		},
		{
			name: "iPad 判定为平板",
			ua:   "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1 Mobile/15E148 Safari/604.1",
			want: domain.DeviceTablet,
		},
		{
			name: "iPhone 判定为手机",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1 Mobile/15E148 Safari/604.1",
			want: domain.DeviceMobile,
		},
		{
			name: "桌面 Chrome 判定为桌面",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			want: domain.DeviceDesktop,
		},
		{
			name: "空字符串回退为桌面",
			ua:   "",
			want: domain.DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ua).Device)
		})
	}
}

func TestClassify_Browser(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want domain.Browser
	}{
		{
			name: "Edge 的 UA 同时携带 chrome/，必须判定为 Edge",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 Edg/91.0.864.59",
			want: domain.BrowserEdge,
		},
		{
			name: "Chrome 的 UA 同时携带 safari/，必须判定为 Chrome",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			want: domain.BrowserChrome,
		},
		{
			name: "纯 Safari（无 chrome 子串）判定为 Safari",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1 Safari/605.1.15",
			want: domain.BrowserSafari,
		},
		{
			name: "安卓自带 Mobile Safari（无 chrome/）判定为 Safari",
			ua:   "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Mobile Safari/537.36",
			want: domain.BrowserSafari,
		},
		{
			name: "Firefox",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0",
			want: domain.BrowserFirefox,
		},
		{
			name: "现代 Opera 使用 OPR/ 标记",
			ua:   "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Safari/537.36 OPR/77.0.4054.90",
			want: domain.BrowserOpera,
		},
		{
			name: "无法识别时回退为 Unknown",
			ua:   "curl/7.79.1",
			want: domain.BrowserUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ua).Browser)
		})
	}
}

func TestClassify_OS(t *testing.T) {
	tests := []struct {
		ua   string
		want domain.OS
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/91.0", domain.OSWindows},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15", domain.OSMacOS},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:89.0) Firefox/89.0", domain.OSLinux},
		{"Mozilla/5.0 (Linux; Android 10; SM-G975F) Mobile Safari/537.36", domain.OSAndroid},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) Mobile/15E148", domain.OSIOS},
		{"curl/7.79.1", domain.OSUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.ua).OS, "ua=%s", tt.ua)
	}
}

// TestClassify_Deterministic 同一输入必须始终产生同一输出
func TestClassify_Deterministic(t *testing.T) {
	ua := "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Mobile Safari/537.36"
	first := Classify(ua)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(ua))
	}
}

// TestClassify_AndroidPrecedence Android+Mobile（无 chrome/）应得到
// mobile/Safari/Android 的组合
func TestClassify_AndroidPrecedence(t *testing.T) {
	ua := "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Mobile Safari/537.36"
	got := Classify(ua)
	assert.Equal(t, domain.DeviceMobile, got.Device)
	assert.Equal(t, domain.BrowserSafari, got.Browser)
	assert.Equal(t, domain.OSAndroid, got.OS)
}
