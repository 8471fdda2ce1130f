// Package useragent 从原始 User-Agent 字符串推断设备、浏览器与操作系统。
//
// 厂商的 UA 字符串混乱且互相包含，这里不做完整解析，
// 而是采用固定优先级的首次匹配（平板先于手机、Edge 先于 Chrome、
// Safari 需要排除 Chrome），即可正确覆盖实际观测到的字符串。
package useragent

import (
	"strings"

	"mailsight/backend/internal/domain"
)

// Classification 一次 UA 分类的结果三元组
type Classification struct {
	Device  domain.DeviceType
	Browser domain.Browser
	OS      domain.OS
}

// Classify 对原始 User-Agent 做确定性分类。
//
// 纯函数，永不失败：空字符串按字面量 "Unknown" 处理，
// 未命中的模式回退到 desktop/Unknown。匹配全程不区分大小写。
func Classify(userAgent string) Classification {
	if userAgent == "" {
		userAgent = "Unknown"
	}
	ua := strings.ToLower(userAgent)

	return Classification{
		Device:  detectDevice(ua),
		Browser: detectBrowser(ua),
		OS:      detectOS(ua),
	}
}

// detectDevice 设备判定，顺序敏感：平板模式必须先于手机模式，
// 否则带 "android" 的平板会被 "mobile" 误判。
func detectDevice(ua string) domain.DeviceType {
	if containsAny(ua, "tablet", "ipad", "playbook", "silk") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobi")) {
		return domain.DeviceTablet
	}
	if containsAny(ua, "mobile", "iphone", "ipod", "blackberry", "opera mini", "iemobile", "wpdesktop") {
		return domain.DeviceMobile
	}
	return domain.DeviceDesktop
}

// detectBrowser 浏览器判定。Edge/Opera 的 UA 同时携带 chrome/ 标记，
// Chrome 的 UA 同时携带 safari/ 标记，因此顺序与排除条件不可调换。
func detectBrowser(ua string) domain.Browser {
	switch {
	case strings.Contains(ua, "edg/"):
		return domain.BrowserEdge
	case strings.Contains(ua, "chrome/"):
		return domain.BrowserChrome
	case strings.Contains(ua, "firefox/"):
		return domain.BrowserFirefox
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "chrome"):
		return domain.BrowserSafari
	case strings.Contains(ua, "opera/") || strings.Contains(ua, "opr/"):
		return domain.BrowserOpera
	default:
		return domain.BrowserUnknown
	}
}

// detectOS 操作系统判定。安卓 UA 一律携带 "Linux;"，
// 因此 android 必须先于 linux 检查。
func detectOS(ua string) domain.OS {
	switch {
	case strings.Contains(ua, "windows"):
		return domain.OSWindows
	case strings.Contains(ua, "mac os"):
		return domain.OSMacOS
	case strings.Contains(ua, "android"):
		return domain.OSAndroid
	case strings.Contains(ua, "linux"):
		return domain.OSLinux
	case containsAny(ua, "ios", "iphone", "ipad"):
		return domain.OSIOS
	default:
		return domain.OSUnknown
	}
}

// containsAny 判断 s 是否包含任一子串
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
