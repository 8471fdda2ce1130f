package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mailsight/backend/internal/middleware"
	"mailsight/backend/internal/service"
)

// pixelGIF 固定的 1x1 透明 GIF 图片（43 字节）。
// 所有像素请求都返回这份相同的载荷。
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, // 1x1, 2 色
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, // 调色板：黑 / 白
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, // 透明扩展
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, // 图像描述
	0x02, 0x02, 0x44, 0x01, 0x00, // 图像数据
	0x3b, // 结束符
}

// TrackingHandler 像素回调处理器
type TrackingHandler struct {
	tracking *service.TrackingService
}

// NewTrackingHandler 创建像素回调处理器
func NewTrackingHandler(tracking *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// ServePixel 处理像素回调：记录打开事件并返回透明 GIF。
// 无论内部处理成功与否，始终返回 200 与同一张图片。
func (h *TrackingHandler) ServePixel(c *gin.Context) {
	code := stripImageExtension(c.Param("code"))

	// 超限时降级：跳过记录，图片照常返回
	if !c.GetBool(middleware.ContextKeyRateLimited) {
		h.tracking.ProcessHit(code, service.HitContext{
			IPAddress: realIP(c),
			UserAgent: c.GetHeader("User-Agent"),
			Referer:   c.GetHeader("Referer"),
		})
	}

	// 禁用一切缓存，否则邮件客户端/代理会吞掉重复打开
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

// stripImageExtension 去掉像素码后缀的图片扩展名（如 .gif / .png）。
func stripImageExtension(code string) string {
	if idx := strings.LastIndex(code, "."); idx >= 0 {
		return code[:idx]
	}
	return code
}

// realIP 提取客户端 IP：优先 X-Forwarded-For 的第一项，
// 其次 X-Real-IP，两者都没有时返回 "Unknown"。
func realIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			first = forwarded[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return "Unknown"
}
