package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 像素指标
	PixelHitsTotal    prometheus.Counter   // 像素抓取总数（含未命中）
	PixelMissesTotal  prometheus.Counter   // 未解析到像素的抓取
	ReadLogsWritten   prometheus.Counter   // 成功写入的打开记录
	FirstOpensTotal   prometheus.Counter   // 首次打开事件
	PixelHitsByDevice *prometheus.CounterVec

	// 业务指标
	MailsCreated    prometheus.Counter
	MailsDeleted    prometheus.Counter
	UsersRegistered prometheus.Counter

	// 错误指标
	ErrorsTotal         *prometheus.CounterVec
	StorageFailures     *prometheus.CounterVec // 热路径存储失败（按操作）
	PanicsTotal         prometheus.Counter
	WebhookDeliveries   *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec

	// WebSocket 指标
	WebsocketClients prometheus.Gauge
}

// NewMetrics 创建监控指标。
// 每个实例持有独立的注册表，进程内可安全创建多份（测试需要）。
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailsight_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		PixelHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_pixel_hits_total",
				Help: "Total number of pixel fetches, including unresolved codes",
			},
		),

		PixelMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_pixel_misses_total",
				Help: "Pixel fetches whose code did not resolve to a tracked mail",
			},
		),

		ReadLogsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_read_logs_written_total",
				Help: "Read log records successfully persisted",
			},
		),

		FirstOpensTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_first_opens_total",
				Help: "Mails transitioning from pending to opened",
			},
		),

		PixelHitsByDevice: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_pixel_hits_by_device_total",
				Help: "Resolved pixel fetches by classified device type",
			},
			[]string{"device"},
		),

		MailsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_mails_created_total",
				Help: "Total number of tracked mails created",
			},
		),

		MailsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_mails_deleted_total",
				Help: "Total number of tracked mails deleted",
			},
		),

		UsersRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"error_type", "component"},
		),

		StorageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_storage_failures_total",
				Help: "Storage operations that failed on the pixel hot path",
			},
			[]string{"operation"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_webhook_deliveries_total",
				Help: "Webhook delivery attempts by result",
			},
			[]string{"result"},
		),

		NotificationsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_notifications_sent_total",
				Help: "First-open notification emails sent",
			},
		),

		NotificationsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsight_notifications_failed_total",
				Help: "First-open notification emails that failed to send",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsight_rate_limit_blocks_total",
				Help: "Requests rejected by rate limiting",
			},
			[]string{"route"},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailsight_websocket_clients",
				Help: "Currently connected WebSocket clients",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPixelHit 记录一次像素抓取
func (m *Metrics) RecordPixelHit() {
	m.PixelHitsTotal.Inc()
}

// RecordPixelMiss 记录一次未命中的像素抓取
func (m *Metrics) RecordPixelMiss() {
	m.PixelMissesTotal.Inc()
}

// RecordReadLog 记录一次成功落库的打开记录
func (m *Metrics) RecordReadLog(device string) {
	m.ReadLogsWritten.Inc()
	m.PixelHitsByDevice.WithLabelValues(device).Inc()
}

// RecordFirstOpen 记录一次首次打开
func (m *Metrics) RecordFirstOpen() {
	m.FirstOpensTotal.Inc()
}

// RecordStorageFailure 记录热路径上的存储失败
func (m *Metrics) RecordStorageFailure(operation string) {
	m.StorageFailures.WithLabelValues(operation).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordWebhookDelivery 记录 Webhook 投递结果
func (m *Metrics) RecordWebhookDelivery(success bool) {
	if success {
		m.WebhookDeliveries.WithLabelValues("success").Inc()
	} else {
		m.WebhookDeliveries.WithLabelValues("failure").Inc()
	}
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(route string) {
	m.RateLimitBlocks.WithLabelValues(route).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
