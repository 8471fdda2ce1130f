package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailsight/backend/internal/domain"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  domain.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store domain.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储连通性检查（SQL / Redis 混合存储会同时探测两者）
	hc.health.AddReadinessCheck("storage", func() error {
		return hc.store.Health()
	})

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(2000))
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行一次健康检查并返回结果摘要
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
