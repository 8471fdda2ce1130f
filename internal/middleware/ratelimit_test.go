package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func doRequest(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_LimitRejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0, 2, nil)
	router := gin.New()
	router.GET("/", rl.Limit("test"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(router).Code)
	assert.Equal(t, http.StatusOK, doRequest(router).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router).Code)
}

func TestRateLimiter_SoftLimitNeverRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0, 2, nil)
	var limited []bool
	router := gin.New()
	router.GET("/", rl.SoftLimit("test"), func(c *gin.Context) {
		limited = append(limited, c.GetBool(ContextKeyRateLimited))
		c.Status(http.StatusOK)
	})

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router).Code)
	}

	// 桶耗尽后只打标记，请求照常到达处理器
	assert.Equal(t, []bool{false, false, true, true}, limited)
}
