package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

// NewRouter 組裝 gin Engine
// 帳戶路由同時掛在 / 與 /api/v1
func NewRouter(core *usecase.CoreUseCase, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), TraceID(), Metrics(), RequestLogger(logger))

	h := NewHandler(core, logger)
	h.RegisterRoutes(r)
	h.RegisterRoutes(r.Group("/api/v1"))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
