package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const readinessTimeout = 3 * time.Second

// ReadinessCheck 返回 nil 表示依赖可用
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadinessCheck
}

func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// DatabaseCheck ping 数据库连接池
func DatabaseCheck(db *gorm.DB) ReadinessCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// BucketCheck 检查存储桶是否存在
func BucketCheck(storageService storage.StorageService) ReadinessCheck {
	return func(ctx context.Context) error {
		exists, err := storageService.IsBucketExist(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New("bucket does not exist")
		}
		return nil
	}
}

// Healthz 存活探针
// @Summary 存活检查
// @Tags 健康检查
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz 就绪探针，任一依赖不可用时返回 503
// @Summary 就绪检查
// @Tags 健康检查
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /readyz [get]
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.Warn("Readyz: 依赖检查失败", zap.String("check", name), zap.Error(err))
			results[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "error"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
