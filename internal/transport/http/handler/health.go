package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	appName   string
	env       string
	startedAt time.Time
	db        *gorm.DB
	redis     *redis.Client
	mqConn    *amqp.Connection
}

type dependencyStatus struct {
	OK       bool   `json:"ok"`
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewHealthHandler reports on the given dependencies; a nil redis client or
// rabbitmq connection is reported as disabled.
func NewHealthHandler(appName, env string, startedAt time.Time, db *gorm.DB, redisCli *redis.Client, mqConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{
		appName:   appName,
		env:       env,
		startedAt: startedAt,
		db:        db,
		redis:     redisCli,
		mqConn:    mqConn,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := h.checkDatabase(ctx)
	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()

	allOK := dbStatus.OK && redisStatus.OK && rmqStatus.OK
	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":        h.appName,
		"env":        h.env,
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
			"rabbitmq": rmqStatus,
		},
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) dependencyStatus {
	sqlDB, err := h.db.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.redis == nil {
		return dependencyStatus{OK: true, Disabled: true}
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.mqConn == nil {
		return dependencyStatus{OK: true, Disabled: true}
	}
	if h.mqConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
