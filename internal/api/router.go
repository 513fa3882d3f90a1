package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"NFTSentinel/internal/service"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// WebSocket serves /ws when set.
	WebSocket http.HandlerFunc
	Checks    map[string]Pinger
	Log       *zap.Logger
}

// NewRouter builds the HTTP API around svc.
func NewRouter(svc *service.AlertService, opts RouterOptions) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opts.Log))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}
	engine.Use(cors.New(corsCfg))

	health := &HealthHandler{Checks: opts.Checks}
	health.Register(engine)
	alerts := &AlertHandler{Service: svc}
	alerts.Register(engine)
	monitoring := &MonitoringHandler{Service: svc}
	monitoring.Register(engine)

	if opts.WebSocket != nil {
		engine.GET("/ws", gin.WrapF(opts.WebSocket))
	}
	return engine
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
