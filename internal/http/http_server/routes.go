package http_server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"signalrelay/internal/metrics"
	"signalrelay/internal/ws"
)

// NewRelayEngine routes every path and method to the websocket server; room
// names come from the path, so there is nothing else to match on.
func NewRelayEngine(wsSrv *ws.WsServer, m *metrics.Relay) http.Handler {
	routerEngine := gin.New()
	routerEngine.RedirectTrailingSlash = false

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.Any("/*path", wsSrv.Handle)

	return m.Instrument(routerEngine)
}

// NewMetricsEngine serves the Prometheus exposition for g.
func NewMetricsEngine(g prometheus.Gatherer) http.Handler {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return routerEngine
}
