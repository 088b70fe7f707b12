package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Current number of open websocket connections",
	})
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_users",
		Help: "Users with a registered live connection",
	})
	RoutedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_routed_events_total",
		Help: "Real-time events by outbound name and routing outcome",
	}, []string{"event", "outcome"})
	PresenceAnnouncements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_announcements_total",
		Help: "Presence changes broadcast to connected clients",
	}, []string{"online"})
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_auth_attempts_total",
		Help: "Websocket credential verifications by result",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, OnlineUsers, RoutedEvents, PresenceAnnouncements,
		AuthAttempts, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
