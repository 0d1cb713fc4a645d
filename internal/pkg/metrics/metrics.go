package metrics

import (
	"Tandem/internal/api/dto"
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tandem",
			Name:      "http_requests_total",
			Help:      "HTTP 请求数，按路由与状态码统计",
		},
		[]string{"method", "route", "code"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tandem",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tandem",
			Name:      "events_published_total",
			Help:      "推送的变更事件数",
		},
		[]string{"type", "result"},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tandem",
			Name:      "ws_connections",
			Help:      "当前 WebSocket 连接数",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(httpLatency)
	prometheus.MustRegister(eventsPublished)
	prometheus.MustRegister(wsConnections)
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// GinMiddleware 统计请求数与耗时，route 取注册时的路径模板
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// WSConnected 连接建立时调用，返回值在断开时调用
func WSConnected() func() {
	wsConnections.Inc()
	return wsConnections.Dec
}

// Publisher 与 service.EventPublisher 签名一致
type Publisher interface {
	Publish(ctx context.Context, userIDs []uint64, evt *dto.EventDTO) error
}

type instrumentedPublisher struct {
	next Publisher
}

// InstrumentPublisher 为事件推送计数
func InstrumentPublisher(next Publisher) Publisher {
	return &instrumentedPublisher{next: next}
}

func (s *instrumentedPublisher) Publish(ctx context.Context, userIDs []uint64, evt *dto.EventDTO) error {
	err := s.next.Publish(ctx, userIDs, evt)
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(evt.Type, result).Inc()
	return err
}
