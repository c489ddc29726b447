// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "musictutor"

// Recorder 业务与 HTTP 指标集合，nil 时所有方法为空操作
type Recorder struct {
	registry          *prometheus.Registry
	couponEvaluations *prometheus.CounterVec
	redemptions       *prometheus.CounterVec
	checkouts         *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
	queueTasks        *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New 创建独立 Registry 的指标集合
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		couponEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Coupon evaluations by result reason.",
		}, []string{"reason"}),
		redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption ledger changes.",
		}, []string{"action"}),
		checkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions.",
		}, []string{"from", "to"}),
		gatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gateway_calls_total",
			Help:      "Payment gateway verification calls by method and outcome.",
		}, []string{"method", "outcome"}),
		queueTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_total",
			Help:      "Processed background tasks by type and result.",
		}, []string{"type", "result"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler /metrics 端点
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry 返回底层 Registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CouponEvaluated 记录一次优惠券校验
func (r *Recorder) CouponEvaluated(reason string) {
	if r == nil {
		return
	}
	r.couponEvaluations.WithLabelValues(reason).Inc()
}

// RedemptionApplied 记录核销
func (r *Recorder) RedemptionApplied() {
	if r == nil {
		return
	}
	r.redemptions.WithLabelValues("applied").Inc()
}

// RedemptionReleased 记录核销释放
func (r *Recorder) RedemptionReleased() {
	if r == nil {
		return
	}
	r.redemptions.WithLabelValues("released").Inc()
}

// Checkout 记录结账结果
func (r *Recorder) Checkout(result string) {
	if r == nil {
		return
	}
	r.checkouts.WithLabelValues(result).Inc()
}

// OrderTransition 记录订单状态流转
func (r *Recorder) OrderTransition(from, to string) {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues(from, to).Inc()
}

// GatewayCall 记录支付网关调用
func (r *Recorder) GatewayCall(method, outcome string) {
	if r == nil {
		return
	}
	r.gatewayCalls.WithLabelValues(method, outcome).Inc()
}

// QueueTask 记录后台任务处理结果
func (r *Recorder) QueueTask(taskType string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.queueTasks.WithLabelValues(taskType, result).Inc()
}

// ObserveHTTP 记录 HTTP 请求耗时
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
