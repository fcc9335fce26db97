package relay

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// MetricsTracer 中继服务的指标接口
type MetricsTracer interface {
	// RequestHandled 一个入站请求处理完毕，outcome 为回复的状态码名或结果标签
	RequestHandled(t pb.CircuitRelay_Type, outcome string)

	// CircuitOpened 电路开始拼接
	CircuitOpened()

	// CircuitClosed 电路结束
	CircuitClosed(d time.Duration)

	// BytesRelayed 拼接写出 n 字节
	BytesRelayed(dir Direction, n int)
}

const (
	metricsNamespace = "circuit"
	metricsSubsystem = "relay"
)

type promTracer struct {
	requests *prom.CounterVec
	active   prom.Gauge
	bytes    *prom.CounterVec
	duration prom.Histogram
}

var _ MetricsTracer = (*promTracer)(nil)

// NewMetricsTracer 创建基于 Prometheus 的指标实现
//
// reg 为 nil 时使用 prom.DefaultRegisterer。重复注册时复用已注册的采集器。
func NewMetricsTracer(reg prom.Registerer) MetricsTracer {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	t := &promTracer{
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Relay requests handled, by message type and outcome",
		}, []string{"type", "outcome"}),
		active: prom.NewGauge(prom.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "active_circuits",
			Help:      "Circuits currently being spliced",
		}),
		bytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "relayed_bytes_total",
			Help:      "Bytes relayed through circuits, by direction",
		}, []string{"direction"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "circuit_duration_seconds",
			Help:      "Lifetime of relayed circuits",
			Buckets:   prom.ExponentialBuckets(0.1, 4, 10),
		}),
	}

	t.requests = register(reg, t.requests)
	t.active = register(reg, t.active)
	t.bytes = register(reg, t.bytes)
	t.duration = register(reg, t.duration)
	return t
}

func register[C prom.Collector](reg prom.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		log.Warn("注册指标失败", "err", err)
	}
	return c
}

func (t *promTracer) RequestHandled(typ pb.CircuitRelay_Type, outcome string) {
	t.requests.WithLabelValues(typ.String(), outcome).Inc()
}

func (t *promTracer) CircuitOpened() {
	t.active.Inc()
}

func (t *promTracer) CircuitClosed(d time.Duration) {
	t.active.Dec()
	t.duration.Observe(d.Seconds())
}

func (t *promTracer) BytesRelayed(dir Direction, n int) {
	t.bytes.WithLabelValues(dir.String()).Add(float64(n))
}

// noopTracer 未配置指标时使用
type noopTracer struct{}

func (noopTracer) RequestHandled(pb.CircuitRelay_Type, string) {}
func (noopTracer) CircuitOpened()                              {}
func (noopTracer) CircuitClosed(time.Duration)                 {}
func (noopTracer) BytesRelayed(Direction, int)                 {}
