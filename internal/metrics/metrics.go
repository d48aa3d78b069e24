// Package metrics define las métricas Prometheus del emulador: HTTP,
// resultado de operaciones, tokens emitidos, blocking functions y tamaño
// de cada scope.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/authemu/internal/errors"
)

var (
	registerOnce sync.Once
	registerErr  error

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo por método y ruta",
	}, []string{"method", "path"})

	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authemu_operations_total",
		Help: "Operaciones ejecutadas por nombre y código de resultado",
	}, []string{"op", "code"})

	tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authemu_tokens_issued_total",
		Help: "Tokens emitidos por tipo",
	}, []string{"kind"})

	blockingCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authemu_blocking_calls_total",
		Help: "Invocaciones de blocking functions por trigger y resultado",
	}, []string{"trigger", "result"})
)

// Config agrupa lo necesario para exponer /metrics.
type Config struct {
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	Scopes   ScopeStatser
}

// Register registra los collectors (idempotente) y devuelve el handler de /metrics.
func Register(cfg Config) (http.Handler, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			operationsTotal, tokensIssuedTotal, blockingCallsTotal,
		} {
			if err := registerCollector(reg, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}
	if cfg.Scopes != nil {
		if err := registerCollector(reg, newScopeCollector(cfg.Scopes)); err != nil {
			return nil, err
		}
	}
	if cfg.Gatherer != nil {
		return promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector ignora duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveOperation cuenta una operación con su código ("OK" si no hubo error).
func ObserveOperation(op string, err error) {
	code := "OK"
	if err != nil {
		code = errors.FromError(err).Code
	}
	operationsTotal.WithLabelValues(op, code).Inc()
}

// TokenIssued cuenta un token emitido: id_token, refresh_token, session_cookie.
func TokenIssued(kind string) {
	tokensIssuedTotal.WithLabelValues(kind).Inc()
}

// BlockingCall cuenta una invocación de blocking function.
func BlockingCall(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	blockingCallsTotal.WithLabelValues(trigger, result).Inc()
}
