package database

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics 驱动的 prometheus 指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	affectedRows      *prometheus.HistogramVec
}

// NewMetrics 在 reg 上注册指标，reg 为 nil 时使用默认 registry
// 同名指标已注册时复用已有的收集器
func NewMetrics(name string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "collection", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		affectedRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_affected_rows",
				Help:    "Rows inserted, updated or deleted per operation",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
	}
	m.operationCounter = register(reg, m.operationCounter)
	m.operationDuration = register(reg, m.operationDuration)
	m.affectedRows = register(reg, m.affectedRows)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observe(operation string, collection string, duration time.Duration, rows int64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationCounter.WithLabelValues(operation, collection, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil && operation != string(QueryTypeSelect) {
		m.affectedRows.WithLabelValues(operation).Observe(float64(rows))
	}
}

// DefaultTracer 驱动默认使用的 tracer
func DefaultTracer() trace.Tracer {
	return otel.Tracer("github.com/hatlonely/mongodm/database")
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, operation string, collection string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, nil
	}
	return tracer.Start(ctx, fmt.Sprintf("%s.%s", name, operation),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.operation", operation),
			attribute.String("db.collection", collection),
		),
	)
}

func endSpan(span trace.Span, duration time.Duration, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
