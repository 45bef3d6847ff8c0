package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Количество обработанных команд по именам и исходам",
	}, []string{"command", "outcome"})

	SubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "album_submissions_total",
		Help: "Количество принятых заявок на альбомы",
	})

	RatingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "album_ratings_total",
		Help: "Количество записанных оценок: новые и обновлённые",
	}, []string{"kind"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CommandsTotal,
		SubmissionsTotal,
		RatingsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncCommand увеличивает счётчик команды с исходом.
func IncCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// IncRating увеличивает счётчик оценок.
func IncRating(created bool) {
	kind := "updated"
	if created {
		kind = "created"
	}
	RatingsTotal.WithLabelValues(kind).Inc()
}
