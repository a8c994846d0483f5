// Prometheus metrics

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_http_requests_total",
	Help: "Handled HTTP requests by method and status code.",
}, []string{"method", "status"})

var metricAccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_access_decisions_total",
	Help: "Classroom authorization decisions.",
}, []string{"decision"})

var metricCatalogReloads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gateway_catalog_reloads_total",
	Help: "Successful catalog reloads since start.",
})
