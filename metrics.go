package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalrelay_rooms_active",
		Help: "Number of live rooms.",
	})
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalrelay_connections_active",
		Help: "Number of registered client connections.",
	})
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalrelay_messages_received_total",
		Help: "Inbound client messages by type.",
	}, []string{"type"})
	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalrelay_messages_dropped_total",
		Help: "Inbound messages dropped before dispatch, by reason.",
	}, []string{"reason"})
	deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalrelay_delivery_failures_total",
		Help: "Outbound messages that could not be handed to a client transport.",
	})
)

// serveMetrics exposes /metrics on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}
