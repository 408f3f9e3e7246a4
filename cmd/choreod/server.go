package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Swind/choreo/core"
	"github.com/Swind/choreo/stage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statusResponse struct {
	Phase    string         `json:"phase"`
	Locked   bool           `json:"locked"`
	Rejected int64          `json:"rejected"`
	High     queueStatus    `json:"high"`
	Low      queueStatus    `json:"low"`
	Counters stage.Counters `json:"counters"`
}

type queueStatus struct {
	Pending int   `json:"pending"`
	Active  int   `json:"active"`
	Paused  bool  `json:"paused"`
	Started int64 `json:"started"`
	Failed  int64 `json:"failed"`
}

func toQueueStatus(q core.QueueStats) queueStatus {
	return queueStatus{Pending: q.Pending, Active: q.Active, Paused: q.Paused, Started: q.Started, Failed: q.Failed}
}

// newStatusMux serves /healthz, /status and /metrics.
func newStatusMux(reg *prometheus.Registry, session *stage.Session) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		stats := session.Scheduler().Stats()
		resp := statusResponse{
			Phase:    stats.Phase.String(),
			Locked:   stats.Locked,
			Rejected: stats.Rejected,
			High:     toQueueStatus(stats.High),
			Low:      toQueueStatus(stats.Low),
			Counters: session.Counters(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func newStatusServer(addr string, reg *prometheus.Registry, session *stage.Session) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      newStatusMux(reg, session),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
