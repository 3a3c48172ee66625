package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_decoded_total", Help: "Signals successfully decoded from mailboxes"},
		[]string{"symbol"},
	)
	DecodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decode_failures_total", Help: "Mailbox payloads that failed to decode"},
		[]string{"kind"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Gate decisions on actionable signals"},
		[]string{"symbol","outcome"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejections_total", Help: "Rejections by reason"},
		[]string{"reason"},
	)
	OrdersSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Orders handed to the execution collaborator"},
		[]string{"symbol","direction"},
	)
)

func init() {
	prometheus.MustRegister(SignalsDecodedTotal, DecodeFailuresTotal, DecisionsTotal, RejectionsTotal, OrdersSubmittedTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{ Addr: addr, Handler: mux }
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
