package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the ledger store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.receipts != nil {
		checks["receipts"] = "ok"
	} else {
		checks["receipts"] = "disabled"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "# HELP fintrack_http_requests_total Total HTTP requests\n")
	fmt.Fprintf(w, "fintrack_http_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# HELP fintrack_http_server_errors_total HTTP responses with a 5xx status\n")
	fmt.Fprintf(w, "fintrack_http_server_errors_total %d\n", traceMetrics.ServerErrors)
	fmt.Fprintf(w, "# HELP fintrack_http_last_response_microseconds Duration of the last request\n")
	fmt.Fprintf(w, "fintrack_http_last_response_microseconds %d\n", traceMetrics.LastResponseMicros)
	fmt.Fprintf(w, "# HELP fintrack_security_suspicious_requests_total Requests flagged as suspicious\n")
	fmt.Fprintf(w, "fintrack_security_suspicious_requests_total %d\n", securityMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "# HELP fintrack_security_blocked_requests_total Requests rejected by method\n")
	fmt.Fprintf(w, "fintrack_security_blocked_requests_total %d\n", securityMetrics.BlockedRequests)
	fmt.Fprintf(w, "# HELP fintrack_uptime_seconds Process uptime\n")
	fmt.Fprintf(w, "fintrack_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}
