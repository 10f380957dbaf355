// Package metrics counts connections, binds and requests and exposes
// them as Prometheus text-format counters. This is a deliberately thin
// adapter: the exposition format is reimplemented by hand over
// net/http rather than pulling in a metrics client library, since this
// is the one external-collaborator boundary the server needs.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Metrics holds every counter the server exposes. All fields are safe
// for concurrent use.
type Metrics struct {
	connectionsLDAP    atomic.Int64
	connectionsLDAPS   atomic.Int64
	successfulBinds    atomic.Int64
	failedBinds        atomic.Int64
	requestBind        atomic.Int64
	requestUnbind      atomic.Int64
	requestSearch      atomic.Int64
	requestUnsupported atomic.Int64
}

func New() *Metrics { return &Metrics{} }

// IncConnection records one accepted connection on the given protocol,
// "LDAP" or "LDAPS".
func (m *Metrics) IncConnection(protocol string) {
	if protocol == "LDAPS" {
		m.connectionsLDAPS.Add(1)
		return
	}
	m.connectionsLDAP.Add(1)
}

func (m *Metrics) IncSuccessfulBind() { m.successfulBinds.Add(1) }
func (m *Metrics) IncFailedBind()     { m.failedBinds.Add(1) }

// IncRequest records one request of the given kind: "bind", "unbind",
// "search", or anything else, counted as unsupported.
func (m *Metrics) IncRequest(kind string) {
	switch kind {
	case "bind":
		m.requestBind.Add(1)
	case "unbind":
		m.requestUnbind.Add(1)
	case "search":
		m.requestSearch.Add(1)
	default:
		m.requestUnsupported.Add(1)
	}
}

// Handler serves the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintln(w, "# HELP femtoldap_connections_total Accepted connections by protocol.")
		fmt.Fprintln(w, "# TYPE femtoldap_connections_total counter")
		fmt.Fprintf(w, "femtoldap_connections_total{protocol=\"LDAP\"} %d\n", m.connectionsLDAP.Load())
		fmt.Fprintf(w, "femtoldap_connections_total{protocol=\"LDAPS\"} %d\n", m.connectionsLDAPS.Load())

		fmt.Fprintln(w, "# HELP femtoldap_successful_binds_total Binds that authenticated successfully.")
		fmt.Fprintln(w, "# TYPE femtoldap_successful_binds_total counter")
		fmt.Fprintf(w, "femtoldap_successful_binds_total %d\n", m.successfulBinds.Load())

		fmt.Fprintln(w, "# HELP femtoldap_failed_binds_total Binds rejected for bad credentials or unsupported auth.")
		fmt.Fprintln(w, "# TYPE femtoldap_failed_binds_total counter")
		fmt.Fprintf(w, "femtoldap_failed_binds_total %d\n", m.failedBinds.Load())

		fmt.Fprintln(w, "# HELP femtoldap_requests_total Requests by operation kind.")
		fmt.Fprintln(w, "# TYPE femtoldap_requests_total counter")
		fmt.Fprintf(w, "femtoldap_requests_total{kind=\"bind\"} %d\n", m.requestBind.Load())
		fmt.Fprintf(w, "femtoldap_requests_total{kind=\"unbind\"} %d\n", m.requestUnbind.Load())
		fmt.Fprintf(w, "femtoldap_requests_total{kind=\"search\"} %d\n", m.requestSearch.Load())
		fmt.Fprintf(w, "femtoldap_requests_total{kind=\"unsupported\"} %d\n", m.requestUnsupported.Load())
	})
}
