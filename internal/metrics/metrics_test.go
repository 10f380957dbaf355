package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersExposedAsPrometheusText(t *testing.T) {
	m := New()
	m.IncConnection("LDAP")
	m.IncConnection("LDAPS")
	m.IncSuccessfulBind()
	m.IncFailedBind()
	m.IncFailedBind()
	m.IncRequest("bind")
	m.IncRequest("search")
	m.IncRequest("search")
	m.IncRequest("unbind")
	m.IncRequest("whatever")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `femtoldap_connections_total{protocol="LDAP"} 1`)
	assert.Contains(t, body, `femtoldap_connections_total{protocol="LDAPS"} 1`)
	assert.Contains(t, body, `femtoldap_successful_binds_total 1`)
	assert.Contains(t, body, `femtoldap_failed_binds_total 2`)
	assert.Contains(t, body, `femtoldap_requests_total{kind="bind"} 1`)
	assert.Contains(t, body, `femtoldap_requests_total{kind="search"} 2`)
	assert.Contains(t, body, `femtoldap_requests_total{kind="unbind"} 1`)
	assert.Contains(t, body, `femtoldap_requests_total{kind="unsupported"} 1`)
}

func TestIncConnectionDefaultsToLDAP(t *testing.T) {
	m := New()
	m.IncConnection("anything-else")
	assert.Equal(t, int64(1), m.connectionsLDAP.Load())
	assert.Equal(t, int64(0), m.connectionsLDAPS.Load())
}
