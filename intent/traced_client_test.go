package intent

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTracedClientMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := NewTracedClient(5 * time.Second)
	get := func() *TracedResponse {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := c.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"response":"ok"}`, string(resp.Body))
		return resp
	}

	m := get().Metrics
	require.False(t, m.ConnReused)
	require.Positive(t, m.Total)
	require.Positive(t, m.Sum())
	require.LessOrEqual(t, m.Sum(), m.Total)
	for _, d := range []time.Duration{m.ConnWait, m.TCP, m.ReqHeaders, m.ReqBody, m.TTFB, m.Download} {
		require.GreaterOrEqual(t, d, time.Duration(0))
	}

	m = get().Metrics
	require.True(t, m.ConnReused)
	require.Zero(t, m.TCP)
}
