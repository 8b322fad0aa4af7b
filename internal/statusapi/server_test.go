package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewRouter(NewTracker(), nil), "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus_Lifecycle(t *testing.T) {
	tr := NewTracker()
	h := NewRouter(tr, nil)

	var st Status
	require.NoError(t, json.Unmarshal(get(t, h, "/status", nil).Body.Bytes(), &st))
	assert.Equal(t, PhaseIdle, st.Phase)

	tr.Begin("run-9")
	tr.Observe(context.Background(), domain.RowResult{Ordinal: 2, Phone: "+919876543210", Outcome: domain.Sent(), Attempts: 1})
	tr.Observe(context.Background(), domain.RowResult{Ordinal: 3, Phone: "12", Outcome: domain.InvalidPhone()})

	require.NoError(t, json.Unmarshal(get(t, h, "/status", nil).Body.Bytes(), &st))
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.Equal(t, "run-9", st.Summary.RunID)
	assert.Equal(t, 1, st.Summary.Sent)
	assert.Equal(t, 1, st.Summary.Failed)
	assert.Equal(t, 3, st.LastRow)

	tr.Finish(domain.RunSummary{RunID: "run-9", Seen: 4, Eligible: 2, Sent: 1, Failed: 1, Duration: time.Second})
	require.NoError(t, json.Unmarshal(get(t, h, "/status", nil).Body.Bytes(), &st))
	assert.Equal(t, PhaseFinished, st.Phase)
	assert.Equal(t, 4, st.Summary.Seen)
}

func TestStatusRows_MasksPhones(t *testing.T) {
	tr := NewTracker()
	h := NewRouter(tr, nil)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/status/rows", nil).Code)

	tr.Begin("r")
	tr.Observe(context.Background(), domain.RowResult{Ordinal: 2, Phone: "+919876543210", Outcome: domain.Sent()})

	var rows []Row
	rec := get(t, h, "/status/rows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Sent", rows[0].Status)
	assert.NotContains(t, rows[0].Phone, "98765")
}

func TestTracker_RecentIsBounded(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r")
	for i := 0; i < recentLimit+10; i++ {
		tr.Observe(context.Background(), domain.RowResult{Ordinal: i + 2, Outcome: domain.Sent()})
	}
	rows := tr.Recent()
	require.Len(t, rows, recentLimit)
	assert.Equal(t, 12, rows[0].Ordinal)
}

func TestCORS(t *testing.T) {
	h := NewRouter(NewTracker(), []string{"https://ops.example.com"})

	rec := get(t, h, "/status", http.Header{"Origin": {"https://ops.example.com"}})
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/status", http.Header{"Origin": {"https://evil.example.com"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
