package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetters(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for idx, want := range cases {
		assert.Equal(t, want, ColumnLetters(idx), "column %d", idx)
	}
	assert.Equal(t, "C7", CellRef(7, 2))
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Lead List'", r.URL.Path)
		assert.Equal(t, "ROWS", r.URL.Query().Get("majorDimension"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "'Lead List'!A1:C3",
			"majorDimension": "ROWS",
			"values": [][]string{
				{"Name", "Contact number of lead", "Status"},
				{"Asha", "98765 43210", "New"},
				{"Ben"},
			},
		})
	}))
	defer srv.Close()

	c := NewWithHTTP(srv.Client(), srv.URL, "sheet-1", "Lead List")
	ds, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Contact number of lead", "Status"}, ds.Header)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"Ben"}, ds.Rows[1])
}

func TestFetchAll_EmptySheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"range":"'Sheet1'!A1:Z1000","majorDimension":"ROWS"}`))
	}))
	defer srv.Close()

	ds, err := NewWithHTTP(srv.Client(), srv.URL, "s", "Sheet1").FetchAll(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestFetchAll_ErrorIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"The caller does not have permission"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewWithHTTP(srv.Client(), srv.URL, "s", "Sheet1").FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrConnection))
	assert.Contains(t, err.Error(), "does not have permission")
}

func TestSetCell(t *testing.T) {
	var got valueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Sheet1'!C5", r.URL.Path)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"updatedCells":1}`))
	}))
	defer srv.Close()

	c := NewWithHTTP(srv.Client(), srv.URL, "sheet-1", "Sheet1")
	require.NoError(t, c.SetCell(context.Background(), 5, 2, "Error: =not a formula"))
	assert.Equal(t, [][]string{{"Error: =not a formula"}}, got.Values)
	assert.Equal(t, "'Sheet1'!C5", got.Range)
}

func TestSetCell_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWithHTTP(srv.Client(), srv.URL, "s", "Sheet1").SetCell(context.Background(), 2, 0, "Sent")
	assert.Error(t, err)
}

func TestNew_BadCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsFile: "/does/not/exist.json"})
	assert.True(t, errors.Is(err, dispatch.ErrConfiguration))
}
