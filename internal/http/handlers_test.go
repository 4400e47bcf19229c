package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	tracker, err := services.NewTracker(store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	srv := NewServer(":0", tracker, applog.New(applog.DefaultConfig()))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestInsertListDeleteRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/transactions", transactionRequest{
		Amount: "50.00", Type: "income", Description: "Paycheck",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[insertTransactionResponse](t, resp)
	assert.Equal(t, "50.00", created.Transaction.Amount)
	assert.Equal(t, "Uncategorized", created.Transaction.CategoryName)
	assert.NotZero(t, created.Transaction.ID)
	assert.Equal(t, "remote sync disabled", created.Sync)

	// Timestamps have millisecond resolution; space the inserts out so the
	// ordering assertion below is about time, not id tie-breaking
	time.Sleep(5 * time.Millisecond)

	resp = postJSON(t, ts.URL+"/api/transactions", transactionRequest{
		Amount: "20", Type: "expense", Description: "Coffee", CategoryName: "Food",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	listResp, err := http.Get(ts.URL + "/api/transactions")
	require.NoError(t, err)
	list := decode[[]transactionResponse](t, listResp)
	require.Len(t, list, 2)
	assert.Equal(t, "Coffee", list[0].Description, "most recent first")

	balResp, err := http.Get(ts.URL + "/api/balance")
	require.NoError(t, err)
	bal := decode[balanceResponse](t, balResp)
	assert.EqualValues(t, 3000, bal.Cents)
	assert.Equal(t, "30.00", bal.Balance)

	req, err := http.NewRequest(http.MethodDelete,
		ts.URL+"/api/transactions/"+jsonNumber(created.Transaction.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	balResp, err = http.Get(ts.URL + "/api/balance")
	require.NoError(t, err)
	bal = decode[balanceResponse](t, balResp)
	assert.EqualValues(t, -2000, bal.Cents)
}

func TestInsertTransactionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		req  transactionRequest
	}{
		{"negative amount", transactionRequest{Amount: "-5", Type: "expense", Description: "x"}},
		{"garbage amount", transactionRequest{Amount: "abc", Type: "expense", Description: "x"}},
		{"unknown type", transactionRequest{Amount: "5", Type: "transfer", Description: "x"}},
		{"empty description", transactionRequest{Amount: "5", Type: "expense", Description: "  "}},
		{"oversized description", transactionRequest{Amount: "5", Type: "expense", Description: strings.Repeat("x", 201)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/transactions", tc.req)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestTypeFilterQuery(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []transactionRequest{
		{Amount: "10", Type: "income", Description: "a"},
		{Amount: "2", Type: "expense", Description: "b"},
	} {
		resp := postJSON(t, ts.URL+"/api/transactions", req)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/transactions?type=expense")
	require.NoError(t, err)
	list := decode[[]transactionResponse](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Description)

	resp, err = http.Get(ts.URL + "/api/transactions?type=transfer")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTransactionNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/transactions/12345")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCategoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/categories")
	require.NoError(t, err)
	seeded := decode[[]categoryResponse](t, resp)
	require.Len(t, seeded, 3, "seeded defaults")

	resp = postJSON(t, ts.URL+"/api/categories", categoryRequest{Name: "Travel", Icon: "✈️"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[categoryResponse](t, resp)

	// Upsert by name keeps the id, swaps the icon
	resp = postJSON(t, ts.URL+"/api/categories", categoryRequest{Name: "Travel", Icon: "🚆"})
	updated := decode[categoryResponse](t, resp)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "🚆", updated.Icon)

	resp = postJSON(t, ts.URL+"/api/categories", categoryRequest{Name: " "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/categories", categoryRequest{Name: strings.Repeat("n", 101)})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/categories/"+jsonNumber(created.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
}

func TestBalanceStreamDeliversUpdates(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stream/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan balanceResponse, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var b balanceResponse
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &b) == nil {
				events <- b
			}
		}
	}()

	waitEvent := func() balanceResponse {
		select {
		case b := <-events:
			return b
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for stream event")
			panic("unreachable")
		}
	}

	assert.EqualValues(t, 0, waitEvent().Cents, "first event is the current state")

	ins := postJSON(t, ts.URL+"/api/transactions", transactionRequest{
		Amount: "100", Type: "income", Description: "Paycheck",
	})
	ins.Body.Close()

	// Conflated stream: read until the committed value shows up
	deadline := time.Now().Add(3 * time.Second)
	for {
		if b := waitEvent(); b.Cents == 10000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream never reflected the insert")
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func jsonNumber(id int64) string {
	return strconv.FormatInt(id, 10)
}
