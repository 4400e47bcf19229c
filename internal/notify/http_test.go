package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestPayloadFor(t *testing.T) {
	p := PayloadFor(core.Transaction{
		Amount:       core.Money{Cents: 1250},
		Type:         core.Expense,
		Description:  "Coffee",
		CategoryName: "Food",
	})
	assert.Equal(t, "Coffee", p.Title)
	assert.Equal(t, "Category: Food, Type: expense, Amount: 12.50 EUR", p.Body)
	assert.Equal(t, 1, p.UserID)
}

func TestHTTPNotifierSend(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(remoteResponse{ID: 101, Title: got.Title, Body: got.Body, UserID: got.UserID})
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	res := n.Send(context.Background(), Payload{Title: "Lunch", Body: "b", UserID: 1})
	require.NoError(t, res.Err)
	assert.Equal(t, "remote accepted, id=101", res.Info)
	assert.Equal(t, "Lunch", got.Title)
}

func TestHTTPNotifierRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(remoteResponse{ID: 7})
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	res := n.Send(context.Background(), Payload{Title: "x", UserID: 1})
	require.NoError(t, res.Err)
	assert.Equal(t, 3, attempts)
}

func TestHTTPNotifierReportsFailureWithoutPanicking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	res := n.Send(context.Background(), Payload{Title: "x", UserID: 1})
	require.Error(t, res.Err)
	assert.Empty(t, res.Info)
}

func TestNopNotifier(t *testing.T) {
	res := NopNotifier{}.Send(context.Background(), Payload{})
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.Info)
}

func TestFactory(t *testing.T) {
	n, err := New(Config{Mode: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopNotifier{}, n)

	n, err = New(Config{Mode: "http", Endpoint: "http://localhost:1/posts"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPNotifier{}, n)

	_, err = New(Config{Mode: "http"})
	assert.Error(t, err, "http mode without endpoint")

	_, err = New(Config{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}
