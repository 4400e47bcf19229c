package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fintrack/internal/core"
)

// The stream handlers bridge the facade's observable queries onto
// Server-Sent Events: the client gets the current value as its first event
// and a fresh one after every committed mutation, conflated to the latest
// state if it reads slowly. Closing the connection unsubscribes.

func (s *Server) handleStreamTransactions(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.tracker.ObserveTransactions(r.Context()), func(ts []core.Transaction) any {
		out := make([]transactionResponse, len(ts))
		for i, t := range ts {
			out[i] = toTransactionResponse(t)
		}
		return out
	})
}

func (s *Server) handleStreamBalance(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.tracker.ObserveBalance(r.Context()), func(b core.Money) any {
		return balanceResponse{Balance: b.String(), Cents: b.Cents}
	})
}

func (s *Server) handleStreamCategories(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.tracker.ObserveCategories(r.Context()), func(cs []core.Category) any {
		out := make([]categoryResponse, len(cs))
		for i, c := range cs {
			out[i] = toCategoryResponse(c)
		}
		return out
	})
}

func serveSSE[T any](w http.ResponseWriter, r *http.Request, ch <-chan T, encode func(T) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(encode(v))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
