package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type transactionRequest struct {
	Amount       string `json:"amount"` // decimal string, e.g. "12.34"
	Type         string `json:"type"`
	Description  string `json:"description"`
	CategoryName string `json:"categoryName,omitempty"`
	ImagePath    string `json:"imagePath,omitempty"`
}

type transactionResponse struct {
	ID           int64  `json:"id"`
	Amount       string `json:"amount"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	CategoryName string `json:"categoryName"`
	ImagePath    string `json:"imagePath,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

type insertTransactionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Sync        string              `json:"sync,omitempty"`
	SyncError   string              `json:"syncError,omitempty"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
	Cents   int64  `json:"cents"`
}

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Amount:       t.Amount.String(),
		Type:         string(t.Type),
		Description:  t.Description,
		CategoryName: t.CategoryName,
		ImagePath:    t.ImagePath,
		Timestamp:    t.Timestamp,
	}
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Icon: c.Icon}
}

func (s *Server) handleInsertTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	tx := core.Transaction{
		Amount:       core.Money{Cents: cents},
		Type:         core.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
		Description:  strings.TrimSpace(req.Description),
		CategoryName: strings.TrimSpace(req.CategoryName),
		ImagePath:    req.ImagePath,
	}

	stored, syncRes, err := s.tracker.Insert(r.Context(), tx)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	resp := insertTransactionResponse{Transaction: toTransactionResponse(stored)}
	if syncRes.Err != nil {
		resp.SyncError = syncRes.Err.Error()
	} else {
		resp.Sync = syncRes.Info
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if filter != "" {
		if err := filter.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "unknown type filter")
			return
		}
	}

	ts, err := s.tracker.Transactions(r.Context(), filter)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	out := make([]transactionResponse, len(ts))
	for i, t := range ts {
		out[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := s.tracker.GetTransaction(r.Context(), id)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.tracker.DeleteByID(r.Context(), id); err != nil {
		writeOperationError(w, err)
		return
	}
	// Absent ids delete fine too: the operation is idempotent
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.tracker.Balance(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: b.String(), Cents: b.Cents})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := s.tracker.Categories(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}

	out := make([]categoryResponse, len(cs))
	for i, c := range cs {
		out[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInsertCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := s.tracker.InsertCategory(r.Context(), core.Category{
		Name: strings.TrimSpace(req.Name),
		Icon: strings.TrimSpace(req.Icon),
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(stored))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.tracker.DeleteCategoryByID(r.Context(), id); err != nil {
		writeOperationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOperationError maps facade errors onto HTTP statuses: constraint
// violations are the caller's fault, missing rows are 404, anything else is
// a storage-side failure.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case core.IsConstraintViolation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
