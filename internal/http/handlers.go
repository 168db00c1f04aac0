package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/services"
)

// transferResponse is the wire shape of one unified transfer
type transferResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Date            string `json:"date"`
	TransferTime    string `json:"transfer_time"`
	FromAccountID   string `json:"from_account_id"`
	FromAccountName string `json:"from_account_name"`
	ToAccountID     string `json:"to_account_id"`
	ToAccountName   string `json:"to_account_name"`
	FromAmount      string `json:"from_amount"`
	ToAmount        string `json:"to_amount"`
	FromCurrency    string `json:"from_currency"`
	ToCurrency      string `json:"to_currency"`
	ExchangeRate    string `json:"exchange_rate"`
	Note            string `json:"note,omitempty"`
	FromBalance     string `json:"from_balance"`
	ToBalance       string `json:"to_balance"`
}

type listTransfersResponse struct {
	Transfers []transferResponse `json:"transfers"`
	// DanglingLegs counts single-sided transfer postings with no
	// matching counterpart. They are excluded from the list above but
	// surfaced here so a broken export does not go unnoticed.
	DanglingLegs int      `json:"dangling_legs"`
	Malformed    []string `json:"malformed,omitempty"`
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	At        string `json:"at"`
	Balance   string `json:"balance"`
}

type executeDPSRequest struct {
	FromAccountID string `json:"from_account_id"`
	Amount        string `json:"amount,omitempty"`
}

type executeDPSResponse struct {
	ID            string `json:"id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleListTransfers serves GET /api/transfers with optional search,
// kind and since query parameters.
func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	filters := services.ListFilters{
		Search: r.URL.Query().Get("search"),
		Kind:   core.TransferKind(r.URL.Query().Get("kind")),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid since date, expected YYYY-MM-DD"})
			return
		}
		filters.Since = t
	}
	switch filters.Kind {
	case "", core.CrossCurrency, core.SameCurrency, core.AutomaticSavings:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown transfer kind"})
		return
	}

	views, report, err := s.transfers.ListTransfers(r.Context(), filters)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transfers", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list transfers"})
		return
	}

	resp := listTransfersResponse{
		Transfers:    make([]transferResponse, 0, len(views)),
		DanglingLegs: report.DanglingCount(),
		Malformed:    report.Malformed,
	}
	for _, v := range views {
		resp.Transfers = append(resp.Transfers, toTransferResponse(v))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleBalance serves GET /api/balance?account_id=...&at=YYYY-MM-DD.
// An omitted at defaults to now.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id is required"})
		return
	}

	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid at date, expected YYYY-MM-DD"})
			return
		}
		at = t
	}

	balance, err := s.transfers.BalanceAsOf(r.Context(), accountID, at)
	if err != nil {
		if errors.Is(err, core.ErrNoSuchAccount) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such account"})
			return
		}
		slog.ErrorContext(r.Context(), "Failed to compute balance", "error", err, "account_id", accountID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to compute balance"})
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		At:        at.Format("2006-01-02"),
		Balance:   balance.String(),
	})
}

// handleExecuteDPS serves POST /api/dps/execute. Amount is required for
// variable-amount accounts and ignored for fixed-amount ones.
func (s *Server) handleExecuteDPS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req executeDPSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.FromAccountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from_account_id is required"})
		return
	}

	var amount decimal.Decimal
	if req.Amount != "" {
		parsed, err := core.ParseAmount(req.Amount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		amount = parsed
	}

	rec, err := s.dps.Execute(r.Context(), req.FromAccountID, amount)
	if err != nil {
		status, msg := dpsErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Failed to execute DPS transfer", "error", err, "account_id", req.FromAccountID)
		}
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusCreated, executeDPSResponse{
		ID:            rec.ID,
		FromAccountID: rec.FromAccountID,
		ToAccountID:   rec.ToAccountID,
		Amount:        rec.Amount.String(),
		Date:          rec.Date.Format(time.RFC3339),
	})
}

func dpsErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNoSuchAccount):
		return http.StatusNotFound, "no such account"
	case errors.Is(err, core.ErrDPSDisabled),
		errors.Is(err, core.ErrDPSNotLinked),
		errors.Is(err, core.ErrDPSFixedAmountInvalid),
		errors.Is(err, core.ErrDPSAmountTypeInvalid),
		errors.Is(err, core.ErrInactiveAccount),
		errors.Is(err, core.ErrSameAccount),
		errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "failed to execute transfer"
	}
}

func toTransferResponse(v core.TransferView) transferResponse {
	transferTime := ""
	if !v.TransferTime.IsZero() {
		transferTime = v.TransferTime.Format(time.RFC3339)
	}
	return transferResponse{
		ID:              v.ID,
		Kind:            string(v.Kind),
		Date:            v.Date.Format(time.RFC3339),
		TransferTime:    transferTime,
		FromAccountID:   v.FromAccountID,
		FromAccountName: v.FromAccountName,
		ToAccountID:     v.ToAccountID,
		ToAccountName:   v.ToAccountName,
		FromAmount:      v.FromAmount.String(),
		ToAmount:        v.ToAmount.String(),
		FromCurrency:    v.FromCurrency,
		ToCurrency:      v.ToCurrency,
		ExchangeRate:    v.ExchangeRate.String(),
		Note:            v.Note,
		FromBalance:     v.FromBalance.String(),
		ToBalance:       v.ToBalance.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
