package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/farmgate/agromarket-api/internal/models"
)

type createFinanceRecordRequest struct {
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	InventoryItemID *string         `json:"inventory_item_id,omitempty"`
}

// createFinanceRecordHandler appends a manual ledger entry
func (s *Server) createFinanceRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req createFinanceRecordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	record := models.NewFinanceRecord(
		models.FinanceRecordType(req.Type),
		req.Description,
		req.Amount,
		req.Category,
		req.InventoryItemID,
	)

	actor := actorFromContext(r.Context())
	created, err := s.financeService.CreateRecord(r.Context(), actor, record)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    created,
	})
}

// getFinanceRecordsHandler lists ledger entries
func (s *Server) getFinanceRecordsHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit, offset := paginationParams(r)

	records, err := s.financeService.ListRecords(r.Context(), actor, limit, offset)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    records,
	})
}

// getFinanceSummaryHandler aggregates the ledger into income, expense, and net profit
func (s *Server) getFinanceSummaryHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	summary, err := s.financeService.Summary(r.Context(), actor)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    summary,
	})
}
