package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/farmgate/agromarket-api/internal/models"
)

type createInventoryItemRequest struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Quantity       int     `json:"quantity"`
	Unit           string  `json:"unit"`
	UnitPrice      float64 `json:"unit_price"`
	ReorderLevel   int     `json:"reorder_level"`
	HarvestBatchID *string `json:"harvest_batch_id,omitempty"`
}

type adjustQuantityRequest struct {
	Delta         int     `json:"delta"`
	Reason        string  `json:"reason"`
	UnitValuation float64 `json:"unit_valuation"`
}

// createInventoryItemHandler registers a new inventory item
func (s *Server) createInventoryItemHandler(w http.ResponseWriter, r *http.Request) {
	var req createInventoryItemRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	item := models.NewInventoryItem(req.Name, req.Category, req.Quantity, req.Unit, req.UnitPrice, req.ReorderLevel)
	item.HarvestBatchID = req.HarvestBatchID

	actor := actorFromContext(r.Context())
	created, err := s.inventoryService.CreateItem(r.Context(), actor, item)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    created,
	})
}

// getInventoryHandler lists inventory items
func (s *Server) getInventoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	items, err := s.inventoryService.ListItems(r.Context(), limit, offset)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    items,
	})
}

// getInventoryItemHandler returns one inventory item
func (s *Server) getInventoryItemHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := s.inventoryService.GetItem(r.Context(), id)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    item,
	})
}

// adjustInventoryHandler applies a signed quantity delta with a reason
func (s *Server) adjustInventoryHandler(w http.ResponseWriter, r *http.Request) {
	var req adjustQuantityRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	id := mux.Vars(r)["id"]

	item, err := s.inventoryService.AdjustQuantity(r.Context(), actor, id, req.Delta, req.Reason, req.UnitValuation)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    item,
	})
}
