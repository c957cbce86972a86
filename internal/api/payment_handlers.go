package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/farmgate/agromarket-api/internal/models"
)

type processPaymentRequest struct {
	OrderID         string `json:"order_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

// processPaymentHandler initiates payment for an order. The transaction is
// created in processing and settles asynchronously after the settlement delay.
func (s *Server) processPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.OrderID == "" || req.PaymentMethodID == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_id and payment_method_id are required")
		return
	}

	actor := actorFromContext(r.Context())
	txn, err := s.paymentService.ProcessPayment(r.Context(), actor, req.OrderID, req.PaymentMethodID)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, ApiResponse{
		Success: true,
		Data:    txn,
	})
}

// getPaymentsHandler lists transactions; all of them for privileged roles,
// the caller's own otherwise
func (s *Server) getPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit, offset := paginationParams(r)

	txns, err := s.paymentService.ListTransactions(r.Context(), actor, limit, offset)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    txns,
	})
}

// getPaymentByIDHandler returns one transaction, enforcing ownership
func (s *Server) getPaymentByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	id := mux.Vars(r)["id"]

	txn, err := s.paymentService.GetTransaction(r.Context(), actor, id)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    txn,
	})
}

type addPaymentMethodRequest struct {
	models.CardInput
}

// addPaymentMethodHandler stores a new card for the caller
func (s *Server) addPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	var req addPaymentMethodRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	method, err := s.paymentMethodService.AddMethod(r.Context(), actor, req.CardInput)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    method,
	})
}

// getPaymentMethodsHandler lists the caller's active cards, masked
func (s *Server) getPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	methods, err := s.paymentMethodService.ListMethods(r.Context(), actor)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    methods,
	})
}

// setDefaultPaymentMethodHandler marks one card as the caller's default
func (s *Server) setDefaultPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := s.paymentMethodService.SetDefault(r.Context(), actor, id); err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
	})
}

// deletePaymentMethodHandler soft deletes a card
func (s *Server) deletePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := s.paymentMethodService.Remove(r.Context(), actor, id); err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
	})
}
