package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/service"
)

type createOrderRequest struct {
	Items []service.OrderLineInput `json:"items"`
	Notes string                   `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type addItemsRequest struct {
	Items []service.OrderLineInput `json:"items"`
}

type updateItemQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type assignDeliveryRequest struct {
	Assignee string `json:"assignee"`
}

// createOrderHandler creates a new pending order for the caller
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	order, err := s.orderService.CreateOrder(r.Context(), actor, req.Items, req.Notes)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getOrdersHandler lists all orders; finance and factory roles only
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit, offset := paginationParams(r)

	orders, err := s.orderService.ListOrders(r.Context(), actor, limit, offset)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getMyOrdersHandler lists the caller's own orders
func (s *Server) getMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit, offset := paginationParams(r)

	orders, err := s.orderService.ListMyOrders(r.Context(), actor, limit, offset)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getOrderByIDHandler returns one order, enforcing ownership for plain users
func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	orderID := mux.Vars(r)["id"]

	order, err := s.orderService.GetOrder(r.Context(), actor, orderID)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// updateOrderStatusHandler moves an order along its status state machine
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	orderID := mux.Vars(r)["id"]

	result, err := s.orderService.UpdateStatus(r.Context(), actor, orderID, models.OrderStatus(req.Status))

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}

// addOrderItemsHandler appends fulfillment-added line items to an order
func (s *Server) addOrderItemsHandler(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	orderID := mux.Vars(r)["id"]

	order, err := s.orderService.AddItems(r.Context(), actor, orderID, req.Items)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// updateOrderItemHandler changes one line item's quantity
func (s *Server) updateOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	var req updateItemQuantityRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	vars := mux.Vars(r)

	itemRowID, err := strconv.ParseInt(vars["itemId"], 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	order, err := s.orderService.UpdateItemQuantity(r.Context(), actor, vars["id"], itemRowID, req.Quantity)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// deleteOrderItemHandler removes one line item from an order
func (s *Server) deleteOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	vars := mux.Vars(r)

	itemRowID, err := strconv.ParseInt(vars["itemId"], 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	order, err := s.orderService.DeleteItem(r.Context(), actor, vars["id"], itemRowID)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// assignDeliveryHandler assigns a delivery person to an order
func (s *Server) assignDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	var req assignDeliveryRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	actor := actorFromContext(r.Context())
	orderID := mux.Vars(r)["id"]

	order, err := s.orderService.AssignDelivery(r.Context(), actor, orderID, req.Assignee)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// unassignDeliveryHandler clears the delivery assignment on an order
func (s *Server) unassignDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	orderID := mux.Vars(r)["id"]

	order, err := s.orderService.UnassignDelivery(r.Context(), actor, orderID)

	if err != nil {
		s.respondWithServiceError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}
