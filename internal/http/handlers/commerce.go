package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/http/respond"
	"github.com/hongminglow/ekonzims-be/internal/middleware"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/service"
)

// CommerceHandler serves the catalog plus orders and bookings.
type CommerceHandler struct {
	commerce    *service.CommerceService
	requireUser func(http.Handler) http.Handler
	logger      *zap.Logger
}

func NewCommerceHandler(commerce *service.CommerceService, requireUser func(http.Handler) http.Handler, logger *zap.Logger) *CommerceHandler {
	return &CommerceHandler{commerce: commerce, requireUser: requireUser, logger: logger}
}

// Routes mounts /products, /orders and /services on r.
func (h *CommerceHandler) Routes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", listProducts)
		r.With(h.requireUser).Post("/order", h.handlePlaceOrder)
		r.Get("/{id}", getProduct)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/", h.handleListOrders)
		r.Get("/{id}", h.handleGetOrder)
	})
	r.Route("/services", func(r chi.Router) {
		r.Get("/", listServices)
		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/booking", h.handleBook)
			r.Get("/user/bookings", h.handleListBookings)
			r.Get("/bookings/{id}", h.handleGetBooking)
		})
		r.Get("/{id}", getService)
	})
}

func caller(r *http.Request) models.User {
	user, _ := middleware.UserFrom(r.Context())
	return user
}

func (h *CommerceHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.OrderRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	order, err := h.commerce.PlaceOrder(r.Context(), caller(r), req)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "order placed", order)
}

func (h *CommerceHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.commerce.ListMyOrders(r.Context(), caller(r))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", orders)
}

func (h *CommerceHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.commerce.GetOrder(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", order)
}

func (h *CommerceHandler) handleBook(w http.ResponseWriter, r *http.Request) {
	var req dto.BookingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	booking, err := h.commerce.BookService(r.Context(), caller(r), req)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "booking confirmed", booking)
}

func (h *CommerceHandler) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.commerce.ListMyBookings(r.Context(), caller(r))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", bookings)
}

func (h *CommerceHandler) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.commerce.GetBooking(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", booking)
}
