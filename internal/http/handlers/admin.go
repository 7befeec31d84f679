package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/http/respond"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/service"
)

// AdminHandler serves /admin. Every route requires the admin role.
type AdminHandler struct {
	admin        *service.AdminService
	requireAdmin func(http.Handler) http.Handler
	logger       *zap.Logger
}

func NewAdminHandler(admin *service.AdminService, requireAdmin func(http.Handler) http.Handler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, requireAdmin: requireAdmin, logger: logger}
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Use(h.requireAdmin)
	r.Get("/stats", h.handleStats)
	r.Get("/users", h.handleUsers)
	r.Get("/orders", h.handleOrders)
	r.Get("/bookings", h.handleBookings)
	r.Post("/make-admin/{userId}", h.handlePromote)
	r.Delete("/delete-all-users", h.handleDeleteAll)
	r.Post("/send-newsletter", h.handleNewsletter)
	r.Post("/send-eco-reports", h.handleEcoReports)
	r.Post("/test-email", h.handleTestEmail)
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", stats)
}

func (h *AdminHandler) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", users)
}

func (h *AdminHandler) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.admin.ListOrders(r.Context())
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", orders)
}

func (h *AdminHandler) handleBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.admin.ListBookings(r.Context())
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", bookings)
}

func (h *AdminHandler) handlePromote(w http.ResponseWriter, r *http.Request) {
	user, err := h.admin.Promote(r.Context(), caller(r), chi.URLParam(r, "userId"))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user promoted to admin", dto.UserResponse{User: user})
}

func (h *AdminHandler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteAllUsers(r.Context(), caller(r)); err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "all users deleted", nil)
}

func (h *AdminHandler) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	var req dto.NewsletterRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	job, err := h.admin.SendNewsletter(r.Context(), req)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, "newsletter queued", job)
}

func (h *AdminHandler) handleEcoReports(w http.ResponseWriter, r *http.Request) {
	var req dto.EcoReportRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	job, err := h.admin.SendEcoReports(r.Context(), req.MonthYear)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, "eco reports queued", job)
}

func (h *AdminHandler) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.TestEmailRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	result, err := h.admin.SendTestEmail(r.Context(), req.Type, req.To)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "test email processed", result)
}
