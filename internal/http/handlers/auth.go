package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/http/respond"
	"github.com/hongminglow/ekonzims-be/internal/middleware"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/service"
)

// AuthHandler owns registration, sessions and the email token flows.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Routes attaches the auth endpoints to r.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Get("/check-email", h.handleCheckEmail)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/verify-email", h.handleVerifyEmail)
	r.Get("/verify-email/{token}", h.handleVerifyEmailLink)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)
	r.Get("/me", h.handleMe)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	out, err := h.auth.Register(r.Context(), req)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "User created successfully", out)
}

func (h *AuthHandler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	exists, err := h.auth.CheckEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.CheckEmailResponse{Exists: exists})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	out, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", out)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.verify(w, r, req.Token)
}

func (h *AuthHandler) handleVerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, chi.URLParam(r, "token"))
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, token string) {
	user, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "email verified", dto.UserResponse{User: user})
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	// Same answer whether or not the account exists.
	respond.JSON(w, http.StatusOK, "if an account exists for this email, a reset link has been sent", nil)
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	user, err := h.auth.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "password updated", dto.UserResponse{User: user})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), middleware.BearerToken(r))
	if err != nil {
		respond.Failure(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.UserResponse{User: user})
}
