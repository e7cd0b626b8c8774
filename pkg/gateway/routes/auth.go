package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
	gatewayauth "github.com/mediscanner/api/pkg/gateway/auth"
	"github.com/mediscanner/api/pkg/gateway/response"
	"github.com/mediscanner/api/pkg/identity"
)

// Accounts is the subset of *identity.Service the auth routes use.
type Accounts interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	StartSession(ctx context.Context, userID uuid.UUID, tokenID string, expiresAt time.Time, clientInfo map[string]interface{}) (models.Session, error)
	Logout(ctx context.Context, tokenID string) error
}

type AuthHandler struct {
	service      Accounts
	tokenSigner  *gatewayauth.JWTManager
	authenticate mux.MiddlewareFunc
}

func NewAuthHandler(service Accounts, tokenSigner *gatewayauth.JWTManager, authenticate mux.MiddlewareFunc) *AuthHandler {
	return &AuthHandler{service: service, tokenSigner: tokenSigner, authenticate: authenticate}
}

func (h *AuthHandler) Register(router *mux.Router) {
	r := router.PathPrefix("/auth").Subrouter()
	r.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(h.authenticate)
	protected.HandleFunc("/logout", h.handleLogout).Methods(http.MethodPost)
	protected.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	switch {
	case err == nil:
	case identity.IsValidationError(err):
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		response.Error(w, http.StatusBadRequest, "User with this email already exists", nil)
		return
	case errors.Is(err, identity.ErrMobileAlreadyExists):
		response.Error(w, http.StatusBadRequest, "User with this mobile number already exists", nil)
		return
	default:
		logger.FromContext(r.Context()).WithError(err).Error("failed to register user")
		response.Error(w, http.StatusInternalServerError, "Error creating user", nil)
		return
	}

	response.Success(w, http.StatusCreated, "User created successfully", user)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			logger.FromContext(r.Context()).Info("authentication failed")
			response.Error(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		logger.FromContext(r.Context()).WithError(err).Error("authentication lookup failed")
		response.Error(w, http.StatusInternalServerError, "Error during login", nil)
		return
	}

	token, claims, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("failed issuing token")
		response.Error(w, http.StatusInternalServerError, "Error during login", nil)
		return
	}

	clientInfo := map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
	}
	if _, err := h.service.StartSession(r.Context(), user.ID, claims.ID, claims.ExpiresAt.Time, clientInfo); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("failed to record session")
		response.Error(w, http.StatusInternalServerError, "Error during login", nil)
		return
	}

	response.Success(w, http.StatusOK, "Login successful", models.LoginResponse{
		User:    user,
		Token:   token,
		Message: "Login successful",
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewayauth.IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), id.TokenID); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("failed to end session")
		response.Error(w, http.StatusInternalServerError, "Error during logout", nil)
		return
	}
	response.Success(w, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := gatewayauth.IdentityFromContext(r.Context())

	user, err := h.service.GetUser(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			response.Error(w, http.StatusNotFound, "User not found", nil)
			return
		}
		logger.FromContext(r.Context()).WithError(err).Warn("failed to fetch user in /me")
		response.Error(w, http.StatusInternalServerError, "Error fetching user", nil)
		return
	}

	response.Success(w, http.StatusOK, "User retrieved", user)
}
