package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roledash/roledash/internal/platform/httpx"
	"github.com/roledash/roledash/internal/rbac"
	"github.com/roledash/roledash/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.showSession)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Role string `json:"role" validate:"required,oneof=admin manager viewer"`
}

type sessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	Account       *Account `json:"account,omitempty"`
	Permissions   []string `json:"permissions"`
	Dashboard     string   `json:"dashboard,omitempty"`
	CSRFToken     string   `json:"csrfToken"`
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
	}
	resp := sessionResponse{Permissions: []string{}, CSRFToken: csrfToken}
	if sess.Authenticated() {
		account, err := h.service.Lookup(r.Context(), sess.User())
		if err != nil {
			h.logger.Warn("session bound to unknown account", slog.String("user_id", sess.User()), slog.Any("error", err))
		} else {
			resp.Authenticated = true
			resp.Account = account
			resp.Permissions = rbac.PermissionsFor(account.Role)
			resp.Dashboard = DashboardPath(account.Role)
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		errs := make(map[string]string)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[strings.ToLower(fieldErr.Field())] = "must be one of admin, manager, viewer"
			}
		}
		httpx.ValidationProblem(w, errs)
		return
	}

	account, err := h.service.Login(r.Context(), form.Role)
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"role": shared.UserSafeMessage(err)})
		return
	}
	h.sessionManager.Regenerate(sess)
	sess.SetUser(account.ID)
	sess.Set(shared.SessionRoleKey, account.Role)
	sess.Set(shared.SessionNameKey, account.Name)
	csrfToken, err := h.csrfManager.RotateToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("rotate csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.logger.Info("role selected", slog.String("user_id", account.ID), slog.String("role", account.Role))

	httpx.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Account:       account,
		Permissions:   rbac.PermissionsFor(account.Role),
		Dashboard:     DashboardPath(account.Role),
		CSRFToken:     csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
