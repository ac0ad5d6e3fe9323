package users

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roledash/roledash/internal/platform/httpx"
	"github.com/roledash/roledash/internal/rbac"
)

var phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{1,4}[)]?[-\s./0-9]*$`)

// Handler exposes the user directory as a JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// MountRoutes registers user routes. Writes live behind the user list, so
// each one also requires view_users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewUsers))
		r.Get("/", h.listUsers)
		r.Get("/cities", h.listCities)
		r.Get("/companies", h.listCompanies)
		r.Get("/stats", h.showStats)
		r.Get("/export", h.exportUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermViewUsers, rbac.PermAddUser))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermViewUsers, rbac.PermEditUser))
		r.Patch("/{id}", h.updateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermViewUsers, rbac.PermDeleteUser))
		r.Delete("/{id}", h.deleteUser)
		r.Post("/batch-delete", h.deleteUsers)
	})
}

type createRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"required,oneof=admin manager viewer"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	City      string `json:"city" validate:"max=100"`
	Company   string `json:"company" validate:"max=100"`
	Website   string `json:"website" validate:"omitempty,url"`
	Avatar    string `json:"avatar" validate:"omitempty,url"`
}

func (c createRequest) toNewUser() NewUser {
	return NewUser{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Role:      Role(c.Role),
		Status:    Status(c.Status),
		Phone:     c.Phone,
		City:      c.City,
		Company:   c.Company,
		Website:   c.Website,
		Avatar:    c.Avatar,
	}
}

type patchRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,min=2,max=50"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin manager viewer"`
	Status    *string `json:"status" validate:"omitempty,oneof=active inactive"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	Company   *string `json:"company" validate:"omitempty,max=100"`
	Website   *string `json:"website" validate:"omitempty,url"`
	Avatar    *string `json:"avatar" validate:"omitempty,url"`
}

func (p patchRequest) toPatch() Patch {
	patch := Patch{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		City:      p.City,
		Company:   p.Company,
		Website:   p.Website,
		Avatar:    p.Avatar,
	}
	if p.Role != nil {
		role := Role(*p.Role)
		patch.Role = &role
	}
	if p.Status != nil {
		status := Status(*p.Status)
		patch.Status = &status
	}
	return patch
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	opts, fieldErrs := parseQueryOptions(r)
	if len(fieldErrs) > 0 {
		httpx.ValidationProblem(w, fieldErrs)
		return
	}
	page, err := h.service.Query(r.Context(), opts)
	if err != nil {
		h.respondError(w, "query users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) listCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.service.Cities(r.Context())
	if err != nil {
		h.respondError(w, "list cities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cities)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.Companies(r.Context())
	if err != nil {
		h.respondError(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, companies)
}

func (h *Handler) showStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, "user stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) exportUsers(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if q := r.URL.Query(); q.Has("ids") {
		ids = splitIDs(q.Get("ids"))
	}
	export, err := h.service.Export(r.Context(), ids)
	if err != nil {
		h.respondError(w, "export users", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.Data))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}
	user, err := h.service.Create(r.Context(), req.toNewUser())
	if err != nil {
		h.respondError(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}
	user, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.respondError(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUsers(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}
	result, err := h.service.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		h.respondError(w, "delete users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) validate(v any) map[string]string {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"general": err.Error()}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		out[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "phone":
		return "must be a valid phone number"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrMutationFailed):
		h.logger.Warn(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Mutation Failed", err.Error())
	case errors.Is(err, ErrSourceUnavailable):
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Source Unavailable", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseQueryOptions(r *http.Request) (QueryOptions, map[string]string) {
	q := r.URL.Query()
	opts := QueryOptions{
		Search:  q.Get("search"),
		Role:    q.Get("role"),
		Status:  q.Get("status"),
		City:    q.Get("city"),
		Company: q.Get("company"),
	}
	errs := make(map[string]string)
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs["page"] = "must be a non-negative integer"
		}
		opts.Page = n
	}
	opts.PageSize = DefaultPageSize
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs["pageSize"] = "must be a positive integer"
		}
		opts.PageSize = n
	}
	if field := q.Get("sortBy"); field != "" {
		if !IsSortable(field) {
			errs["sortBy"] = "is not a sortable field"
		}
		order := SortOrder(q.Get("sortOrder"))
		switch order {
		case "":
			order = SortAsc
		case SortAsc, SortDesc:
		default:
			errs["sortOrder"] = "must be asc or desc"
		}
		opts.SortBy = &SortBy{Field: field, Order: order}
	}
	return opts, errs
}

func splitIDs(raw string) []string {
	ids := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
