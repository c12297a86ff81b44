package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/customer-authz/internal/adapter/pii"
	"github.com/V4T54L/customer-authz/internal/domain"
)

// maxBodySize bounds create and patch payloads.
const maxBodySize = 1 << 20

// CustomerService is the set of customer operations the handler exposes.
type CustomerService interface {
	AddCustomer(ctx context.Context, creds domain.Credentials, input domain.CustomerInput) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, creds domain.Credentials, id int64) (*domain.Customer, error)
	GetCustomerByName(ctx context.Context, creds domain.Credentials, name string) (*domain.Customer, error)
	GetCustomerByProjectID(ctx context.Context, creds domain.Credentials, projectID int64) (*domain.Customer, error)
	GetAllCustomers(ctx context.Context, creds domain.Credentials, filter domain.CustomerFilter) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, creds domain.Credentials, id int64, patch domain.CustomerPatch) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, creds domain.Credentials, name string) error
	DeleteAllCustomers(ctx context.Context, creds domain.Credentials) error
	Resync(ctx context.Context, creds domain.Credentials) (domain.TenantAccessMapping, error)
}

// CustomerHandler handles HTTP requests for customer management.
type CustomerHandler struct {
	svc      CustomerService
	redactor *pii.Redactor
	logger   *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler. redactor may be nil.
func NewCustomerHandler(svc CustomerService, redactor *pii.Redactor, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{svc: svc, redactor: redactor, logger: logger}
}

type errorResponse struct {
	Error    string           `json:"error"`
	Kind     string           `json:"kind"`
	Customer *domain.Customer `json:"customer,omitempty"`
}

// HealthCheck is a simple health check endpoint.
func (h *CustomerHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCustomers handles GET /customers?createdAfter=RFC3339.
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	creds := h.credentials(r)

	var filter domain.CustomerFilter
	if raw := r.URL.Query().Get("createdAfter"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondWithError(w, domain.Errorf(domain.KindValidation, "customer.list", "createdAfter must be RFC3339: %v", err), nil)
			return
		}
		filter.CreatedAfter = &ts
	}

	customers, err := h.svc.GetAllCustomers(r.Context(), creds, filter)
	if err != nil {
		h.respondWithError(w, err, nil)
		return
	}
	if h.redactor != nil {
		h.redactor.RedactAll(creds, customers)
	}
	h.respondWithJSON(w, http.StatusOK, customers)
}

// GetCustomer handles GET /customers/{id}.
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "customer.get_by_id")
	if !ok {
		return
	}
	creds := h.credentials(r)
	c, err := h.svc.GetCustomerByID(r.Context(), creds, id)
	h.respondWithCustomer(w, creds, http.StatusOK, c, err)
}

// GetCustomerByName handles GET /customers/by-name/{name}.
func (h *CustomerHandler) GetCustomerByName(w http.ResponseWriter, r *http.Request) {
	creds := h.credentials(r)
	c, err := h.svc.GetCustomerByName(r.Context(), creds, chi.URLParam(r, "name"))
	h.respondWithCustomer(w, creds, http.StatusOK, c, err)
}

// GetProjectCustomer handles GET /projects/{id}/customer.
func (h *CustomerHandler) GetProjectCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "customer.get_by_project")
	if !ok {
		return
	}
	creds := h.credentials(r)
	c, err := h.svc.GetCustomerByProjectID(r.Context(), creds, id)
	h.respondWithCustomer(w, creds, http.StatusOK, c, err)
}

// CreateCustomer handles POST /customers.
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var input domain.CustomerInput
	if !h.decode(w, r, &input, "customer.create") {
		return
	}
	creds := h.credentials(r)
	c, err := h.svc.AddCustomer(r.Context(), creds, input)
	h.respondWithCustomer(w, creds, http.StatusCreated, c, err)
}

// UpdateCustomer handles PATCH /customers/{id}.
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "customer.update")
	if !ok {
		return
	}
	var patch domain.CustomerPatch
	if !h.decode(w, r, &patch, "customer.update") {
		return
	}
	creds := h.credentials(r)
	c, err := h.svc.UpdateCustomer(r.Context(), creds, id, patch)
	h.respondWithCustomer(w, creds, http.StatusOK, c, err)
}

// DeleteCustomer handles DELETE /customers/by-name/{name}.
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomer(r.Context(), h.credentials(r), chi.URLParam(r, "name")); err != nil {
		h.respondWithError(w, err, nil)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// DeleteAllCustomers handles DELETE /customers.
func (h *CustomerHandler) DeleteAllCustomers(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAllCustomers(r.Context(), h.credentials(r)); err != nil {
		h.respondWithError(w, err, nil)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Resync handles POST /admin/resync.
func (h *CustomerHandler) Resync(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.svc.Resync(r.Context(), h.credentials(r))
	if err != nil {
		h.respondWithError(w, err, nil)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"tenants": mapping})
}

// credentials returns the caller identity placed by the auth middleware. A
// request that bypassed it gets the zero value, which is a non-admin with
// no permissions.
func (h *CustomerHandler) credentials(r *http.Request) domain.Credentials {
	creds, _ := domain.CredentialsFrom(r.Context())
	return creds
}

func (h *CustomerHandler) pathID(w http.ResponseWriter, r *http.Request, param, op string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.respondWithError(w, domain.Errorf(domain.KindValidation, op, "invalid %s %q", param, chi.URLParam(r, param)), nil)
		return 0, false
	}
	return id, true
}

func (h *CustomerHandler) decode(w http.ResponseWriter, r *http.Request, dst any, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return false
		}
		h.respondWithError(w, domain.Errorf(domain.KindValidation, op, "invalid request body: %v", err), nil)
		return false
	}
	return true
}

func (h *CustomerHandler) respondWithCustomer(w http.ResponseWriter, creds domain.Credentials, code int, c *domain.Customer, err error) {
	if err != nil {
		h.respondWithError(w, err, c)
		return
	}
	if h.redactor != nil {
		h.redactor.Redact(creds, c)
	}
	h.respondWithJSON(w, code, c)
}

// respondWithError maps an error kind onto a status code. A sync failure
// after a committed write is a 502 carrying the committed row.
func (h *CustomerHandler) respondWithError(w http.ResponseWriter, err error, committed *domain.Customer) {
	kind := domain.KindOf(err)
	resp := errorResponse{Error: err.Error(), Kind: kind.String()}

	code := http.StatusInternalServerError
	switch kind {
	case domain.KindAuthorization:
		code = http.StatusForbidden
	case domain.KindValidation:
		code = http.StatusBadRequest
	case domain.KindNotFound:
		code = http.StatusNotFound
	case domain.KindConflict:
		code = http.StatusConflict
	case domain.KindSync:
		code = http.StatusBadGateway
		resp.Customer = committed
	}

	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "kind", kind.String(), "error", err)
		if kind != domain.KindSync {
			resp.Error = "internal server error"
		}
	}
	h.respondWithJSON(w, code, resp)
}

func (h *CustomerHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
