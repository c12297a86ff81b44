package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/customer-authz/internal/adapter/api/handler"
	"github.com/V4T54L/customer-authz/internal/adapter/api/middleware"
)

// NewRouter creates and configures the HTTP router for the customer service.
// Every route except /health requires a bearer token.
func NewRouter(
	jwtSecret string,
	requestTimeout time.Duration,
	customerHandler *handler.CustomerHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	if requestTimeout > 0 {
		r.Use(chimw.Timeout(requestTimeout))
	}

	r.Get("/health", customerHandler.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtSecret, logger))

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", customerHandler.ListCustomers)
			r.Post("/", customerHandler.CreateCustomer)
			r.Delete("/", customerHandler.DeleteAllCustomers)
			r.Get("/by-name/{name}", customerHandler.GetCustomerByName)
			r.Delete("/by-name/{name}", customerHandler.DeleteCustomer)
			r.Get("/{id}", customerHandler.GetCustomer)
			r.Patch("/{id}", customerHandler.UpdateCustomer)
		})
		r.Get("/projects/{id}/customer", customerHandler.GetProjectCustomer)
		r.Post("/admin/resync", customerHandler.Resync)
	})

	return r
}
