package pii

import (
	"log/slog"

	"github.com/V4T54L/customer-authz/internal/domain"
)

const (
	FieldPrivateKey = "privateKey"
	FieldComment    = "comment"
)

// Redactor removes sensitive customer fields before they leave the service.
// Admins always see the full record.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given field names. Unknown names
// are logged and ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		switch field {
		case FieldPrivateKey, FieldComment:
			fieldSet[field] = struct{}{}
		default:
			logger.Warn("ignoring unknown redaction field", "field", field)
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact clears the configured fields of c in place unless creds is admin.
// It reports whether anything was removed.
func (r *Redactor) Redact(creds domain.Credentials, c *domain.Customer) bool {
	if c == nil || creds.Role.IsAdmin() {
		return false
	}

	redacted := false
	if _, ok := r.fieldsToRedact[FieldPrivateKey]; ok && c.PrivateKey != nil {
		c.PrivateKey = nil
		redacted = true
	}
	if _, ok := r.fieldsToRedact[FieldComment]; ok && c.Comment != nil {
		c.Comment = nil
		redacted = true
	}
	return redacted
}

// RedactAll applies Redact to every element of cs.
func (r *Redactor) RedactAll(creds domain.Credentials, cs []domain.Customer) {
	for i := range cs {
		r.Redact(creds, &cs[i])
	}
}
