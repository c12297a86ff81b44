package domain

import (
	"strings"
	"time"
)

// Customer is a tenant of the platform. Name doubles as the tenant key in the
// authorization index, so it is unique across all customers.
type Customer struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Comment    *string   `json:"comment"`
	PrivateKey *string   `json:"privateKey,omitempty"`
	Created    time.Time `json:"created"`
}

// CustomerInput carries the fields accepted when creating a customer.
// An ID of zero lets the store assign one.
type CustomerInput struct {
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name"`
	Comment    *string `json:"comment,omitempty"`
	PrivateKey *string `json:"privateKey,omitempty"`
}

// Validate checks the semantic constraints of a create request.
func (in CustomerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Errorf(KindValidation, "customer.create", "name is required")
	}
	if in.ID < 0 {
		return Errorf(KindValidation, "customer.create", "id must not be negative")
	}
	return nil
}

// CustomerPatch is a partial update. Nil fields are left untouched.
type CustomerPatch struct {
	Name       *string `json:"name,omitempty"`
	Comment    *string `json:"comment,omitempty"`
	PrivateKey *string `json:"privateKey,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CustomerPatch) IsEmpty() bool {
	return p.Name == nil && p.Comment == nil && p.PrivateKey == nil
}

// RenamesTenant reports whether applying the patch changes the tenant key.
func (p CustomerPatch) RenamesTenant() bool {
	return p.Name != nil
}

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	CreatedAfter *time.Time
}
