package domain

import (
	"context"

	"github.com/V4T54L/customer-authz/internal/pkg/sqlfilter"
)

// CustomerRepository defines persistence for customers.
// Read methods take the row-filtering scope produced by the access policy;
// an empty scope means unrestricted.
type CustomerRepository interface {
	// Create inserts a customer and returns the stored row.
	Create(ctx context.Context, input CustomerInput) (*Customer, error)

	// GetByID returns the customer or a KindNotFound error.
	GetByID(ctx context.Context, id int64, scope sqlfilter.Clause) (*Customer, error)

	// GetByName returns the customer or a KindNotFound error.
	GetByName(ctx context.Context, name string, scope sqlfilter.Clause) (*Customer, error)

	// GetByProjectID returns the customer owning the project or a KindNotFound error.
	GetByProjectID(ctx context.Context, projectID int64, scope sqlfilter.Clause) (*Customer, error)

	// List returns all customers matching filter and scope, ordered by id.
	List(ctx context.Context, filter CustomerFilter, scope sqlfilter.Clause) ([]Customer, error)

	// Update applies the non-nil fields of patch and returns the re-read row.
	Update(ctx context.Context, id int64, patch CustomerPatch) (*Customer, error)

	// DeleteByName removes the customer; zero rows affected is KindNotFound.
	DeleteByName(ctx context.Context, name string) error

	// DeleteAll removes every customer.
	DeleteAll(ctx context.Context) error

	// Names returns the name of every customer.
	Names(ctx context.Context) ([]string, error)
}

// TenantIndex is the external authorization index.
type TenantIndex interface {
	// PutRole creates or fully replaces the named role object.
	PutRole(ctx context.Context, role string, doc RoleDocument) error
}

// SyncLocker serializes index resyncs. Lock blocks until the lock is held or
// ctx is done; the returned func releases it.
type SyncLocker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}
