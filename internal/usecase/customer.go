package usecase

import (
	"context"
	"log/slog"

	"github.com/V4T54L/customer-authz/internal/adapter/metrics"
	"github.com/V4T54L/customer-authz/internal/domain"
)

// Resyncer republishes the tenant mapping.
type Resyncer interface {
	Resync(ctx context.Context) (domain.TenantAccessMapping, error)
}

// CustomerUseCase sequences policy evaluation, the repository call and the
// index resync for every customer operation.
//
// Mutations that commit but fail to resync return their result together with
// a KindSync error: the store changed, the index may be stale.
type CustomerUseCase struct {
	repo    domain.CustomerRepository
	policy  *AccessPolicy
	sync    Resyncer
	logger  *slog.Logger
	metrics *metrics.AuthzMetrics
}

// NewCustomerUseCase creates a new CustomerUseCase. m may be nil.
func NewCustomerUseCase(
	repo domain.CustomerRepository,
	policy *AccessPolicy,
	sync Resyncer,
	logger *slog.Logger,
	m *metrics.AuthzMetrics,
) *CustomerUseCase {
	return &CustomerUseCase{
		repo:    repo,
		policy:  policy,
		sync:    sync,
		logger:  logger,
		metrics: m,
	}
}

// AddCustomer creates a customer and resyncs the index.
func (uc *CustomerUseCase) AddCustomer(ctx context.Context, creds domain.Credentials, input domain.CustomerInput) (c *domain.Customer, err error) {
	const op = "customer.create"
	defer func() { uc.observe(op, err) }()

	if err := uc.policy.AuthorizeMutation(op, creds); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	c, err = uc.repo.Create(ctx, input)
	if err != nil {
		uc.logger.Error("failed to create customer", "name", input.Name, "error", err)
		return nil, err
	}
	uc.logger.Info("customer created", "id", c.ID, "name", c.Name)

	if err := uc.resync(ctx, op); err != nil {
		return c, err
	}
	return c, nil
}

// GetCustomerByID returns a customer visible to the caller.
func (uc *CustomerUseCase) GetCustomerByID(ctx context.Context, creds domain.Credentials, id int64) (c *domain.Customer, err error) {
	defer func() { uc.observe("customer.get_by_id", err) }()
	return uc.repo.GetByID(ctx, id, uc.policy.ReadScope(creds))
}

// GetCustomerByName returns a customer visible to the caller.
func (uc *CustomerUseCase) GetCustomerByName(ctx context.Context, creds domain.Credentials, name string) (c *domain.Customer, err error) {
	defer func() { uc.observe("customer.get_by_name", err) }()
	return uc.repo.GetByName(ctx, name, uc.policy.ReadScope(creds))
}

// GetCustomerByProjectID returns the customer owning a project, if the caller
// can see either of them.
func (uc *CustomerUseCase) GetCustomerByProjectID(ctx context.Context, creds domain.Credentials, projectID int64) (c *domain.Customer, err error) {
	defer func() { uc.observe("customer.get_by_project", err) }()
	return uc.repo.GetByProjectID(ctx, projectID, uc.policy.ProjectReadScope(creds))
}

// GetAllCustomers lists the customers visible to the caller.
func (uc *CustomerUseCase) GetAllCustomers(ctx context.Context, creds domain.Credentials, filter domain.CustomerFilter) (cs []domain.Customer, err error) {
	defer func() { uc.observe("customer.list", err) }()
	return uc.repo.List(ctx, filter, uc.policy.ReadScope(creds))
}

// UpdateCustomer applies a partial patch. Only a rename touches the tenant
// key, so only a rename resyncs.
func (uc *CustomerUseCase) UpdateCustomer(ctx context.Context, creds domain.Credentials, id int64, patch domain.CustomerPatch) (c *domain.Customer, err error) {
	const op = "customer.update"
	defer func() { uc.observe(op, err) }()

	if err := uc.policy.AuthorizeMutation(op, creds); err != nil {
		return nil, err
	}
	if err := uc.policy.ValidatePatch(patch); err != nil {
		return nil, err
	}

	c, err = uc.repo.Update(ctx, id, patch)
	if err != nil {
		uc.logger.Error("failed to update customer", "id", id, "error", err)
		return nil, err
	}

	if patch.RenamesTenant() {
		if err := uc.resync(ctx, op); err != nil {
			return c, err
		}
	}
	return c, nil
}

// DeleteCustomer removes a customer by name and resyncs the index. Deleting
// an unknown name is KindNotFound and does not resync.
func (uc *CustomerUseCase) DeleteCustomer(ctx context.Context, creds domain.Credentials, name string) (err error) {
	const op = "customer.delete"
	defer func() { uc.observe(op, err) }()

	if err := uc.policy.AuthorizeMutation(op, creds); err != nil {
		return err
	}
	if err := uc.repo.DeleteByName(ctx, name); err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			uc.logger.Error("failed to delete customer", "name", name, "error", err)
		}
		return err
	}
	uc.logger.Info("customer deleted", "name", name)

	return uc.resync(ctx, op)
}

// DeleteAllCustomers removes every customer and resyncs the index.
func (uc *CustomerUseCase) DeleteAllCustomers(ctx context.Context, creds domain.Credentials) (err error) {
	const op = "customer.delete_all"
	defer func() { uc.observe(op, err) }()

	if err := uc.policy.AuthorizeMutation(op, creds); err != nil {
		return err
	}
	if err := uc.repo.DeleteAll(ctx); err != nil {
		uc.logger.Error("failed to delete all customers", "error", err)
		return err
	}
	uc.logger.Warn("all customers deleted")

	return uc.resync(ctx, op)
}

// Resync lets an admin republish the mapping after a failed sync.
func (uc *CustomerUseCase) Resync(ctx context.Context, creds domain.Credentials) (m domain.TenantAccessMapping, err error) {
	const op = "tenant.resync"
	defer func() { uc.observe(op, err) }()

	if err := uc.policy.AuthorizeMutation(op, creds); err != nil {
		return nil, err
	}
	return uc.sync.Resync(ctx)
}

// resync runs after a committed mutation, so any failure, including one
// reading the names back, means the index may be stale and is KindSync.
func (uc *CustomerUseCase) resync(ctx context.Context, op string) error {
	if _, err := uc.sync.Resync(ctx); err != nil {
		uc.logger.Error("mutation committed but tenant resync failed", "op", op, "error", err)
		if domain.KindOf(err) == domain.KindSync {
			return err
		}
		return domain.E(domain.KindSync, op, err)
	}
	return nil
}

func (uc *CustomerUseCase) observe(op string, err error) {
	if uc.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	uc.metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
}
