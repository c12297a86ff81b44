package usecase

import (
	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/sqlfilter"
)

// Columns and subqueries the policy is allowed to reference.
const (
	colCustomerID       sqlfilter.Column = "customer.id"
	colJoinedCustomerID sqlfilter.Column = "c.id"
	colJoinedProjectID  sqlfilter.Column = "p.id"
	colProjectID        sqlfilter.Column = "project.id"

	projectOwnersSubquery = "SELECT project.customer FROM project"
)

// AccessPolicy decides whether a caller may run an operation and which rows
// it may see. It is stateless and never touches the store.
type AccessPolicy struct{}

// NewAccessPolicy creates an AccessPolicy.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// AuthorizeMutation allows op only for admins.
func (p *AccessPolicy) AuthorizeMutation(op string, creds domain.Credentials) error {
	if !creds.Role.IsAdmin() {
		return domain.Errorf(domain.KindAuthorization, op, "role %q may not modify customers", creds.Role)
	}
	return nil
}

// ReadScope filters the customer table. A non-admin sees a customer that is
// listed directly or that owns one of the caller's projects.
func (p *AccessPolicy) ReadScope(creds domain.Credentials) sqlfilter.Clause {
	perms := creds.Permissions
	return sqlfilter.FilterUnlessAdmin(creds.Role, sqlfilter.Or(
		sqlfilter.Membership(colCustomerID, perms.Customers),
		sqlfilter.InSubquery(colCustomerID, projectOwnersSubquery,
			sqlfilter.Membership(colProjectID, perms.Projects)),
	))
}

// ProjectReadScope filters a project p joined to its customer c.
func (p *AccessPolicy) ProjectReadScope(creds domain.Credentials) sqlfilter.Clause {
	perms := creds.Permissions
	return sqlfilter.FilterUnlessAdmin(creds.Role, sqlfilter.AnyOf(
		sqlfilter.MemberSet{Column: colJoinedCustomerID, IDs: perms.Customers},
		sqlfilter.MemberSet{Column: colJoinedProjectID, IDs: perms.Projects},
	))
}

// ValidatePatch rejects a patch that would change nothing.
func (p *AccessPolicy) ValidatePatch(patch domain.CustomerPatch) error {
	if patch.IsEmpty() {
		return domain.Errorf(domain.KindValidation, "customer.update", "patch requires at least 1 attribute")
	}
	if patch.Name != nil && *patch.Name == "" {
		return domain.Errorf(domain.KindValidation, "customer.update", "name must not be empty")
	}
	return nil
}
