package domain

// AccessLevel is the access a role has on a tenant in the authorization index.
type AccessLevel string

const (
	// AccessReadWrite is granted on every tenant.
	AccessReadWrite AccessLevel = "RW"

	// AdminTenant is the reserved tenant that always exists in the mapping.
	AdminTenant = "admin_tenant"

	// DefaultIndexRole is the role object rewritten on every resync.
	DefaultIndexRole = "lagoonadmin"
)

// TenantAccessMapping maps a tenant key (customer name) to an access level.
type TenantAccessMapping map[string]AccessLevel

// BuildTenantMapping derives the complete mapping from the current customer
// names. The result always contains AdminTenant.
func BuildTenantMapping(names []string) TenantAccessMapping {
	m := make(TenantAccessMapping, len(names)+1)
	m[AdminTenant] = AccessReadWrite
	for _, name := range names {
		m[name] = AccessReadWrite
	}
	return m
}

// RoleDocument is the body of a role object in the authorization index.
type RoleDocument struct {
	Cluster []string                       `json:"cluster"`
	Indices map[string]map[string][]string `json:"indices"`
	Tenants TenantAccessMapping            `json:"tenants"`
}

// NewAdminRoleDocument grants unlimited cluster and index capabilities plus
// read-write on every tenant in mapping.
func NewAdminRoleDocument(mapping TenantAccessMapping) RoleDocument {
	return RoleDocument{
		Cluster: []string{"UNLIMITED"},
		Indices: map[string]map[string][]string{
			"*": {"*": {"UNLIMITED"}},
		},
		Tenants: mapping,
	}
}
