package tenauth

// Canonical role names seeded into every new organization.
const (
	RoleOwner      = "Owner"
	RoleAdmin      = "Admin"
	RoleManager    = "Manager"
	RoleAccountant = "Accountant"
	RoleStaff      = "Staff"
	RoleViewer     = "Viewer"
)

// RoleSeed describes one role created when an organization is provisioned.
type RoleSeed struct {
	Name        string
	Rank        int
	Permissions []string
}

var allPermissionCodes = []string{
	"products.view", "products.create", "products.update", "products.delete",
	"inventory.view", "inventory.update",
	"invoices.view", "invoices.create", "invoices.update", "invoices.delete", "invoices.approve",
	"payments.view", "payments.create",
	"reports.view", "reports.export",
	"users.view", "users.invite", "users.manage",
	"settings.view", "settings.manage",
}

// PermissionCodes returns every permission code the seed roles reference.
func PermissionCodes() []string {
	out := make([]string, len(allPermissionCodes))
	copy(out, allPermissionCodes)
	return out
}

// DefaultRoles returns the six roles seeded into a new organization, ordered
// by descending rank. Owner and Admin carry every permission.
func DefaultRoles() []RoleSeed {
	return []RoleSeed{
		{Name: RoleOwner, Rank: 100, Permissions: PermissionCodes()},
		{Name: RoleAdmin, Rank: 90, Permissions: PermissionCodes()},
		{Name: RoleManager, Rank: 70, Permissions: []string{
			"products.view", "products.create", "products.update",
			"inventory.view", "inventory.update",
			"invoices.view", "invoices.create", "invoices.update", "invoices.approve",
			"payments.view", "payments.create",
			"reports.view", "reports.export",
			"users.view",
			"settings.view",
		}},
		{Name: RoleAccountant, Rank: 60, Permissions: []string{
			"products.view",
			"inventory.view",
			"invoices.view", "invoices.create", "invoices.update", "invoices.delete",
			"payments.view", "payments.create",
			"reports.view", "reports.export",
			"settings.view",
		}},
		{Name: RoleStaff, Rank: 40, Permissions: []string{
			"products.view", "products.create",
			"inventory.view", "inventory.update",
			"invoices.view", "invoices.create", "invoices.update",
			"payments.view",
			"reports.view",
		}},
		{Name: RoleViewer, Rank: 10, Permissions: []string{
			"products.view",
			"inventory.view",
			"invoices.view",
			"payments.view",
			"reports.view",
		}},
	}
}
