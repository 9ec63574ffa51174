package catalog

import "sync"

// Built-in role types.
const (
	SuperAdmin   = "super_admin"
	TenantAdmin  = "tenant_admin"
	CompanyAdmin = "company_admin"
	HRManager    = "hr_manager"
	Manager      = "manager"
	Accountant   = "accountant"
	Auditor      = "auditor"
	Employee     = "employee"
	Guest        = "guest"
)

var (
	builtinOnce sync.Once
	builtin     *Catalog
)

// Builtin returns the process-wide default business hierarchy.
func Builtin() *Catalog {
	builtinOnce.Do(func() {
		builtin = MustNew(BuiltinDefinitions())
	})
	return builtin
}

// BuiltinDefinitions returns a fresh copy of the definitions behind Builtin.
func BuiltinDefinitions() []RoleDefinition {
	profile := []string{"profile:read", "profile:update"}

	return []RoleDefinition{
		{
			RoleType:    SuperAdmin,
			Level:       0,
			DisplayName: "Super Administrator",
			Description: "Platform operator with every permission.",
			AssignableTargets: []string{
				TenantAdmin, CompanyAdmin, HRManager, Manager, Accountant, Auditor, Employee, Guest,
			},
			GrantsAll: true,
		},
		{
			RoleType:       TenantAdmin,
			Level:          1,
			ParentRoleType: SuperAdmin,
			DisplayName:    "Tenant Administrator",
			Description:    "Owns a tenant and everything inside it.",
			AssignableTargets: []string{
				CompanyAdmin, HRManager, Manager, Accountant, Auditor, Employee, Guest,
			},
			Permissions: append([]string{
				"tenant:read", "tenant:update", "tenant:manage_billing",
				"company:create", "company:read", "company:update", "company:delete",
				"user:create", "user:read", "user:update", "user:deactivate",
				"role:read", "role:assign", "role:create_custom", "role:update_hierarchy",
				"permission:read", "permission:grant",
				"employee:create", "employee:read", "employee:update",
				"report:read", "report:export",
				"audit:read",
			}, profile...),
		},
		{
			RoleType:       CompanyAdmin,
			Level:          2,
			ParentRoleType: TenantAdmin,
			DisplayName:    "Company Administrator",
			Description:    "Administers a single company of the tenant.",
			AssignableTargets: []string{
				HRManager, Manager, Accountant, Auditor, Employee, Guest,
			},
			Permissions: append([]string{
				"company:read", "company:update",
				"user:create", "user:read", "user:update", "user:deactivate",
				"role:read", "role:assign", "role:create_custom",
				"permission:read", "permission:grant",
				"employee:create", "employee:read", "employee:update",
				"invoice:read", "timesheet:read",
				"report:read", "report:export",
			}, profile...),
		},
		{
			RoleType:          HRManager,
			Level:             3,
			ParentRoleType:    CompanyAdmin,
			DisplayName:       "HR Manager",
			Description:       "Runs people operations; may staff managers.",
			AssignableTargets: []string{Manager, Employee, Guest},
			Permissions: append([]string{
				"user:create", "user:read",
				"role:read", "role:assign",
				"permission:read",
				"employee:create", "employee:read", "employee:update",
				"payroll:read", "timesheet:read", "document:read",
			}, profile...),
		},
		{
			RoleType:          Manager,
			Level:             3,
			ParentRoleType:    CompanyAdmin,
			DisplayName:       "Manager",
			Description:       "Leads a team of employees.",
			AssignableTargets: []string{Employee, Guest},
			Permissions: append([]string{
				"role:read", "role:assign",
				"employee:read",
				"timesheet:read", "timesheet:approve",
				"report:read", "document:read",
			}, profile...),
		},
		{
			RoleType:       Accountant,
			Level:          3,
			ParentRoleType: CompanyAdmin,
			DisplayName:    "Accountant",
			Description:    "Handles invoicing and payroll.",
			Permissions: append([]string{
				"invoice:create", "invoice:read", "invoice:approve",
				"payroll:read", "payroll:run",
				"report:read", "report:export", "document:read",
			}, profile...),
		},
		{
			RoleType:       Auditor,
			Level:          3,
			ParentRoleType: CompanyAdmin,
			DisplayName:    "Auditor",
			Description:    "Read-only access to financial and audit records.",
			Permissions: append([]string{
				"audit:read", "invoice:read", "payroll:read", "report:read",
			}, profile...),
		},
		{
			RoleType:       Employee,
			Level:          4,
			ParentRoleType: Manager,
			DisplayName:    "Employee",
			Permissions: append([]string{
				"timesheet:submit", "timesheet:read", "document:read",
			}, profile...),
		},
		{
			RoleType:       Guest,
			Level:          5,
			ParentRoleType: Employee,
			DisplayName:    "Guest",
			Description:    "External collaborator with minimal access.",
			Permissions:    []string{"profile:read", "document:read"},
		},
	}
}
