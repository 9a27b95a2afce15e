package shared

// Core platform permission keys. Keys are stable, case-sensitive
// identifiers; display metadata lives in the permissions catalog table.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermStudentsView = "students.view"
	PermStudentsEdit = "students.edit"

	PermGradesView = "grades.view"
	PermGradesEdit = "grades.edit"

	PermReportsView = "reports.view"
)
