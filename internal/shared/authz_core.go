package shared

import "strings"

// Product and report permissions grantable to non-admin users.
const (
	PermProductsView   = "view:products"
	PermProductsEdit   = "edit:products"
	PermProductsDelete = "delete:products"

	PermReportsView = "view:reports"
	PermReportsEdit = "edit:reports"
)

// CoreScopes lists every permission an admin may grant individually.
func CoreScopes() []string {
	return []string{
		PermProductsView,
		PermProductsEdit,
		PermProductsDelete,
		PermReportsView,
		PermReportsEdit,
	}
}

// IsWellFormedScope reports whether perm has the verb:resource shape.
// Permissions outside CoreScopes are accepted so new resources can be
// granted before this catalogue names them.
func IsWellFormedScope(perm string) bool {
	verb, resource, ok := strings.Cut(perm, ":")
	return ok && isScopeWord(verb) && isScopeWord(resource)
}

func isScopeWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
