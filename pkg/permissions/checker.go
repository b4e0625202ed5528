// Package permissions checks a user's permission strings against a
// required permission, with wildcard support.
//
// Permission format:
//   - "*" - full access
//   - "resource.*" - all actions on a resource (e.g. "inventory.*")
//   - "resource.action" - specific action (e.g. "inventory.read")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required
// permission. "*" matches everything and "inventory.*" matches
// "inventory.read", "inventory.export", etc.
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Wildcard patterns like "inventory.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user has all of the required permissions.
func HasAllPermissions(userPerms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(userPerms, req) {
			return false
		}
	}
	return true
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Useful for combining role permissions with per-user grants.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// CommonPermissions lists the standard permissions issued by the auth
// service. Used for validation and autocomplete.
var CommonPermissions = []string{
	// Stock movement permissions
	"inventory.read",
	"inventory.import",
	"inventory.export",
	"inventory.transfer",
	"inventory.*",

	// Replenishment request permissions
	"requests.read",
	"requests.write",
	"requests.approve",
	"requests.*",

	// Catalog permissions (products, warehouses, suppliers)
	"catalog.read",
	"catalog.write",
	"catalog.*",

	// Full access
	"*",
}

// IsValidPermission checks if a permission string is in the known list.
// Allows wildcards and custom permissions that follow resource.action.
func IsValidPermission(perm string) bool {
	if perm == "*" {
		return true
	}

	for _, p := range CommonPermissions {
		if p == perm {
			return true
		}
	}

	parts := strings.Split(perm, ".")
	return len(parts) >= 2
}
