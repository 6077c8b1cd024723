// Package rbac holds the static role hierarchy that decides which roles
// may create or delete which other roles.  The table is built once at
// package initialization and never mutated afterwards.
package rbac

import (
	"fmt"

	"github.com/iliyamo/banking-auth/internal/model"
)

// Permissions is the set of roles one role may create and delete.
type Permissions struct {
	create map[model.Role]bool
	delete map[model.Role]bool
}

func newPermissions(create, delete []model.Role) Permissions {
	p := Permissions{
		create: make(map[model.Role]bool, len(create)),
		delete: make(map[model.Role]bool, len(delete)),
	}
	for _, r := range create {
		p.create[r] = true
	}
	for _, r := range delete {
		p.delete[r] = true
	}
	return p
}

// CanCreate reports whether the holder may register a user with role target.
func (p Permissions) CanCreate(target model.Role) bool { return p.create[target] }

// CanDelete reports whether the holder may delete a user with role target.
func (p Permissions) CanDelete(target model.Role) bool { return p.delete[target] }

var matrix = map[model.Role]Permissions{
	model.RoleSuperAdmin: newPermissions(
		[]model.Role{model.RoleAdmin, model.RoleAuditor, model.RoleUser},
		[]model.Role{model.RoleAdmin, model.RoleAuditor, model.RoleUser},
	),
	model.RoleAdmin: newPermissions(
		[]model.Role{model.RoleAuditor, model.RoleUser},
		[]model.Role{model.RoleAuditor, model.RoleUser},
	),
	model.RoleAuditor: newPermissions(nil, nil),
	model.RoleUser:    newPermissions(nil, nil),
}

func init() {
	if err := Validate(); err != nil {
		panic(err)
	}
}

// Validate checks that every defined role has an entry in the matrix.
func Validate() error {
	for _, r := range model.Roles {
		if _, ok := matrix[r]; !ok {
			return fmt.Errorf("rbac: role %s has no permission entry", r)
		}
	}
	return nil
}

// For returns the permissions of role.  Roles outside model.Roles get an
// empty set, so every lookup is answered with a plain boolean.
func For(role model.Role) Permissions {
	return matrix[role]
}

// CanCreate reports whether actor may create a user with role target.
func CanCreate(actor, target model.Role) bool { return For(actor).CanCreate(target) }

// CanDelete reports whether actor may delete a user with role target.
func CanDelete(actor, target model.Role) bool { return For(actor).CanDelete(target) }
