package model

import (
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/pkg/errors"
)

type Permission string

const (
	PermissionUpdateUsers Permission = "UPDATE-USERS"
	PermissionDeleteUsers Permission = "DELETE-USERS"
	PermissionCreateBooks Permission = "CREATE-BOOKS"
	PermissionUpdateBooks Permission = "UPDATE-BOOKS"
	PermissionDeleteBooks Permission = "DELETE-BOOKS"
)

var AllPermissions = []Permission{
	PermissionUpdateUsers,
	PermissionDeleteUsers,
	PermissionCreateBooks,
	PermissionUpdateBooks,
	PermissionDeleteBooks,
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", errors.Wrapf(errs.ErrValidation, "unknown permission %q", s)
	}
	return p, nil
}

type Permissions map[Permission]bool

func (p Permissions) Grants(perm Permission) bool {
	return p[perm]
}

func (p Permissions) Validate() error {
	for perm := range p {
		if !perm.Valid() {
			return errors.Wrapf(errs.ErrValidation, "unknown permission %q", perm)
		}
	}
	return nil
}

// Granted drops unknown kinds and false entries.
func (p Permissions) Granted() Permissions {
	out := make(Permissions, len(p))
	for perm, ok := range p {
		if ok && perm.Valid() {
			out[perm] = true
		}
	}
	return out
}
