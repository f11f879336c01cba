// Package access maps (kind, target state) and department queues to the roles
// permitted to act on them. Admin bypasses every table.
package access

import (
	"fmt"
	"strings"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
)

var ErrForbidden = fmt.Errorf("forbidden: role not permitted")

type RoleSet map[domain.Role]struct{}

func NewRoleSet(roles ...domain.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Has(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// Department queue visibility; keys are normalized department names.
// Departments not listed default to doctor access.
var departmentRoles = map[string]RoleSet{
	"pharmacy":   NewRoleSet(domain.RolePharmacist),
	"nursing":    NewRoleSet(domain.RoleNurse),
	"laboratory": NewRoleSet(domain.RoleLabTech),
	"radiology":  NewRoleSet(domain.RoleRadiologist),
	"referral":   NewRoleSet(domain.RoleDoctor),
	"general":    NewRoleSet(domain.RoleDoctor),
}

// NormalizeDepartment folds department names so "Pharmacy" and " pharmacy "
// address the same queue.
func NormalizeDepartment(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RolesForQueue returns the roles allowed to read a department queue,
// excluding the implicit admin bypass.
func RolesForQueue(department string) RoleSet {
	if roles, ok := departmentRoles[NormalizeDepartment(department)]; ok {
		return roles
	}
	return NewRoleSet(domain.RoleDoctor)
}

// AuthorizeQueue gates department queue reads.
func AuthorizeQueue(role domain.Role, department string) error {
	if role == domain.RoleAdmin {
		return nil
	}
	if RolesForQueue(department).Has(role) {
		return nil
	}
	return fmt.Errorf("%w: %s may not view the %s queue", ErrForbidden, role, department)
}

// RolesForTransition returns the roles allowed to move an action into
// targetState. Custom actions delegate to their department's queue roles.
func RolesForTransition(a *action.Action, targetState string) RoleSet {
	if a.IsCustom() {
		allowed := NewRoleSet(domain.RoleAdmin)
		for r := range RolesForQueue(a.Department) {
			allowed[r] = struct{}{}
		}
		return allowed
	}
	if a.Type == nil {
		return NewRoleSet(domain.RoleAdmin)
	}

	switch *a.Type {
	case action.TypeDiagnostic:
		if NormalizeDepartment(a.Department) == "radiology" {
			return NewRoleSet(domain.RoleRadiologist, domain.RoleAdmin)
		}
		return NewRoleSet(domain.RoleLabTech, domain.RoleAdmin)

	case action.TypeMedication:
		switch targetState {
		case "DISPENSED":
			return NewRoleSet(domain.RolePharmacist, domain.RoleAdmin)
		case "ADMINISTERED":
			return NewRoleSet(domain.RoleNurse, domain.RoleAdmin)
		}

	case action.TypeReferral:
		return NewRoleSet(domain.RoleDoctor, domain.RoleAdmin)

	case action.TypeCareInstruction, action.TypeVitalsRequest:
		return NewRoleSet(domain.RoleNurse, domain.RoleAdmin)
	}

	return NewRoleSet(domain.RoleAdmin)
}

// Authorize gates a transition request. Consulted before any state machine
// validation; a denied request must leave no trace.
func Authorize(a *action.Action, targetState string, role domain.Role) error {
	if role == domain.RoleAdmin {
		return nil
	}
	if RolesForTransition(a, targetState).Has(role) {
		return nil
	}
	return fmt.Errorf("%w: %s may not move action to %s", ErrForbidden, role, targetState)
}
