package access

import (
	"errors"
	"testing"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/google/uuid"
)

func fixedAction(t *testing.T, kind action.ActionType, department string) *action.Action {
	t.Helper()
	a, err := action.NewAction(action.FixedRef(kind), uuid.New(), domain.PriorityRoutine, "X", department, uuid.New())
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	return a
}

func TestAuthorizeMedicationStages(t *testing.T) {
	a := fixedAction(t, action.TypeMedication, "pharmacy")

	if err := Authorize(a, "DISPENSED", domain.RolePharmacist); err != nil {
		t.Errorf("pharmacist should dispense, got %v", err)
	}
	if err := Authorize(a, "DISPENSED", domain.RoleNurse); !errors.Is(err, ErrForbidden) {
		t.Errorf("nurse must not dispense, got %v", err)
	}
	if err := Authorize(a, "ADMINISTERED", domain.RoleNurse); err != nil {
		t.Errorf("nurse should administer, got %v", err)
	}
	if err := Authorize(a, "ADMINISTERED", domain.RolePharmacist); !errors.Is(err, ErrForbidden) {
		t.Errorf("pharmacist must not administer, got %v", err)
	}
}

func TestAuthorizeDiagnosticByDepartment(t *testing.T) {
	lab := fixedAction(t, action.TypeDiagnostic, "laboratory")
	if err := Authorize(lab, "SAMPLE_COLLECTED", domain.RoleLabTech); err != nil {
		t.Errorf("lab tech should advance lab diagnostics, got %v", err)
	}
	if err := Authorize(lab, "SAMPLE_COLLECTED", domain.RoleRadiologist); !errors.Is(err, ErrForbidden) {
		t.Errorf("radiologist must not touch a laboratory diagnostic, got %v", err)
	}

	imaging := fixedAction(t, action.TypeDiagnostic, "Radiology")
	if err := Authorize(imaging, "PROCESSING", domain.RoleRadiologist); err != nil {
		t.Errorf("radiologist should advance imaging diagnostics, got %v", err)
	}
	if err := Authorize(imaging, "PROCESSING", domain.RoleLabTech); !errors.Is(err, ErrForbidden) {
		t.Errorf("lab tech must not touch a radiology diagnostic, got %v", err)
	}
}

func TestAuthorizeAdminBypass(t *testing.T) {
	a := fixedAction(t, action.TypeReferral, "referral")
	for _, state := range []string{"ACKNOWLEDGED", "REVIEWED", "CLOSED"} {
		if err := Authorize(a, state, domain.RoleAdmin); err != nil {
			t.Errorf("admin bypass failed for %s: %v", state, err)
		}
	}
	if err := AuthorizeQueue(domain.RoleAdmin, "pharmacy"); err != nil {
		t.Errorf("admin bypass failed for queue read: %v", err)
	}
}

func TestAuthorizeCustomDelegatesToDepartment(t *testing.T) {
	ctID := uuid.New()
	a, err := action.NewAction(action.CustomRef(ctID), uuid.New(), domain.PriorityRoutine, "OPENED", "Nursing", uuid.New())
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	if err := Authorize(a, "DRESSED", domain.RoleNurse); err != nil {
		t.Errorf("department role should act on custom actions, got %v", err)
	}
	if err := Authorize(a, "DRESSED", domain.RolePharmacist); !errors.Is(err, ErrForbidden) {
		t.Errorf("out-of-department role must be rejected, got %v", err)
	}
}

func TestAuthorizeQueueCaseInsensitive(t *testing.T) {
	for _, name := range []string{"pharmacy", "Pharmacy", " PHARMACY "} {
		if err := AuthorizeQueue(domain.RolePharmacist, name); err != nil {
			t.Errorf("queue name %q should authorize pharmacist, got %v", name, err)
		}
	}
	if err := AuthorizeQueue(domain.RoleLabTech, "pharmacy"); !errors.Is(err, ErrForbidden) {
		t.Errorf("lab tech must not read the pharmacy queue, got %v", err)
	}
}

func TestRolesForQueueUnknownDepartmentDefaultsToDoctor(t *testing.T) {
	roles := RolesForQueue("cardiology")
	if !roles.Has(domain.RoleDoctor) {
		t.Error("unlisted departments should default to doctor access")
	}
	if roles.Has(domain.RoleNurse) {
		t.Error("unlisted departments should not grant nurse access")
	}
}
