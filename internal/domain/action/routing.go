package action

import "strings"

var radiologyKeywords = []string{"xray", "x-ray", "ct", "mri", "ultrasound", "scan", "radiology"}

// DefaultDepartment resolves the department a newly created fixed-kind action
// is queued under when the caller does not pick one. Diagnostics route to
// radiology when the title names an imaging study, otherwise to the lab.
func DefaultDepartment(t ActionType, title string) string {
	switch t {
	case TypeDiagnostic:
		lowered := strings.ToLower(strings.TrimSpace(title))
		for _, kw := range radiologyKeywords {
			if strings.Contains(lowered, kw) {
				return "Radiology"
			}
		}
		return "Laboratory"
	case TypeMedication:
		return "Pharmacy"
	case TypeReferral:
		return "Referral"
	case TypeCareInstruction, TypeVitalsRequest:
		return "Nursing"
	}
	return "General"
}

// QueueDepartments returns the departments whose work queues the action
// currently appears on. Terminal actions sit on no queue. Medication orders
// move from the pharmacy queue to the nursing queue once dispensed.
func (a *Action) QueueDepartments() []string {
	if a.IsCustom() {
		return []string{a.Department}
	}
	if a.Type == nil {
		return nil
	}
	t := *a.Type
	if IsTerminal(t, a.CurrentState) {
		return nil
	}

	switch t {
	case TypeMedication:
		switch a.CurrentState {
		case "PRESCRIBED":
			return []string{"Pharmacy"}
		case "DISPENSED":
			return []string{"Nursing"}
		}
		return nil
	case TypeCareInstruction, TypeVitalsRequest:
		return []string{"Nursing"}
	case TypeReferral:
		if a.Department != "" {
			return []string{a.Department}
		}
		return []string{"Referral"}
	case TypeDiagnostic:
		if a.Department != "" {
			return []string{a.Department}
		}
		return []string{"Laboratory"}
	}
	return []string{a.Department}
}

// PrimaryQueueDepartment is the first active queue, falling back to the
// action's home department once terminal.
func (a *Action) PrimaryQueueDepartment() string {
	if q := a.QueueDepartments(); len(q) > 0 {
		return q[0]
	}
	return a.Department
}
