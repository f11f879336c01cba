package service

import (
	"context"
	"sort"
	"time"

	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/sla"
	"github.com/google/uuid"
)

type SLAComplianceStats struct {
	Total     int     `json:"total"`
	Compliant int     `json:"compliant"`
	Rate      float64 `json:"rate"`
}

type AnalyticsReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	SLAOverall    SLAComplianceStats            `json:"sla_overall"`
	SLAByPriority map[string]SLAComplianceStats `json:"sla_by_priority"`

	// Mean minutes from creation event to terminal event, per kind.
	AvgCompletionMinutes map[string]float64 `json:"avg_completion_minutes"`

	// Open-action counts per department queue, worst first.
	Bottlenecks []DepartmentLoad `json:"bottlenecks"`

	OverdueCount int `json:"overdue_count"`
}

type DepartmentLoad struct {
	Department string `json:"department"`
	OpenCount  int    `json:"open_count"`
}

type AnalyticsService struct {
	actions action.Repository
	types   customtype.Repository
}

func NewAnalyticsService(actions action.Repository, types customtype.Repository) *AnalyticsService {
	return &AnalyticsService{actions: actions, types: types}
}

// Report walks every action and its event trail to derive SLA compliance,
// completion durations, and queue load. Computed on demand; nothing here is
// persisted.
func (s *AnalyticsService) Report(ctx context.Context) (*AnalyticsReport, error) {
	page, err := s.actions.List(ctx, &action.ListActionsQuery{Page: 1, PageSize: 10_000})
	if err != nil {
		return nil, err
	}

	typeCache := make(map[uuid.UUID]*customtype.CustomActionType)
	typeFor := func(a *action.Action) *customtype.CustomActionType {
		if !a.IsCustom() {
			return nil
		}
		id := *a.CustomTypeID
		if ct, ok := typeCache[id]; ok {
			return ct
		}
		ct, err := s.types.GetByID(ctx, id)
		if err != nil {
			return nil
		}
		typeCache[id] = ct
		return ct
	}

	now := time.Now()
	report := &AnalyticsReport{
		GeneratedAt:   now.UTC(),
		SLAByPriority: make(map[string]SLAComplianceStats),
	}

	durationSums := make(map[string]float64)
	durationCounts := make(map[string]int)
	queueLoad := make(map[string]int)

	for _, a := range page.Actions {
		ct := typeFor(a)
		label := "UNKNOWN"
		switch {
		case ct != nil:
			label = ct.Name
		case a.Type != nil:
			label = string(*a.Type)
		}

		if sla.IsOverdue(a, ct, now) {
			report.OverdueCount++
		}

		if !sla.IsTerminalState(a, ct) {
			for _, d := range a.QueueDepartments() {
				queueLoad[d]++
			}
			continue
		}

		events, err := s.actions.ListEventsByPatient(ctx, a.PatientID)
		if err != nil {
			continue
		}
		var first, last time.Time
		for _, e := range events {
			if e.ActionID != a.ID {
				continue
			}
			if first.IsZero() || e.Timestamp.Before(first) {
				first = e.Timestamp
			}
			if e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}
		if first.IsZero() {
			first, last = a.CreatedAt, a.UpdatedAt
		}

		minutes := last.Sub(first).Minutes()
		if minutes < 0 {
			minutes = 0
		}
		durationSums[label] += minutes
		durationCounts[label]++

		report.SLAOverall.Total++
		pStats := report.SLAByPriority[string(a.Priority)]
		pStats.Total++
		if !last.After(a.SLADeadline) {
			report.SLAOverall.Compliant++
			pStats.Compliant++
		}
		report.SLAByPriority[string(a.Priority)] = pStats
	}

	report.AvgCompletionMinutes = make(map[string]float64, len(durationSums))
	for label, sum := range durationSums {
		report.AvgCompletionMinutes[label] = sum / float64(durationCounts[label])
	}

	if report.SLAOverall.Total > 0 {
		report.SLAOverall.Rate = float64(report.SLAOverall.Compliant) / float64(report.SLAOverall.Total)
	}
	for p, stats := range report.SLAByPriority {
		if stats.Total > 0 {
			stats.Rate = float64(stats.Compliant) / float64(stats.Total)
		}
		report.SLAByPriority[p] = stats
	}

	report.Bottlenecks = make([]DepartmentLoad, 0, len(queueLoad))
	for d, n := range queueLoad {
		report.Bottlenecks = append(report.Bottlenecks, DepartmentLoad{Department: d, OpenCount: n})
	}
	sort.Slice(report.Bottlenecks, func(i, j int) bool {
		if report.Bottlenecks[i].OpenCount != report.Bottlenecks[j].OpenCount {
			return report.Bottlenecks[i].OpenCount > report.Bottlenecks[j].OpenCount
		}
		return report.Bottlenecks[i].Department < report.Bottlenecks[j].Department
	})

	return report, nil
}
