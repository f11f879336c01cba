// Package sweeper runs the recurring SLA escalation sweep: every period it
// scans non-terminal actions, recomputes overdue status, and emits an
// escalation event for each action that newly crossed its deadline.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/clavis-health/clavis/internal/broadcast"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/sla"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPeriod = 60 * time.Second

type Sweeper struct {
	actions action.Repository
	types   customtype.Repository
	hub     *broadcast.Hub
	log     *zap.Logger

	// Observability hooks; either may be nil.
	onEscalation func()
	onSweepDone  func(time.Duration)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Last known overdue set, in memory only. Lost on restart, so an
	// already-overdue action may re-fire once after a crash; escalation
	// delivery is at-least-once and consumers treat it as idempotent.
	lastOverdue map[uuid.UUID]struct{}
}

func New(actions action.Repository, types customtype.Repository, hub *broadcast.Hub, log *zap.Logger) *Sweeper {
	return &Sweeper{
		actions:     actions,
		types:       types,
		hub:         hub,
		log:         log,
		lastOverdue: make(map[uuid.UUID]struct{}),
	}
}

// OnEscalation installs a callback fired once per emitted escalation.
func (s *Sweeper) OnEscalation(fn func()) { s.onEscalation = fn }

// OnSweepDone installs a callback fired with each cycle's duration.
func (s *Sweeper) OnSweepDone(fn func(time.Duration)) { s.onSweepDone = fn }

// Start launches the sweep loop. A non-positive period falls back to the
// default. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(period time.Duration) {
	if period <= 0 {
		period = DefaultPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, period)
	s.log.Info("escalation sweeper started", zap.Duration("period", period))
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("escalation sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, period time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one scan cycle. Exported so tests and operational tooling
// can trigger a cycle without waiting out the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		if s.onSweepDone != nil {
			s.onSweepDone(time.Since(start))
		}
	}()

	open, err := s.actions.ListNonTerminal(ctx)
	if err != nil {
		s.log.Error("sweep: listing open actions failed", zap.Error(err))
		return
	}

	now := time.Now()
	current := make(map[uuid.UUID]struct{})
	typeCache := make(map[uuid.UUID]*customtype.CustomActionType)

	for _, a := range open {
		var ct *customtype.CustomActionType
		if a.IsCustom() {
			id := *a.CustomTypeID
			cached, ok := typeCache[id]
			if !ok {
				cached, err = s.types.GetByID(ctx, id)
				if err != nil {
					// One bad action never aborts the cycle.
					s.log.Warn("sweep: skipping action, custom type lookup failed",
						zap.String("action_id", a.ID.String()),
						zap.Error(err),
					)
					continue
				}
				typeCache[id] = cached
			}
			ct = cached
		}

		if !sla.IsOverdue(a, ct, now) {
			continue
		}
		current[a.ID] = struct{}{}

		if _, known := s.lastOverdue[a.ID]; known {
			continue
		}
		s.escalate(a)
	}

	s.lastOverdue = current
}

// escalate fans the event out to the action's department queue and the global
// dashboard. Delivery is fire-and-forget; the sweep itself never blocks on a
// slow subscriber and holds no per-action lock here.
func (s *Sweeper) escalate(a *action.Action) {
	ev := broadcast.Event{
		Type:       broadcast.EventEscalated,
		ActionID:   a.ID,
		PatientID:  a.PatientID,
		Department: a.PrimaryQueueDepartment(),
		ToState:    a.CurrentState,
		Priority:   a.Priority,
		IsOverdue:  true,
		Timestamp:  time.Now().UTC(),
	}

	s.hub.Publish(broadcast.KeyDepartment, ev.Department, ev)
	s.hub.Publish(broadcast.KeyGlobal, "", ev)

	if s.onEscalation != nil {
		s.onEscalation()
	}
	s.log.Info("action escalated",
		zap.String("action_id", a.ID.String()),
		zap.String("department", ev.Department),
		zap.String("priority", string(a.Priority)),
	)
}
