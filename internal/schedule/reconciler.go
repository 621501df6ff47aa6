package schedule

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/model"
	"shutter-control-backend/internal/parse"
)

// fireTimeout bounds the audit write of a single firing.
const fireTimeout = 10 * time.Second

// Store is the part of the persistence layer the reconciler reads.
type Store interface {
	ListEnabledSchedules(ctx context.Context) ([]model.Schedule, error)
}

// Firer executes the action of a trigger.
type Firer interface {
	Fire(ctx context.Context, action control.Action, scheduleName string)
}

// Trigger describes a live time-of-day rule built from a schedule definition.
type Trigger struct {
	ScheduleID int64          `json:"scheduleId"`
	Name       string         `json:"name"`
	Command    control.Action `json:"command"`
	Time       string         `json:"time"`
	Days       []int          `json:"days"`
	Next       time.Time      `json:"next"`
}

// Skipped reports a definition that could not be turned into a trigger.
type Skipped struct {
	ScheduleID int64  `json:"scheduleId"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// Result summarizes one reconciliation pass.
type Result struct {
	Installed int       `json:"installed"`
	Skipped   []Skipped `json:"skipped,omitempty"`
}

type liveTrigger struct {
	Trigger
	entryID  cron.EntryID
	schedule cron.Schedule
	job      cron.Job
}

// Reconciler keeps the live trigger set equal to the enabled schedule
// definitions by tearing every trigger down and rebuilding it on each pass.
//
// Thread Safety: Reconcile and Triggers are safe for concurrent use;
// reconciliation passes are serialized.
type Reconciler struct {
	store    Store
	firer    Firer
	loc      *time.Location
	interval time.Duration
	cron     *cron.Cron
	now      func() time.Time

	mu   sync.Mutex
	live []liveTrigger
}

// NewReconciler creates a reconciler evaluating schedule times in loc and
// re-reading definitions every interval once Run is called.
func NewReconciler(store Store, firer Firer, loc *time.Location, interval time.Duration) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.PrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))
	return &Reconciler{
		store:    store,
		firer:    firer,
		loc:      loc,
		interval: interval,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		now: time.Now,
	}
}

// Run starts the trigger clock, reconciles immediately and then on every
// interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	log.Println("Starting schedule reconciler...")
	r.cron.Start()
	defer func() {
		<-r.cron.Stop().Done()
		log.Println("Schedule reconciler shutting down.")
	}()

	r.reconcileAndLog(ctx)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.reconcileAndLog(ctx)
			timer.Reset(r.interval)
		}
	}
}

func (r *Reconciler) reconcileAndLog(ctx context.Context) {
	if _, err := r.Reconcile(ctx); err != nil {
		log.Printf("Error reconciling schedules: %v", err)
	}
}

// Reconcile replaces every live trigger with triggers built from the enabled
// definitions in the store. Malformed definitions are skipped and reported.
// If the definitions cannot be loaded the current triggers stay live.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedules, err := r.store.ListEnabledSchedules(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load schedules: %w", err)
	}

	for _, t := range r.live {
		r.cron.Remove(t.entryID)
	}
	r.live = nil

	var result Result
	for _, s := range schedules {
		t, err := r.build(s)
		if err != nil {
			log.Printf("Skipping schedule %d (%s): %v", s.ID, s.Name, err)
			result.Skipped = append(result.Skipped, Skipped{ScheduleID: s.ID, Name: s.Name, Reason: err.Error()})
			continue
		}
		t.entryID = r.cron.Schedule(t.schedule, t.job)
		r.live = append(r.live, t)
	}
	result.Installed = len(r.live)

	log.Printf("Scheduled %d triggers", result.Installed)
	return result, nil
}

// Triggers returns the live triggers with their next firing time.
func (r *Reconciler) Triggers() []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	triggers := make([]Trigger, 0, len(r.live))
	for _, t := range r.live {
		trigger := t.Trigger
		trigger.Days = append([]int(nil), t.Days...)
		trigger.Next = t.schedule.Next(now)
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].ScheduleID < triggers[j].ScheduleID })
	return triggers
}

func (r *Reconciler) build(s model.Schedule) (liveTrigger, error) {
	tod, err := parse.ParseTimeOfDay(s.Time)
	if err != nil {
		return liveTrigger{}, err
	}
	days, err := parse.ParseDays(s.Days)
	if err != nil {
		return liveTrigger{}, err
	}
	action, ok := control.ParseAction(s.Command)
	if !ok {
		return liveTrigger{}, fmt.Errorf("invalid command %q", s.Command)
	}

	expr := fmt.Sprintf("%d %d * * %s", tod.Minute, tod.Hour, parse.FormatDays(days))
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return liveTrigger{}, fmt.Errorf("invalid recurrence %q: %w", expr, err)
	}
	sched, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return liveTrigger{}, fmt.Errorf("unexpected recurrence type %T", parsed)
	}
	sched.Location = r.loc

	name := s.Name
	job := cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
		defer cancel()
		r.firer.Fire(ctx, action, name)
	})

	return liveTrigger{
		Trigger: Trigger{
			ScheduleID: s.ID,
			Name:       s.Name,
			Command:    action,
			Time:       tod.String(),
			Days:       days,
		},
		schedule: sched,
		job:      job,
	}, nil
}
