// Package router implements the smart order router: it decomposes parent
// orders into time-phased child slices and drives their submission against
// an order venue through a cooperative, timer-driven loop.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/ledger"
)

// OrderSubmitter is the venue interface through which the router submits
// child orders. Implemented by the execution simulator here; a real broker
// adapter can replace it without touching router logic.
type OrderSubmitter interface {
	Submit(ctx context.Context, order domain.Order) (domain.SubmitResult, error)
}

// Notifier delivers operator alerts on terminal execution transitions.
// Satisfied by the notify package.
type Notifier interface {
	Notify(ctx context.Context, event string, summary domain.ExecutionSummary) error
}

// executionForgetter is implemented by venues that keep per-execution state
// (the simulator's profit-attribution lookback). Cleanup tears that state
// down alongside the ledger records.
type executionForgetter interface {
	Forget(executionID string)
}

// Aggressiveness-to-price offsets. Passive quotes improve inside the spread
// on the maker side; aggressive quotes cross it for a near-certain fill.
const (
	passiveImprovement = 0.0005
	aggressiveCross    = 0.001
)

// Config holds the router's loop timings. The defaults match production;
// tests shorten them.
type Config struct {
	IdleRecheck  time.Duration // delay when no slice is due yet
	AttemptDelay time.Duration // delay after a slice attempt, success or not
}

// DefaultConfig returns the standard loop timings.
func DefaultConfig() Config {
	return Config{
		IdleRecheck:  time.Second,
		AttemptDelay: 500 * time.Millisecond,
	}
}

// execState is one arena entry. Its mutex serializes mutation between the
// execution's own worker and external Cancel/Status calls; the worker is the
// only writer of slice state, so there is never more than one slice attempt
// in flight per execution.
type execState struct {
	mu       sync.Mutex
	exec     domain.ParentOrderExecution
	firstRef float64 // first observed reference price, 0 until seen
	notional float64 // sum of executedPx * executedQty across fills
	cancel   context.CancelFunc
}

// Router schedules and drives smart order executions. Each execution runs
// on its own worker goroutine; the arena map is the only state shared
// across executions.
type Router struct {
	feed    domain.PriceFeed
	venue   OrderSubmitter
	ledger  *ledger.Ledger
	planner *planner
	cfg     Config
	logger  *slog.Logger

	execStore domain.ExecutionStore // optional terminal summary persistence
	bus       domain.EventBus       // optional lifecycle event publication
	notifier  Notifier              // optional operator alerts

	mu    sync.RWMutex
	arena map[string]*execState
}

// New creates a Router. The seed drives TWAP jitter.
func New(feed domain.PriceFeed, venue OrderSubmitter, led *ledger.Ledger, cfg Config, seed int64, logger *slog.Logger) *Router {
	if cfg.IdleRecheck <= 0 {
		cfg.IdleRecheck = time.Second
	}
	if cfg.AttemptDelay <= 0 {
		cfg.AttemptDelay = 500 * time.Millisecond
	}
	return &Router{
		feed:    feed,
		venue:   venue,
		ledger:  led,
		planner: newPlanner(feed, seed),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "router")),
		arena:   make(map[string]*execState),
	}
}

// WithExecutionStore attaches persistence for terminal execution summaries.
func (r *Router) WithExecutionStore(store domain.ExecutionStore) *Router {
	r.execStore = store
	return r
}

// WithEventBus attaches a bus receiving execution lifecycle events.
func (r *Router) WithEventBus(bus domain.EventBus) *Router {
	r.bus = bus
	return r
}

// WithNotifier attaches operator notifications for terminal transitions.
func (r *Router) WithNotifier(n Notifier) *Router {
	r.notifier = n
	return r
}

// Start validates the config, plans the slice schedule, and launches the
// execution's worker. It returns the new execution id. The worker inherits
// ctx: cancelling it stops every execution started under it.
func (r *Router) Start(ctx context.Context, cfg domain.ParentOrderConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("router: start execution: %w", err)
	}

	now := time.Now().UTC()
	es := &execState{
		exec: domain.ParentOrderExecution{
			ID:        uuid.New().String(),
			Config:    cfg,
			Slices:    r.planner.plan(cfg, now),
			Status:    domain.ExecutionActive,
			StartedAt: now,
		},
	}

	workerCtx, cancel := context.WithCancel(ctx)
	es.cancel = cancel

	r.mu.Lock()
	r.arena[es.exec.ID] = es
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "execution started",
		slog.String("execution_id", es.exec.ID),
		slog.String("symbol", cfg.Symbol),
		slog.String("side", string(cfg.Side)),
		slog.String("algorithm", string(cfg.Algorithm)),
		slog.Float64("quantity", cfg.Quantity),
		slog.Int("slices", len(es.exec.Slices)),
		slog.Duration("window", cfg.TimeWindow),
	)
	r.publish(ctx, "execution_started", es.exec.ID, map[string]any{
		"symbol":    cfg.Symbol,
		"side":      string(cfg.Side),
		"algorithm": string(cfg.Algorithm),
		"quantity":  cfg.Quantity,
		"slices":    len(es.exec.Slices),
	})

	go r.run(workerCtx, es)
	return es.exec.ID, nil
}

// Cancel transitions an active execution to cancelled and stops its worker.
// Returns false when the id is unknown or the execution is already
// terminal; terminal state is never altered. Filled slices stay filled.
func (r *Router) Cancel(executionID string) bool {
	r.mu.RLock()
	es, ok := r.arena[executionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	es.mu.Lock()
	if es.exec.Status != domain.ExecutionActive {
		es.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	es.exec.Status = domain.ExecutionCancelled
	es.exec.EndedAt = &now
	snapshot := copyExecution(es.exec)
	es.mu.Unlock()

	es.cancel()
	r.finish(context.Background(), snapshot, "execution cancelled")
	return true
}

// Status returns a snapshot of the execution, or nil when unknown.
func (r *Router) Status(executionID string) *domain.ParentOrderExecution {
	r.mu.RLock()
	es, ok := r.arena[executionID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	snap := copyExecution(es.exec)
	return &snap
}

// Active returns snapshots of all non-terminal executions.
func (r *Router) Active() []domain.ParentOrderExecution {
	return r.list(func(s domain.ExecutionStatus) bool { return !s.IsTerminal() })
}

// Completed returns snapshots of all terminal executions still in the arena.
func (r *Router) Completed() []domain.ParentOrderExecution {
	return r.list(func(s domain.ExecutionStatus) bool { return s.IsTerminal() })
}

func (r *Router) list(keep func(domain.ExecutionStatus) bool) []domain.ParentOrderExecution {
	r.mu.RLock()
	states := make([]*execState, 0, len(r.arena))
	for _, es := range r.arena {
		states = append(states, es)
	}
	r.mu.RUnlock()

	out := make([]domain.ParentOrderExecution, 0, len(states))
	for _, es := range states {
		es.mu.Lock()
		if keep(es.exec.Status) {
			out = append(out, copyExecution(es.exec))
		}
		es.mu.Unlock()
	}
	return out
}

// Cleanup evicts a terminal execution from the arena and tears down its
// ledger records. Active executions cannot be cleaned up.
func (r *Router) Cleanup(executionID string) error {
	r.mu.Lock()
	es, ok := r.arena[executionID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	es.mu.Lock()
	terminal := es.exec.Status.IsTerminal()
	es.mu.Unlock()
	if !terminal {
		r.mu.Unlock()
		return fmt.Errorf("router: cleanup %s: %w", executionID, domain.ErrNotActive)
	}
	delete(r.arena, executionID)
	r.mu.Unlock()

	r.ledger.Cleanup(executionID)
	if f, ok := r.venue.(executionForgetter); ok {
		f.Forget(executionID)
	}
	return nil
}

// PerformanceStats aggregates execution quality across the arena.
type PerformanceStats struct {
	TotalExecutions     int
	CompletedExecutions int
	AvgSlippagePct      float64
	AvgExecutionTime    time.Duration
	SuccessRate         float64 // completed / terminal
}

// Performance computes aggregate stats over every execution in the arena.
func (r *Router) Performance() PerformanceStats {
	r.mu.RLock()
	states := make([]*execState, 0, len(r.arena))
	for _, es := range r.arena {
		states = append(states, es)
	}
	r.mu.RUnlock()

	var stats PerformanceStats
	var slipSum float64
	var durSum time.Duration
	var terminal, timed int
	for _, es := range states {
		es.mu.Lock()
		stats.TotalExecutions++
		if es.exec.Status == domain.ExecutionCompleted {
			stats.CompletedExecutions++
		}
		if es.exec.Status.IsTerminal() {
			terminal++
		}
		if es.exec.FilledQuantity > 0 {
			slipSum += es.exec.SlippagePct
		}
		if es.exec.EndedAt != nil {
			durSum += es.exec.EndedAt.Sub(es.exec.StartedAt)
			timed++
		}
		es.mu.Unlock()
	}
	if stats.TotalExecutions > 0 {
		stats.AvgSlippagePct = slipSum / float64(stats.TotalExecutions)
	}
	if timed > 0 {
		stats.AvgExecutionTime = durSum / time.Duration(timed)
	}
	if terminal > 0 {
		stats.SuccessRate = float64(stats.CompletedExecutions) / float64(terminal)
	}
	return stats
}

// run is the per-execution worker loop. It wakes on a timer, executes at
// most one due slice per pass, and reschedules itself. A failed submission
// leaves the slice unfilled for the next pass; the loop never aborts the
// parent for a single slice's problem.
func (r *Router) run(ctx context.Context, es *execState) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.stopOnShutdown(es)
			return
		case <-timer.C:
		}

		es.mu.Lock()
		if es.exec.Status != domain.ExecutionActive {
			es.mu.Unlock()
			return
		}

		now := time.Now().UTC()
		deadline := es.exec.StartedAt.Add(es.exec.Config.TimeWindow)

		slice := dueSlice(es.exec.Slices, now)
		remaining := unfilledCount(es.exec.Slices)

		if remaining == 0 {
			r.transition(es, domain.ExecutionCompleted)
			es.mu.Unlock()
			r.finishLocked(es, "execution completed")
			return
		}

		// Window exhaustion with work left is an explicit failure, not an
		// endless retry loop.
		if slice == nil && now.After(deadline) {
			r.transition(es, domain.ExecutionFailed)
			es.mu.Unlock()
			r.finishLocked(es, "execution window exhausted")
			return
		}

		if slice == nil {
			es.mu.Unlock()
			timer.Reset(r.cfg.IdleRecheck)
			continue
		}
		if now.After(deadline) {
			r.transition(es, domain.ExecutionFailed)
			es.mu.Unlock()
			r.finishLocked(es, "execution window exhausted")
			return
		}

		cfg := es.exec.Config
		firstRef := es.firstRef
		sliceCopy := *slice
		es.mu.Unlock()

		r.attemptSlice(ctx, es, cfg, sliceCopy, firstRef)

		es.mu.Lock()
		done := unfilledCount(es.exec.Slices) == 0 && es.exec.Status == domain.ExecutionActive
		if done {
			r.transition(es, domain.ExecutionCompleted)
		}
		es.mu.Unlock()
		if done {
			r.finishLocked(es, "execution completed")
			return
		}
		timer.Reset(r.cfg.AttemptDelay)
	}
}

// attemptSlice prices and submits one slice, then applies the outcome. A
// slice that does not fill stays unfilled and is retried on a later pass.
func (r *Router) attemptSlice(ctx context.Context, es *execState, cfg domain.ParentOrderConfig, slice domain.OrderSlice, firstRef float64) {
	ref, err := r.feed.Latest(cfg.Symbol)
	if err != nil {
		r.logger.WarnContext(ctx, "no reference price, slice deferred",
			slog.String("symbol", cfg.Symbol),
			slog.String("slice_id", slice.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	price, orderType := slicePrice(cfg, ref.Price)

	order := domain.Order{
		ID:          uuid.New().String(),
		ExecutionID: es.exec.ID,
		Symbol:      cfg.Symbol,
		Side:        cfg.Side,
		Type:        orderType,
		Quantity:    slice.Quantity,
		Price:       price,
		Status:      domain.OrderStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	res, err := r.venue.Submit(ctx, order)
	if err != nil {
		// Recoverable: the slice stays unfilled and is retried next pass.
		r.logger.WarnContext(ctx, "slice submission failed",
			slog.String("execution_id", es.exec.ID),
			slog.String("slice_id", slice.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if !res.Filled {
		order.Status = domain.OrderStatusRejected
		r.ledger.Record(ctx, es.exec.ID, order, nil)
		return
	}

	order.Status = domain.OrderStatusFilled
	order.ExecutedQty = res.ExecutedQty
	order.ExecutedPx = res.ExecutedPx
	order.Fees = res.Fees

	now := time.Now().UTC()
	trade := domain.Trade{
		ID:          uuid.New().String(),
		ExecutionID: es.exec.ID,
		Symbol:      cfg.Symbol,
		Side:        cfg.Side,
		Price:       res.ExecutedPx,
		Quantity:    res.ExecutedQty,
		Fees:        res.Fees,
		Slippage:    res.Slippage,
		Timestamp:   now,
	}
	r.ledger.Record(ctx, es.exec.ID, order, &trade)

	es.mu.Lock()
	if es.firstRef == 0 {
		es.firstRef = ref.Price
		firstRef = ref.Price
	} else {
		firstRef = es.firstRef
	}
	for i := range es.exec.Slices {
		if es.exec.Slices[i].ID != slice.ID {
			continue
		}
		es.exec.Slices[i].TargetPrice = price
		es.exec.Slices[i].Filled = true
		es.exec.Slices[i].FillPrice = res.ExecutedPx
		es.exec.Slices[i].FilledAt = &now
		break
	}
	es.exec.FilledQuantity += res.ExecutedQty
	es.notional += res.ExecutedPx * res.ExecutedQty
	if es.exec.FilledQuantity > 0 {
		es.exec.AvgFillPrice = es.notional / es.exec.FilledQuantity
	}
	if firstRef > 0 {
		es.exec.SlippagePct = realizedSlippagePct(cfg.Side, es.exec.AvgFillPrice, firstRef)
	}
	es.mu.Unlock()

	r.publish(ctx, "slice_filled", es.exec.ID, map[string]any{
		"slice_id": slice.ID,
		"price":    res.ExecutedPx,
		"quantity": res.ExecutedQty,
	})
}

// slicePrice resolves the child-order price from aggressiveness, clamped so
// the deviation from the reference never exceeds the configured slippage.
func slicePrice(cfg domain.ParentOrderConfig, ref float64) (float64, domain.OrderType) {
	offset := 0.0
	orderType := domain.OrderTypeMarket
	switch cfg.Aggressiveness {
	case domain.AggressivenessPassive:
		offset = -passiveImprovement
		orderType = domain.OrderTypeLimit
	case domain.AggressivenessAggressive:
		offset = aggressiveCross
	}
	// Selling mirrors the offset: passive asks above, aggressive hits below.
	if cfg.Side == domain.OrderSideSell {
		offset = -offset
	}
	if cfg.MaxSlippage > 0 {
		if offset > cfg.MaxSlippage {
			offset = cfg.MaxSlippage
		}
		if offset < -cfg.MaxSlippage {
			offset = -cfg.MaxSlippage
		}
	}
	return ref * (1 + offset), orderType
}

// realizedSlippagePct measures average fill price against the first
// observed reference, signed so positive is adverse for the given side.
func realizedSlippagePct(side domain.OrderSide, avgFill, firstRef float64) float64 {
	if side == domain.OrderSideBuy {
		return (avgFill - firstRef) / firstRef * 100
	}
	return (firstRef - avgFill) / firstRef * 100
}

func dueSlice(slices []domain.OrderSlice, now time.Time) *domain.OrderSlice {
	var earliest *domain.OrderSlice
	for i := range slices {
		s := &slices[i]
		if s.Filled || s.ScheduledAt.After(now) {
			continue
		}
		if earliest == nil || s.ScheduledAt.Before(earliest.ScheduledAt) {
			earliest = s
		}
	}
	return earliest
}

func unfilledCount(slices []domain.OrderSlice) int {
	var n int
	for i := range slices {
		if !slices[i].Filled {
			n++
		}
	}
	return n
}

// transition applies a terminal status under es.mu. Terminal states never
// revert; callers must hold the lock and have checked the execution is
// still active.
func (r *Router) transition(es *execState, status domain.ExecutionStatus) {
	now := time.Now().UTC()
	es.exec.Status = status
	es.exec.EndedAt = &now
}

// stopOnShutdown marks an execution cancelled when its context ends while
// still active (application shutdown or external cancel signal).
func (r *Router) stopOnShutdown(es *execState) {
	es.mu.Lock()
	if es.exec.Status != domain.ExecutionActive {
		es.mu.Unlock()
		return
	}
	r.transition(es, domain.ExecutionCancelled)
	snapshot := copyExecution(es.exec)
	es.mu.Unlock()
	r.finish(context.Background(), snapshot, "execution stopped on shutdown")
}

// finishLocked snapshots the execution and runs the terminal side effects.
func (r *Router) finishLocked(es *execState, msg string) {
	es.mu.Lock()
	snapshot := copyExecution(es.exec)
	es.mu.Unlock()
	r.finish(context.Background(), snapshot, msg)
}

// finish logs completion statistics, persists the terminal summary, and
// publishes the lifecycle event.
func (r *Router) finish(ctx context.Context, exec domain.ParentOrderExecution, msg string) {
	var wallClock time.Duration
	if exec.EndedAt != nil {
		wallClock = exec.EndedAt.Sub(exec.StartedAt)
	}
	r.logger.InfoContext(ctx, msg,
		slog.String("execution_id", exec.ID),
		slog.String("status", string(exec.Status)),
		slog.Float64("fill_ratio", exec.FillRatio()),
		slog.Float64("avg_fill_price", exec.AvgFillPrice),
		slog.Float64("slippage_pct", exec.SlippagePct),
		slog.Duration("wall_clock", wallClock),
	)

	summary := domain.ExecutionSummary{
		ID:             exec.ID,
		Symbol:         exec.Config.Symbol,
		Side:           exec.Config.Side,
		Algorithm:      exec.Config.Algorithm,
		Quantity:       exec.Config.Quantity,
		FilledQuantity: exec.FilledQuantity,
		AvgFillPrice:   exec.AvgFillPrice,
		SlippagePct:    exec.SlippagePct,
		Status:         exec.Status,
		StartedAt:      exec.StartedAt,
		EndedAt:        exec.EndedAt,
	}

	if r.execStore != nil {
		if err := r.execStore.Create(ctx, summary); err != nil {
			r.logger.WarnContext(ctx, "execution summary persist failed",
				slog.String("execution_id", exec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.publish(ctx, "execution_"+string(exec.Status), exec.ID, map[string]any{
		"fill_ratio":   exec.FillRatio(),
		"slippage_pct": exec.SlippagePct,
	})

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, "execution_"+string(exec.Status), summary); err != nil {
			r.logger.WarnContext(ctx, "notification failed",
				slog.String("execution_id", exec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// publish sends a lifecycle event on the bus when one is attached.
func (r *Router) publish(ctx context.Context, event, executionID string, fields map[string]any) {
	if r.bus == nil {
		return
	}
	payload := map[string]any{
		"event":        event,
		"execution_id": executionID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)
	if err := r.bus.Publish(ctx, "executions", data); err != nil {
		r.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("execution_id", executionID),
			slog.String("error", err.Error()),
		)
	}
}

func copyExecution(e domain.ParentOrderExecution) domain.ParentOrderExecution {
	out := e
	out.Slices = make([]domain.OrderSlice, len(e.Slices))
	copy(out.Slices, e.Slices)
	for i := range out.Slices {
		if out.Slices[i].FilledAt != nil {
			t := *out.Slices[i].FilledAt
			out.Slices[i].FilledAt = &t
		}
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		out.EndedAt = &t
	}
	return out
}
