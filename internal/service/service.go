// Package service contains the admission core's use cases.
// Services load the group aggregate, let the domain decide, persist the
// result in one transaction and only then hand notifications to the
// notifier. No SQL lives here; services depend on repo interfaces.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/guard"
	"github.com/pkordes/splitbuy/internal/metrics"
	"github.com/pkordes/splitbuy/internal/repo"
)

// Operation names used for metrics, spans and log lines.
const (
	opJoin          = "join"
	opCancelJoin    = "cancel_join"
	opApprove       = "approve"
	opReject        = "reject"
	opMarkPaid      = "mark_paid"
	opCancelPayment = "cancel_payment"
	opCreateGroup   = "create_group"
	opUpdateGroup   = "update_group"
	opCancelGroup   = "cancel_group"
)

const (
	defaultRetryBase = 10 * time.Millisecond
	defaultTxTimeout = 5 * time.Second
)

// Notifier delivers one notification. Satisfied by the adapters in
// internal/notify.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Deps are the collaborators shared by every service.
type Deps struct {
	// Tx runs mutations atomically.
	Tx repo.TxRunner
	// Reads serves display queries outside any transaction.
	Reads repo.Repos
	// Guard serializes mutations per group. Defaults to a fresh KeyedMutex.
	Guard guard.Locker
	// Notifier receives notifications after commit. Defaults to dropping them.
	Notifier Notifier
	// Clock supplies "today" for the closing-date rule. Defaults to UTC wall time.
	Clock   domain.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// MaxRetries is how many times a mutation is retried after a conflict.
	MaxRetries uint64
	// RetryBase is the first backoff interval; it doubles per retry.
	RetryBase time.Duration
	// TxTimeout bounds one mutation, lock wait and retries included.
	TxTimeout time.Duration
}

// Services bundles the use cases built over one set of Deps. Both services
// share one guard, so a group update and an approval never interleave.
type Services struct {
	Admission *AdmissionService
	Groups    *GroupService
}

// New wires the services.
func New(d Deps) Services {
	c := newCoordinator(d)
	return Services{
		Admission: &AdmissionService{c: c},
		Groups:    &GroupService{c: c},
	}
}

// coordinator runs every mutation through the same pipeline:
// per-group guard, bounded retry on conflict, transaction, and
// post-commit notification dispatch.
type coordinator struct {
	tx       repo.TxRunner
	reads    repo.Repos
	guard    guard.Locker
	notifier Notifier
	clock    domain.Clock
	metrics  *metrics.Metrics
	log      *slog.Logger
	tracer   trace.Tracer

	maxRetries uint64
	retryBase  time.Duration
	txTimeout  time.Duration
}

func newCoordinator(d Deps) *coordinator {
	c := &coordinator{
		tx:         d.Tx,
		reads:      d.Reads,
		guard:      d.Guard,
		notifier:   d.Notifier,
		clock:      d.Clock,
		metrics:    d.Metrics,
		log:        d.Logger,
		tracer:     otel.Tracer("github.com/pkordes/splitbuy/internal/service"),
		maxRetries: d.MaxRetries,
		retryBase:  d.RetryBase,
		txTimeout:  d.TxTimeout,
	}
	if c.guard == nil {
		c.guard = guard.NewKeyedMutex()
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.clock == nil {
		c.clock = domain.SystemClock{}
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.retryBase <= 0 {
		c.retryBase = defaultRetryBase
	}
	if c.txTimeout <= 0 {
		c.txTimeout = defaultTxTimeout
	}
	c.log = c.log.With("component", "service")
	return c
}

// effects collects what a mutation wants to happen once it has committed.
// It is reset on every attempt so a retried transaction cannot leak the
// notifications of an attempt that rolled back.
type effects struct {
	notes  []domain.Notification
	filled bool
}

func (fx *effects) notify(n ...domain.Notification) {
	fx.notes = append(fx.notes, n...)
}

type mutation func(ctx context.Context, r repo.Repos, fx *effects) error

// mutate runs fn in a transaction while holding the guard for groupID.
// groupID 0 means the mutation creates a new group and needs no guard.
//
// Conflicts reported by the store are retried up to maxRetries times with
// exponential backoff; after that ErrConflict reaches the caller. The guard
// is released before any notification is sent.
func (c *coordinator) mutate(ctx context.Context, op string, groupID int64, fn mutation) (err error) {
	started := time.Now()
	ctx, span := c.tracer.Start(ctx, "service."+op, trace.WithAttributes(
		attribute.String("splitbuy.op", op),
		attribute.Int64("splitbuy.group_id", groupID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.metrics.ObserveOperation(op, started, err)
	}()

	txCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	fx, err := c.runLocked(txCtx, op, groupID, fn)
	if err != nil {
		return err
	}

	if fx.filled {
		c.metrics.GroupFilled()
	}
	c.dispatch(ctx, op, fx.notes)
	return nil
}

func (c *coordinator) runLocked(ctx context.Context, op string, groupID int64, fn mutation) (*effects, error) {
	if groupID != 0 {
		unlock, err := c.guard.Lock(ctx, groupID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	var fx effects
	attempt := 0
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		fx = effects{}
		err := c.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
			return fn(ctx, r, &fx)
		})
		if errors.Is(err, domain.ErrConflict) {
			c.metrics.Conflict(op)
			c.log.DebugContext(ctx, "conflict, retrying", "op", op, "group_id", groupID, "attempt", attempt)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &fx, nil
}

// backoff builds a fresh policy per call; go-retry backoffs are stateful.
func (c *coordinator) backoff() retry.Backoff {
	b := retry.NewExponential(c.retryBase)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(c.maxRetries, b)
}

// dispatch hands notifications to the notifier. The caller's cancellation
// does not abort delivery of a change that has already committed, but each
// delivery is still bounded. Failures are logged and counted only.
func (c *coordinator) dispatch(ctx context.Context, op string, notes []domain.Notification) {
	if len(notes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.txTimeout)
	defer cancel()

	for _, n := range notes {
		err := c.notifier.Notify(ctx, n)
		c.metrics.Notification(n.Type, err)
		if err != nil {
			c.log.WarnContext(ctx, "notification not delivered",
				"op", op,
				"type", string(n.Type),
				"user_id", n.UserID,
				"group_id", n.ReferenceID,
				"error", err,
			)
		}
	}
}

// loadForUpdate locks the group row and attaches its participants.
func loadForUpdate(ctx context.Context, r repo.Repos, groupID int64) (domain.Group, error) {
	g, err := r.Groups.GetForUpdate(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	ps, err := r.Participants.ListByGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	g.Participants = ps
	return g, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) error { return nil }
