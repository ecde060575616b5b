package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/contactgraph/internal/contact"
)

const tracerName = "github.com/roach88/contactgraph/internal/reconcile"

// Engine reconciles observations against a shared contact store.
//
// Engine holds no mutable state of its own and is safe for concurrent use.
// Isolation between concurrent requests is provided by the Transactor.
type Engine struct {
	tx     contact.Transactor
	logger zerolog.Logger
	tracer trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer used for per-stage spans.
// The default comes from the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates an Engine over tx.
func New(tx contact.Transactor, opts ...Option) *Engine {
	e := &Engine{
		tx:     tx,
		logger: zerolog.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Identify reconciles o and returns the summary of the identity it belongs to.
//
// Whitespace-only fields are treated as absent; an observation with neither
// field fails with CodeInvalidObservation before the store is touched. All
// reads and writes run in one unit of work: on any error nothing is
// committed.
func (e *Engine) Identify(ctx context.Context, o contact.Observation) (contact.Summary, error) {
	o = o.Clean()
	if err := o.Validate(); err != nil {
		return contact.Summary{}, &Error{
			Code:    CodeInvalidObservation,
			Message: "email or phone number is required",
			Op:      "identify",
			Err:     err,
		}
	}

	ctx, span := e.tracer.Start(ctx, "reconcile.Identify")
	defer span.End()

	var summary contact.Summary
	err := e.tx.InTx(ctx, o.LockKeys(), func(s contact.Store) error {
		var err error
		summary, err = e.identify(ctx, s, o)
		return err
	})
	if err != nil {
		err = storeError("identify", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(codeOf(err)))
		return contact.Summary{}, err
	}

	span.SetAttributes(
		attribute.Int64("contact.primary_id", summary.PrimaryContactID),
		attribute.Int("contact.secondary_count", len(summary.SecondaryContactIDs)),
	)
	return summary, nil
}

func (e *Engine) identify(ctx context.Context, s contact.Store, o contact.Observation) (contact.Summary, error) {
	component, err := e.resolve(ctx, s, o)
	if err != nil {
		return contact.Summary{}, err
	}

	if len(component) == 0 {
		created, err := s.Save(ctx, contact.NewPrimary(o))
		if err != nil {
			return contact.Summary{}, storeError("create primary", err)
		}
		e.logger.Info().Int64("primary_id", created.ID).Msg("identity created")
		e.logger.Debug().
			Int64("primary_id", created.ID).
			Str("email", o.Email).
			Str("phone_number", o.PhoneNumber).
			Msg("primary contact saved")
		return Project(created, []contact.Contact{created}), nil
	}

	primary, needsPromotion, err := SelectPrimary(component)
	if err != nil {
		return contact.Summary{}, err
	}
	if needsPromotion {
		component, err = e.promote(ctx, s, primary, component)
		if err != nil {
			return contact.Summary{}, err
		}
		primary = memberByID(component, primary.ID)
	}

	secondary, created, err := WriteSecondary(ctx, s, o, primary, component)
	if err != nil {
		return contact.Summary{}, err
	}
	if created {
		e.logger.Info().
			Int64("primary_id", primary.ID).
			Int64("secondary_id", secondary.ID).
			Msg("secondary contact created")

		component, err = Expand(ctx, s, []int64{primary.ID})
		if err != nil {
			return contact.Summary{}, err
		}
		if !containsID(component, secondary.ID) {
			return contact.Summary{}, invariantError("refresh", "new secondary %d missing from component of %d", secondary.ID, primary.ID)
		}
	}

	return Project(primary, component), nil
}

// resolve returns the component connected to o with every identity in it
// locked by the unit of work. Waiting for a lock can make the resolution
// stale, so it is repeated until it names no identity the unit of work does
// not already hold. Each round locks at least one more identity.
func (e *Engine) resolve(ctx context.Context, s contact.Store, o contact.Observation) ([]contact.Contact, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Resolve")
	defer span.End()

	locked := make(map[int64]bool)
	for round := 1; ; round++ {
		component, err := Resolve(ctx, s, o)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		pending := unlockedIdentities(component, locked)
		if len(pending) == 0 {
			span.SetAttributes(
				attribute.Int("component.size", len(component)),
				attribute.Int("resolve.rounds", round),
			)
			return component, nil
		}

		if err := s.LockIdentities(ctx, pending); err != nil {
			err = storeError("lock identities", err)
			span.RecordError(err)
			return nil, err
		}
		for _, id := range pending {
			locked[id] = true
		}
		if round > 1 {
			e.logger.Debug().Int("round", round).Ints64("identities", pending).Msg("component changed while locking")
		}
	}
}

func (e *Engine) promote(ctx context.Context, s contact.Store, primary contact.Contact, component []contact.Contact) ([]contact.Contact, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Promote")
	defer span.End()
	span.SetAttributes(attribute.Int64("contact.primary_id", primary.ID))

	demoted := 0
	for _, c := range component {
		if c.ID != primary.ID && c.IsPrimary() {
			demoted++
		}
	}

	out, err := Promote(ctx, s, primary, component)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info().
		Int64("primary_id", primary.ID).
		Int("demoted", demoted).
		Int("component_size", len(out)).
		Msg("identity promoted")
	return out, nil
}

// Summarize returns the summary of the identity containing contact id.
// It never writes. Unknown or soft-deleted ids fail with CodeNotFound.
func (e *Engine) Summarize(ctx context.Context, id int64) (contact.Summary, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Summarize")
	defer span.End()
	span.SetAttributes(attribute.Int64("contact.id", id))

	var summary contact.Summary
	err := e.tx.InTx(ctx, nil, func(s contact.Store) error {
		c, err := s.FindByID(ctx, id)
		if errors.Is(err, contact.ErrNotFound) {
			return &Error{Code: CodeNotFound, Message: "no such contact", Op: "summarize", Err: err}
		}
		if err != nil {
			return storeError("find contact", err)
		}

		anchor := c.ID
		if !c.IsPrimary() {
			anchor = c.LinkedID
		}
		component, err := Expand(ctx, s, []int64{anchor})
		if err != nil {
			return err
		}

		primary := memberByID(component, anchor)
		if primary.ID == 0 || !primary.IsPrimary() {
			return invariantError("summarize", "contact %d links to %d which is not a live primary", c.ID, anchor)
		}
		summary = Project(primary, component)
		return nil
	})
	if err != nil {
		err = storeError("summarize", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(codeOf(err)))
		return contact.Summary{}, err
	}
	return summary, nil
}

func memberByID(component []contact.Contact, id int64) contact.Contact {
	for _, c := range component {
		if c.ID == id {
			return c
		}
	}
	return contact.Contact{}
}

func containsID(component []contact.Contact, id int64) bool {
	return memberByID(component, id).ID == id
}

func codeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
