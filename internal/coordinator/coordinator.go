// Package coordinator turns pay taps into exactly one provider call each and
// reconciles the asynchronous provider results into the UI state.
//
// Every request runs its own state machine (Idle, Requested, zero or more
// AwaitingUserAction round trips, Terminal). A new request supersedes the
// one on screen: the old request may still finish, and its outcome is
// journaled, but it never replaces what the user is looking at.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/payment"
	"github.com/yourorg/wallet-checkout/internal/policy"
	"github.com/yourorg/wallet-checkout/internal/processor"
	"github.com/yourorg/wallet-checkout/internal/reporting"
	"github.com/yourorg/wallet-checkout/internal/uistate"
)

var (
	ErrInvalidDescriptor = errors.New("coordinator: descriptor is empty")
	ErrProviderMismatch  = errors.New("coordinator: descriptor was built for another provider")
	ErrDuplicateRequest  = errors.New("coordinator: request already initiated")
	ErrClosed            = errors.New("coordinator: closed")
)

const (
	defaultAckTimeout     = 10 * time.Second
	defaultJournalTimeout = 2 * time.Second
	defaultRetainedFlows  = 256
)

// Router is the part of router.Router the coordinator needs.
type Router interface {
	Route(p payment.Provider) (adapter.WalletProviderAdapter, error)
	Adapter(p payment.Provider) (adapter.WalletProviderAdapter, error)
	Activator(p payment.Provider) (adapter.Activator, bool)
	RecordSuccess(p payment.Provider)
	RecordFailure(p payment.Provider)
}

// Config wires a Coordinator. Router, Processor and State are required.
type Config struct {
	Router    Router
	Processor *processor.Processor
	Policy    *policy.ReadinessPolicy
	State     *uistate.State
	Journal   reporting.Journal
	Logger    *logrus.Entry

	// AckTimeout bounds one sheet acknowledgment.
	AckTimeout time.Duration
	// RetainedFlows is how many finished requests are remembered so late
	// duplicates can be recognized. It also caps the requests waiting on a
	// provider: past it the oldest one is abandoned.
	RetainedFlows int
	Now           func() time.Time
}

// Coordinator is the PaymentRequestCoordinator.
type Coordinator struct {
	router    Router
	processor *processor.Processor
	policy    *policy.ReadinessPolicy
	state     *uistate.State
	journal   reporting.Journal
	log       *logrus.Entry
	tracer    trace.Tracer

	ackTimeout    time.Duration
	retainedFlows int
	now           func() time.Time

	// baseCtx outlives the HTTP requests that start payments; Close cancels
	// it and with it every session watch.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	flows    map[string]*flow
	open     []string
	finished []string
	current  string
	closed   bool
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Router == nil || cfg.Processor == nil || cfg.State == nil {
		return nil, errors.New("coordinator: router, processor and state are required")
	}
	if cfg.Policy == nil {
		p, err := policy.NewReadinessPolicy(nil)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}
	if cfg.Journal == nil {
		cfg.Journal = reporting.NewMemoryJournal(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.RetainedFlows <= 0 {
		cfg.RetainedFlows = defaultRetainedFlows
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		router:        cfg.Router,
		processor:     cfg.Processor,
		policy:        cfg.Policy,
		state:         cfg.State,
		journal:       cfg.Journal,
		log:           cfg.Logger.WithField("component", "coordinator"),
		tracer:        otel.Tracer("coordinator"),
		ackTimeout:    cfg.AckTimeout,
		retainedFlows: cfg.RetainedFlows,
		now:           cfg.Now,
		baseCtx:       ctx,
		cancel:        cancel,
		flows:         make(map[string]*flow),
	}, nil
}

// InitiatePayment validates d, shows it as pending and hands it to the
// provider's adapter without waiting for the provider. The error covers
// invalid input only; everything that goes wrong later is reported as an
// outcome.
func (c *Coordinator) InitiatePayment(ctx context.Context, provider payment.Provider, d payment.Descriptor) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.InitiatePayment")
	defer span.End()
	span.SetAttributes(attribute.String("provider", provider.String()))

	if err := validate(provider, d); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payment request")
		return err
	}
	requestID := d.RequestID()
	span.SetAttributes(attribute.String("request_id", requestID))

	f := newFlow(d, c.now())
	_ = f.transition(FlowRequested)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, exists := c.flows[requestID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}
	flowCtx, cancel := context.WithCancel(c.baseCtx)
	f.cancel = cancel
	c.flows[requestID] = f
	c.open = append(c.open, requestID)
	c.current = requestID
	c.state.SetOutcome(payment.Pending().For(requestID, provider))
	var abandoned *flow
	if len(c.open) > c.retainedFlows {
		abandoned = c.flows[c.open[0]]
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if abandoned != nil {
		c.log.WithField("request_id", abandoned.descriptor.RequestID()).Warn("too many open requests, abandoning the oldest")
		c.finish(c.baseCtx, abandoned, payment.InternalError("request abandoned: too many open requests"))
	}

	paymentsInitiatedTotal.WithLabelValues(provider.String()).Inc()
	c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"provider":   provider.String(),
		"amount":     d.Amount(),
		"currency":   d.Currency(),
	}).Info("payment initiated")

	dispatchCtx := trace.ContextWithSpanContext(flowCtx, span.SpanContext())
	go func() {
		defer c.wg.Done()
		c.dispatch(dispatchCtx, f)
	}()
	return nil
}

func validate(provider payment.Provider, d payment.Descriptor) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: %v", payment.ErrUnknownProvider, provider)
	}
	if d.IsZero() {
		return ErrInvalidDescriptor
	}
	if d.Provider() != provider {
		return fmt.Errorf("%w: descriptor %s, requested %s", ErrProviderMismatch, d.Provider(), provider)
	}
	if d.Amount() <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", payment.ErrInvalidAmount, d.Amount())
	}
	return nil
}

// dispatch issues the provider call. The result callback exists before the
// call is made.
func (c *Coordinator) dispatch(ctx context.Context, f *flow) {
	d := f.descriptor
	provider := d.Provider()
	log := c.log.WithFields(logrus.Fields{"request_id": d.RequestID(), "provider": provider.String()})

	a, err := c.router.Route(provider)
	if err != nil {
		log.WithError(err).Warn("payment not dispatched")
		c.finish(ctx, f, payment.InternalError(err.Error()))
		return
	}

	cb := func(ev adapter.RawEvent) {
		c.OnProviderResult(ctx, d.RequestID(), provider, ev)
	}
	if err := a.RequestPayment(ctx, d, cb); err != nil {
		c.router.RecordFailure(provider)
		log.WithError(err).Warn("provider rejected payment request")
		c.finish(ctx, f, payment.InternalError("payment request not started: "+err.Error()))
	}
}

// OnProviderResult handles one provider event for requestID. Card updates
// are acknowledged before it returns; terminal events resolve the request
// once, and later ones are ignored.
func (c *Coordinator) OnProviderResult(ctx context.Context, requestID string, provider payment.Provider, ev adapter.RawEvent) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.OnProviderResult", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("provider", provider.String()),
		attribute.String("event", ev.Kind.String()),
	))
	defer span.End()

	log := c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"provider":   provider.String(),
		"event":      ev.Kind.String(),
	})

	c.mu.Lock()
	f, ok := c.flows[requestID]
	c.mu.Unlock()
	if !ok {
		ignoredEventsTotal.WithLabelValues("unknown_request").Inc()
		log.Warn("event for unknown request ignored")
		return
	}
	if f.descriptor.Provider() != provider {
		ignoredEventsTotal.WithLabelValues("provider_mismatch").Inc()
		log.Warn("event from the wrong provider ignored")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FlowTerminal {
		ignoredEventsTotal.WithLabelValues("after_terminal").Inc()
		log.WithField("outcome", f.outcome.Kind.String()).Debug("event after terminal outcome ignored")
		return
	}

	if ev.Kind == adapter.EventCardInfoUpdated {
		c.acknowledgeLocked(ctx, f, ev, log)
		return
	}

	outcome := c.processor.Resolve(provider, ev)
	if !outcome.Terminal() {
		ignoredEventsTotal.WithLabelValues("non_terminal").Inc()
		log.Warn("non-terminal event ignored")
		return
	}
	if ev.Kind == adapter.EventTransportError {
		c.router.RecordFailure(provider)
	} else {
		c.router.RecordSuccess(provider)
	}
	if outcome.Kind == payment.OutcomeInternalError {
		span.SetStatus(codes.Error, outcome.Message)
	}
	c.finishLocked(ctx, f, outcome)
}

// acknowledgeLocked sends the sheet of a card update back to the provider.
// The provider does not continue until it has it, so a failed
// acknowledgment ends the request.
func (c *Coordinator) acknowledgeLocked(ctx context.Context, f *flow, ev adapter.RawEvent, log *logrus.Entry) {
	if err := f.transition(FlowAwaitingUserAction); err != nil {
		log.WithError(err).Error("unexpected card update")
		return
	}
	if ev.Card != nil {
		log = log.WithField("card_brand", ev.Card.Brand)
	}

	a, err := c.router.Adapter(f.descriptor.Provider())
	if err == nil {
		ackCtx, cancel := context.WithTimeout(ctx, c.ackTimeout)
		err = a.UpdateSheet(ackCtx, f.descriptor.RequestID(), ev.Sheet)
		cancel()
	}
	if err != nil {
		sheetAcksTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("sheet acknowledgment failed")
		c.finishLocked(ctx, f, payment.InternalError("sheet acknowledgment failed: "+err.Error()))
		return
	}

	sheetAcksTotal.WithLabelValues("ok").Inc()
	f.acks++
	_ = f.transition(FlowRequested)
	log.WithField("acks", f.acks).Debug("card update acknowledged")
}

func (c *Coordinator) finish(ctx context.Context, f *flow, o payment.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowTerminal {
		return
	}
	c.finishLocked(ctx, f, o)
}

// finishLocked records the terminal outcome. It is shown only if the request
// is still the one on screen.
func (c *Coordinator) finishLocked(ctx context.Context, f *flow, o payment.Outcome) {
	d := f.descriptor
	provider := d.Provider()
	o = o.For(d.RequestID(), provider)
	_ = f.transition(FlowTerminal)
	f.outcome = o
	now := c.now()

	c.mu.Lock()
	superseded := c.current != d.RequestID()
	if !superseded {
		c.state.SetOutcome(o)
	}
	c.retireLocked(d.RequestID())
	c.mu.Unlock()

	paymentOutcomesTotal.WithLabelValues(provider.String(), o.Kind.String()).Inc()
	paymentDurationSeconds.WithLabelValues(provider.String()).Observe(now.Sub(f.started).Seconds())
	if superseded {
		supersededOutcomesTotal.WithLabelValues(provider.String()).Inc()
	}

	log := c.log.WithFields(logrus.Fields{
		"request_id": d.RequestID(),
		"provider":   provider.String(),
		"outcome":    o.Kind.String(),
		"superseded": superseded,
	})
	switch o.Kind {
	case payment.OutcomeInternalError:
		log.WithField("message", o.Message).Error("payment failed")
	case payment.OutcomeProviderError:
		log.WithFields(logrus.Fields{"code": o.Code, "message": o.Message}).Warn("payment rejected by provider")
	default:
		log.Info("payment finished")
	}

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultJournalTimeout)
	defer cancel()
	if err := c.journal.Append(jctx, reporting.NewEntry(now, d, o, superseded)); err != nil {
		log.WithError(err).Warn("outcome not journaled")
	}
	if f.cancel != nil {
		f.cancel()
	}
}

// retireLocked remembers requestID as finished and forgets the oldest
// finished requests beyond the retention limit. The request on screen is
// kept until it is replaced. c.mu must be held.
func (c *Coordinator) retireLocked(requestID string) {
	for i, id := range c.open {
		if id == requestID {
			c.open = append(c.open[:i], c.open[i+1:]...)
			break
		}
	}

	c.finished = append(c.finished, requestID)
	excess := len(c.finished) - c.retainedFlows
	kept := c.finished[:0]
	for _, id := range c.finished {
		if excess > 0 && id != c.current {
			delete(c.flows, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	c.finished = kept
}

// ProbeReadiness asks provider whether it can take payments. The answer
// arrives asynchronously; failures are logged and leave the last known
// readiness in place. It never blocks on the provider.
func (c *Coordinator) ProbeReadiness(ctx context.Context, provider payment.Provider) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.ProbeReadiness")
	defer span.End()
	span.SetAttributes(attribute.String("provider", provider.String()))

	log := c.log.WithField("provider", provider.String())
	if !provider.Valid() {
		log.Warn("readiness probe for unknown provider ignored")
		return
	}
	a, err := c.router.Adapter(provider)
	if err != nil {
		log.WithError(err).Warn("readiness probe not sent")
		return
	}

	probeCtx := trace.ContextWithSpanContext(c.baseCtx, span.SpanContext())
	err = a.ProbeReadiness(probeCtx, func(raw adapter.RawReadiness) {
		c.onReadiness(probeCtx, provider, raw)
	})
	if err != nil {
		readinessProbesTotal.WithLabelValues(provider.String(), payment.ReadinessError.String()).Inc()
		log.WithError(err).Warn("readiness probe not sent")
	}
}

func (c *Coordinator) onReadiness(ctx context.Context, provider payment.Provider, raw adapter.RawReadiness) {
	readiness, reason := c.processor.ResolveReadiness(provider, raw)
	readinessProbesTotal.WithLabelValues(provider.String(), readiness.String()).Inc()

	log := c.log.WithFields(logrus.Fields{
		"provider":  provider.String(),
		"readiness": readiness.String(),
		"code":      raw.Code,
	})
	if reason != "" {
		log = log.WithField("reason", reason)
	}
	if readiness == payment.ReadinessError {
		if raw.Err != nil {
			log = log.WithError(raw.Err)
		}
		log.Warn("readiness probe failed; keeping last known readiness")
		return
	}

	c.state.SetReadiness(provider, readiness)
	log.Info("readiness updated")

	decision, err := c.policy.Evaluate(provider, readiness, reason)
	if err != nil {
		log.WithError(err).Error("readiness policy evaluation failed")
		return
	}
	if decision.Action == policy.ActionNone {
		return
	}

	act, ok := c.router.Activator(provider)
	if !ok {
		log.WithField("action", string(decision.Action)).Warn("provider cannot run readiness follow-up")
		return
	}
	log = log.WithFields(logrus.Fields{"action": string(decision.Action), "rule": decision.RuleID})
	switch decision.Action {
	case policy.ActionActivate:
		err = act.Activate(ctx)
	case policy.ActionUpdateApp:
		err = act.OpenUpdatePage(ctx)
	}
	if err != nil {
		log.WithError(err).Warn("readiness follow-up failed")
		return
	}
	log.Info("readiness follow-up started")
}

// Flow returns the progress of requestID while it is remembered.
func (c *Coordinator) Flow(requestID string) (FlowInfo, bool) {
	c.mu.Lock()
	f, ok := c.flows[requestID]
	c.mu.Unlock()
	if !ok {
		return FlowInfo{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info(), true
}

// Close stops accepting payments, cancels outstanding provider sessions and
// waits for in-progress dispatches.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
