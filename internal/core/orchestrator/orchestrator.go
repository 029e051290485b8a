package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"docpay/internal/config"
	"docpay/internal/core/classify"
	"docpay/internal/core/poll"
	"docpay/internal/delivery"
	"docpay/internal/domain/session"
	"docpay/internal/provider"
	"docpay/internal/provider/base"
	"docpay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// ErrSessionNotFound is returned for references this instance does not hold.
var ErrSessionNotFound = errors.New("session not found")

// CheckoutRequest is the caller-supplied commercial terms of an attempt.
type CheckoutRequest struct {
	Phone       string          `json:"phone"`
	Amount      int             `json:"amount"`
	ItemType    string          `json:"itemType"`
	ItemPayload json.RawMessage `json:"itemPayload,omitempty"`
	Destination string          `json:"destination"`
}

// Snapshot is the poll-safe, side-effect-free read of a session.
type Snapshot struct {
	Reference        string                `json:"reference"`
	State            string                `json:"state"`
	FailureReason    session.FailureReason `json:"failureReason,omitempty"`
	FailureHint      string                `json:"failureHint,omitempty"`
	ConfirmationCode string                `json:"confirmationCode,omitempty"`
	AttemptCount     int                   `json:"attemptCount"`
	MaxWaitSeconds   int                   `json:"maxWaitSeconds"`
	CustomerMessage  string                `json:"customerMessage,omitempty"`
}

// Orchestrator owns the confirmation lifecycle from initiation to the
// document-unlock hand-off. It is the single writer of every session;
// all transitions serialize through a per-reference lock so a provider
// callback racing a status poll cannot double-fire delivery.
type Orchestrator struct {
	cfg       config.ConfirmCfg
	gw        provider.Gateway
	store     repositories.SessionStore
	archive   repositories.SessionArchive // nil disables audit archiving
	guard     repositories.DeliveryGuard
	handler   delivery.Handler
	validator *base.CheckoutValidator
	sched     *poll.Scheduler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// messages to surface alongside the session handle, keyed by reference
	msgMu    sync.Mutex
	messages map[string]string
}

// New wires the orchestrator. archive may be nil; guard and handler must not be.
func New(
	cfg config.ConfirmCfg,
	gw provider.Gateway,
	store repositories.SessionStore,
	archive repositories.SessionArchive,
	guard repositories.DeliveryGuard,
	handler delivery.Handler,
) *Orchestrator {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		gw:        gw,
		store:     store,
		archive:   archive,
		guard:     guard,
		handler:   handler,
		validator: base.NewCheckoutValidator(cfg.MinAmount, cfg.MaxAmount),
		sched: poll.NewScheduler(gw, poll.Config{
			Interval:            cfg.PollInterval,
			MaxAttempts:         cfg.MaxPollAttempts,
			RateLimitMultiplier: cfg.RateLimitBackoffMultiplier,
			RateLimitCeiling:    cfg.RateLimitRetryCeiling,
			TransientCeiling:    cfg.TransientRetryCeiling,
		}),
		locks:      make(map[string]*sync.Mutex),
		tasks:      make(map[string]context.CancelFunc),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		messages:   make(map[string]string),
	}
}

// MaxWait is the hard ceiling on the polling window, surfaced up front
// so checkout UIs can say "checking for up to N seconds" truthfully.
func (o *Orchestrator) MaxWait() time.Duration {
	return o.sched.MaxWait()
}

// StartCheckout validates input, initiates the push, and returns the
// session handle. Validation failures return before any session exists.
// A gateway failure still yields a session, already terminal in Failed,
// so the attempt is addressable and auditable.
func (o *Orchestrator) StartCheckout(ctx context.Context, req CheckoutRequest) (*session.Session, error) {
	if err := o.validator.ValidateItemType(req.ItemType); err != nil {
		return nil, err
	}
	if err := o.validator.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := o.validator.ValidateDestination(req.Destination); err != nil {
		return nil, err
	}
	phone, err := base.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	sess := session.New(phone, req.Amount, req.ItemType, req.ItemPayload, req.Destination)

	res, err := o.gw.InitiatePush(ctx, provider.InitiateRequest{
		Phone:       phone,
		Amount:      req.Amount,
		AccountRef:  sess.Reference,
		Description: "docpay " + req.ItemType,
	})
	if err != nil {
		reason, hint := classifyInitiateError(err)
		log.Error().Err(err).
			Str("reference", sess.Reference).
			Str("phone", phone).
			Int("amount", req.Amount).
			Str("reason", string(reason)).
			Msg("push initiation failed")
		if ferr := sess.Fail(reason, hint); ferr != nil {
			return nil, ferr
		}
		o.store.Put(sess)
		o.archiveSession(sess)
		return sess, nil
	}

	// Adopt the provider-assigned identifiers; the provider reference is
	// the idempotency key for everything that follows.
	if res.Reference != "" {
		sess.Reference = res.Reference
	}
	sess.ProviderTransactionID = res.ProviderTransactionID
	if err := sess.TransitionTo(session.StateAwaitingUserAction); err != nil {
		return nil, err
	}
	o.store.Put(sess)
	o.setCustomerMessage(sess.Reference, res.CustomerMessage)

	log.Info().
		Str("reference", sess.Reference).
		Str("provider_tx_id", sess.ProviderTransactionID).
		Int("amount", sess.Amount).
		Str("item_type", sess.ItemType).
		Msg("push initiated, awaiting user action")

	o.spawnConfirm(sess.Reference, sess.ProviderTransactionID)
	return sess, nil
}

// GetSessionState is the poll-safe read for the UI.
func (o *Orchestrator) GetSessionState(reference string) (Snapshot, error) {
	sess, ok := o.store.Get(reference)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	lock := o.lockFor(reference)
	lock.Lock()
	defer lock.Unlock()
	return Snapshot{
		Reference:        sess.Reference,
		State:            sess.State.String(),
		FailureReason:    sess.FailureReason,
		FailureHint:      sess.FailureHint,
		ConfirmationCode: sess.ConfirmationCode,
		AttemptCount:     sess.AttemptCount,
		MaxWaitSeconds:   int(o.MaxWait().Seconds()),
		CustomerMessage:  o.customerMessage(reference),
	}, nil
}

// AbandonSession stops the confirmation promptly. The session lands in
// Abandoned, a timed-out-equivalent terminal state: the true payment
// outcome is unknown.
func (o *Orchestrator) AbandonSession(reference string) error {
	sess, ok := o.store.Get(reference)
	if !ok {
		return ErrSessionNotFound
	}
	lock := o.lockFor(reference)
	lock.Lock()
	if sess.State.Terminal() {
		lock.Unlock()
		return &session.ErrInvalidStateTransition{Reference: reference, From: sess.State, To: session.StateAbandoned}
	}
	if err := sess.TransitionTo(session.StateAbandoned); err != nil {
		lock.Unlock()
		return err
	}
	sess.CompletedAt = time.Now()
	lock.Unlock()

	o.cancelTask(reference)
	o.archiveSession(sess)
	log.Info().Str("reference", reference).Msg("session abandoned by caller")
	return nil
}

// HandleCallback applies the provider's asynchronous result push. It
// serializes through the same per-session lock as the polling path, so
// only the first terminal observation wins.
func (o *Orchestrator) HandleCallback(ctx context.Context, cb provider.CallbackResult) error {
	sess, ok := o.store.GetByProviderTransactionID(cb.ProviderTransactionID)
	if !ok {
		return ErrSessionNotFound
	}

	if cb.ResultCode == "0" {
		code := cb.Receipt
		if code == "" {
			code = cb.ProviderTransactionID
		}
		o.completeSession(ctx, sess.Reference, code)
		return nil
	}

	reason, hint := classify.Classify(cb.ResultCode, cb.ResultDesc)
	lock := o.lockFor(sess.Reference)
	lock.Lock()
	if sess.State.Terminal() {
		lock.Unlock()
		return nil
	}
	if err := sess.Fail(reason, hint); err != nil {
		lock.Unlock()
		return err
	}
	lock.Unlock()

	o.cancelTask(sess.Reference)
	o.archiveSession(sess)
	log.Info().
		Str("reference", sess.Reference).
		Str("provider_code", cb.ResultCode).
		Str("reason", string(reason)).
		Msg("session failed via provider callback")
	return nil
}

// Shutdown cancels all confirmation tasks and waits for them to exit.
func (o *Orchestrator) Shutdown() {
	o.rootCancel()
	o.wg.Wait()
}

// spawnConfirm starts the per-session background task: grace delay, the
// single AwaitingUserAction -> Polling edge, then the bounded poll loop.
func (o *Orchestrator) spawnConfirm(reference, providerTxID string) {
	ctx, cancel := context.WithCancel(o.rootCtx)
	o.mu.Lock()
	o.tasks[reference] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.clearTask(reference)
		o.confirm(ctx, reference, providerTxID)
	}()
}

func (o *Orchestrator) confirm(ctx context.Context, reference, providerTxID string) {
	// Grace delay before the first status query; the push prompt needs a
	// moment to reach the handset anyway.
	t := time.NewTimer(o.cfg.GraceDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	sess, ok := o.store.Get(reference)
	if !ok {
		return
	}

	lock := o.lockFor(reference)
	lock.Lock()
	if err := sess.TransitionTo(session.StatePolling); err != nil {
		// Terminal already (abandoned or resolved by callback).
		lock.Unlock()
		return
	}
	lock.Unlock()

	res := o.sched.Run(ctx, providerTxID, func(attempt int) {
		lock.Lock()
		sess.AttemptCount = attempt
		sess.LastPolledAt = time.Now()
		lock.Unlock()
	})

	switch res.Outcome {
	case poll.OutcomeCancelled:
		// Abandonment or shutdown already decided the session's fate.
		return

	case poll.OutcomeCompleted:
		o.completeSession(context.WithoutCancel(ctx), reference, res.ConfirmationCode)

	case poll.OutcomeFailed:
		reason, hint := classify.Classify(res.ProviderCode, res.ProviderDesc)
		lock.Lock()
		if sess.State.Terminal() {
			lock.Unlock()
			return
		}
		if err := sess.Fail(reason, hint); err != nil {
			lock.Unlock()
			return
		}
		lock.Unlock()
		o.archiveSession(sess)
		log.Info().
			Str("reference", reference).
			Str("provider_code", res.ProviderCode).
			Str("reason", string(reason)).
			Msg("session failed")

	case poll.OutcomeTimedOut:
		lock.Lock()
		if sess.State.Terminal() {
			lock.Unlock()
			return
		}
		if err := sess.TransitionTo(session.StateTimedOut); err != nil {
			lock.Unlock()
			return
		}
		sess.CompletedAt = time.Now()
		lock.Unlock()
		o.archiveSession(sess)
		log.Info().
			Str("reference", reference).
			Int("attempts", sess.AttemptCount).
			Msg("session timed out; outcome unknown, reconcile with the same reference")
	}
}

// completeSession performs the exactly-once transition to Completed and
// the delivery hand-off. The state transition under the session lock is
// the compare-and-swap; the guard is the cross-instance backstop against
// duplicate provider callbacks.
func (o *Orchestrator) completeSession(ctx context.Context, reference, confirmationCode string) {
	sess, ok := o.store.Get(reference)
	if !ok {
		return
	}

	lock := o.lockFor(reference)
	lock.Lock()
	if sess.State.Terminal() {
		lock.Unlock()
		return
	}
	if err := sess.Complete(confirmationCode); err != nil {
		lock.Unlock()
		return
	}
	lock.Unlock()

	o.cancelTask(reference)
	o.archiveSession(sess)

	acquired, err := o.guard.Acquire(ctx, reference)
	if err != nil {
		// The in-process CAS already succeeded; failing open here would
		// risk double delivery across instances, so skip and reconcile.
		log.Error().Err(err).Str("reference", reference).Msg("delivery guard unavailable, hand-off skipped")
		return
	}
	if !acquired {
		log.Warn().Str("reference", reference).Msg("duplicate completion signal suppressed")
		return
	}

	if err := o.handler.OnPaymentConfirmed(ctx, reference, confirmationCode); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("delivery hand-off failed")
		return
	}
	log.Info().
		Str("reference", reference).
		Str("confirmation_code", confirmationCode).
		Msg("payment confirmed, document unlocked")
}

func (o *Orchestrator) lockFor(reference string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[reference]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[reference] = lock
	}
	return lock
}

func (o *Orchestrator) cancelTask(reference string) {
	o.mu.Lock()
	cancel, ok := o.tasks[reference]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) clearTask(reference string) {
	o.mu.Lock()
	if cancel, ok := o.tasks[reference]; ok {
		cancel()
		delete(o.tasks, reference)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) archiveSession(sess *session.Session) {
	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.ArchiveSession(ctx, sess); err != nil {
		log.Error().Err(err).Str("reference", sess.Reference).Msg("session archive failed")
	}
}

func (o *Orchestrator) setCustomerMessage(reference, msg string) {
	if msg == "" {
		return
	}
	o.msgMu.Lock()
	o.messages[reference] = msg
	o.msgMu.Unlock()
}

func (o *Orchestrator) customerMessage(reference string) string {
	o.msgMu.Lock()
	defer o.msgMu.Unlock()
	return o.messages[reference]
}

// classifyInitiateError turns an initiation failure into a caller-safe
// reason. Rate limiting at initiation is still not the user's fault but
// the attempt cannot proceed, so it surfaces as a provider-side failure.
func classifyInitiateError(err error) (session.FailureReason, string) {
	if errors.Is(err, provider.ErrRateLimited) {
		return session.ReasonProviderServerError, "The payment service is busy. Try again in a moment."
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		return classify.Classify(perr.Code, perr.Message)
	}
	return session.ReasonNetworkError, "Could not reach the payment provider. Check your connection and try again."
}
