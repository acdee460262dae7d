package contract

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aircare/contract-engine/logger"
	"github.com/aircare/contract-engine/pricing"
)

// Notifier delivers a submitted contract to one downstream channel.
// Implementations that are not configured return ErrNotifierDisabled.
type Notifier interface {
	Notify(ctx context.Context, c *Contract) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, c *Contract) error

func (f NotifierFunc) Notify(ctx context.Context, c *Contract) error { return f(ctx, c) }

// Service is the entry point used by the API.
type Service struct {
	store Store
	email Notifier
	crm   Notifier
	log   *logger.Logger

	// MaxSyncAttempts bounds automatic delivery retries per contract.
	MaxSyncAttempts int
	// DeliveryTimeout bounds one delivery round for a contract, both
	// channels together. Channels still running when it expires are
	// marked failed and left to RetryFailedSyncs.
	DeliveryTimeout time.Duration
	// Now is the clock used for CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

// NewService wires a service. Nil notifiers are treated as not configured.
func NewService(store Store, email, crm Notifier, log *logger.Logger) *Service {
	disabled := NotifierFunc(func(context.Context, *Contract) error { return ErrNotifierDisabled })
	if email == nil {
		email = disabled
	}
	if crm == nil {
		crm = disabled
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:           store,
		email:           email,
		crm:             crm,
		log:             log.Named("contract"),
		MaxSyncAttempts: 5,
		DeliveryTimeout: 8 * time.Second,
		Now:             time.Now,
	}
}

// Quote prices a selection for the live preview.
func (s *Service) Quote(_ context.Context, tier pricing.Tier, outdoor, indoor int, freq pricing.PaymentFrequency) (pricing.Quote, error) {
	if err := ValidateQuoteInput(tier, outdoor, indoor, freq); err != nil {
		return pricing.Quote{}, err
	}
	return pricing.NewQuote(tier, outdoor, indoor, freq)
}

// Submit validates, prices and stores a submission, then delivers it to the
// email and CRM channels. Delivery failures are recorded on the contract and
// logged; they never fail the submission once it is stored.
//
// Delivery is detached from ctx: a caller that goes away does not mark the
// channels failed. It is bounded by DeliveryTimeout instead.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Contract, error) {
	sub = Normalize(sub)
	if err := Validate(sub); err != nil {
		return nil, err
	}

	c := sub.Customer
	quote, err := pricing.NewQuote(c.Tier, c.OutdoorUnits, c.IndoorUnits, c.Frequency)
	if err != nil {
		return nil, markValidation(err, "Controleer het aantal buiten- en binnendelen")
	}

	contract := &Contract{
		ID:          NewContractID(),
		Customer:    c,
		Sepa:        sub.Sepa,
		Quote:       quote,
		CreatedAt:   s.Now().UTC(),
		EmailStatus: SyncPending,
		CRMStatus:   SyncPending,
	}

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, errors.Wrap(err, "save contract")
	}

	s.log.Infow("contract submitted",
		"contract_id", contract.ID,
		"tier", c.Tier,
		"frequency", c.Frequency,
		"total", quote.Total.String(),
	)

	s.deliver(context.WithoutCancel(ctx), contract)
	return contract, nil
}

// Get returns a stored contract.
func (s *Service) Get(ctx context.Context, id string) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get contract %s", id)
	}
	return c, nil
}

// List returns all stored contracts, newest first.
func (s *Service) List(ctx context.Context) ([]Contract, error) {
	cs, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list contracts")
	}
	return cs, nil
}

// RetryFailedSyncs re-delivers contracts with an undelivered channel.
// It returns how many contracts were fully delivered in this round.
func (s *Service) RetryFailedSyncs(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingSync(ctx, s.MaxSyncAttempts)
	if err != nil {
		return 0, errors.Wrap(err, "list pending syncs")
	}

	delivered := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		c := &pending[i]
		s.deliver(ctx, c)
		if !c.NeedsSync() {
			delivered++
		}
	}
	return delivered, nil
}

// deliver sends the contract to every channel that has not succeeded yet and
// records the outcome. It never returns an error.
func (s *Service) deliver(ctx context.Context, c *Contract) {
	var failures []string

	sendCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.DeliveryTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, s.DeliveryTimeout)
	}
	defer cancel()

	send := func(channel string, status SyncStatus, n Notifier) SyncStatus {
		if status.Done() {
			return status
		}
		err := n.Notify(sendCtx, c)
		switch {
		case err == nil:
			return SyncSent
		case errors.Is(err, ErrNotifierDisabled):
			s.log.Debugw("channel not configured", "contract_id", c.ID, "channel", channel)
			return SyncSkipped
		default:
			s.log.Warnw("delivery failed, contract is stored",
				"contract_id", c.ID, "channel", channel, "error", err)
			failures = append(failures, channel+": "+err.Error())
			return SyncFailed
		}
	}

	c.EmailStatus = send("email", c.EmailStatus, s.email)
	c.CRMStatus = send("crm", c.CRMStatus, s.crm)
	c.SyncAttempts++
	c.LastSyncError = strings.Join(failures, "; ")

	update := SyncUpdate{
		EmailStatus:   c.EmailStatus,
		CRMStatus:     c.CRMStatus,
		SyncAttempts:  c.SyncAttempts,
		LastSyncError: c.LastSyncError,
	}
	if err := s.store.UpdateSync(ctx, c.ID, update); err != nil {
		s.log.Errorw("failed to record delivery status", "contract_id", c.ID, "error", err)
	}
}
