package contract_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/contract/store"
	"github.com/aircare/contract-engine/pricing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func validSubmission(tier pricing.Tier) contract.Submission {
	sub := contract.Submission{
		Customer: contract.Customer{
			FirstName:    " Jan ",
			LastName:     "de Vries",
			Email:        "Jan@Example.com",
			Phone:        "0612345678",
			Address:      "Keizersgracht 1",
			PostalCode:   "1015 cj",
			City:         "Amsterdam",
			OutdoorUnits: 2,
			IndoorUnits:  4,
			Tier:         tier,
			Frequency:    pricing.Yearly,
		},
	}
	if tier.IsRecurring() {
		sub.Sepa = &contract.Sepa{
			IBAN:          "nl91 abna 0417 1643 00",
			AccountHolder: "J. de Vries",
			MandateDate:   time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			Signature:     "data:image/png;base64,AAAA",
		}
	}
	return sub
}

type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (n *countingNotifier) Notify(context.Context, *contract.Contract) error {
	n.calls.Add(1)
	return n.err
}

// blockingNotifier hangs until its context is done, like an endpoint that
// accepts the connection and never answers.
type blockingNotifier struct{}

func (blockingNotifier) Notify(ctx context.Context, _ *contract.Contract) error {
	<-ctx.Done()
	return ctx.Err()
}

func newService(t *testing.T, email, crm contract.Notifier) (*contract.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := contract.NewService(mem, email, crm, nil)
	svc.Now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc, mem
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_StoresPricedContract(t *testing.T) {
	// GIVEN: A valid Basic submission, billed yearly, 2 outdoor + 4 indoor
	// WHEN: Submitting with working notifiers
	// THEN: The contract is stored with its quote and both channels are sent

	email, crm := &countingNotifier{}, &countingNotifier{}
	svc, mem := newService(t, email, crm)
	ctx := context.Background()

	c, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)

	assert.Regexp(t, `^OC-[0-9A-Z]{26}$`, c.ID)
	assert.Equal(t, "Jan", c.Customer.FirstName)
	assert.Equal(t, "jan@example.com", c.Customer.Email)
	assert.Equal(t, "1015 CJ", c.Customer.PostalCode)
	assert.Equal(t, "NL91ABNA0417164300", c.Sepa.IBAN)
	assert.Equal(t, "370", c.Quote.Total.String())
	assert.Equal(t, contract.SyncSent, c.EmailStatus)
	assert.Equal(t, contract.SyncSent, c.CRMStatus)
	assert.Equal(t, int32(1), email.calls.Load())
	assert.Equal(t, int32(1), crm.calls.Load())

	stored, err := mem.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.SyncAttempts)
	assert.Equal(t, contract.SyncSent, stored.CRMStatus)
}

func TestSubmit_NoneTierDropsSepa(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	sub := validSubmission(pricing.TierNone)
	sub.Sepa = &contract.Sepa{IBAN: "garbage"}

	c, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Nil(t, c.Sepa)
	assert.Equal(t, "483", c.Quote.Total.String()) // 2×179 + 2×89.50 = 537, minus 10%
	assert.Equal(t, contract.SyncSkipped, c.EmailStatus)
	assert.Equal(t, contract.SyncSkipped, c.CRMStatus)
}

func TestSubmit_RecurringTierRequiresValidIBAN(t *testing.T) {
	svc, mem := newService(t, nil, nil)
	ctx := context.Background()

	sub := validSubmission(pricing.TierPremium)
	sub.Sepa.IBAN = "NL91ABNA0417164301"

	_, err := svc.Submit(ctx, sub)
	require.Error(t, err)
	assert.True(t, contract.IsValidation(err))

	var verr *contract.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "iban", verr.Fields["sepa.iban"])

	sub.Sepa = nil
	_, err = svc.Submit(ctx, sub)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields["sepa"])

	all, err := mem.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected submissions are not stored")
}

func TestSubmit_RejectsInvalidCustomer(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	sub := validSubmission(pricing.TierBasic)
	sub.Customer.Email = "not-an-email"
	sub.Customer.PostalCode = "12345"
	sub.Customer.OutdoorUnits = 0

	_, err := svc.Submit(context.Background(), sub)
	var verr *contract.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields["customer.email"])
	assert.Equal(t, "postcode_nl", verr.Fields["customer.postal_code"])
	assert.Equal(t, "min", verr.Fields["customer.outdoor_units"])
}

func TestSubmit_NotificationFailureDoesNotFailSubmission(t *testing.T) {
	// GIVEN: The CRM webhook is down
	// WHEN: Submitting
	// THEN: The contract is stored, email is sent, CRM is marked failed

	email := &countingNotifier{}
	crm := &countingNotifier{err: errors.New("webhook returned 502")}
	svc, mem := newService(t, email, crm)
	ctx := context.Background()

	c, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)
	assert.Equal(t, contract.SyncSent, c.EmailStatus)
	assert.Equal(t, contract.SyncFailed, c.CRMStatus)
	assert.Contains(t, c.LastSyncError, "webhook returned 502")

	stored, err := mem.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.SyncFailed, stored.CRMStatus)
}

func TestSubmit_HangingChannelIsBoundedByDeliveryTimeout(t *testing.T) {
	// GIVEN: The CRM endpoint never answers
	// WHEN: Submitting with a short delivery timeout
	// THEN: Submit returns promptly, the contract is stored and CRM is failed

	email := &countingNotifier{}
	svc, mem := newService(t, email, blockingNotifier{})
	svc.DeliveryTimeout = 50 * time.Millisecond
	ctx := context.Background()

	start := time.Now()
	c, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, contract.SyncSent, c.EmailStatus)
	assert.Equal(t, contract.SyncFailed, c.CRMStatus)
	assert.Contains(t, c.LastSyncError, "crm: ")

	stored, err := mem.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.SyncFailed, stored.CRMStatus)
	assert.Equal(t, 1, stored.SyncAttempts)
}

func TestSubmit_CancelledCallerDoesNotFailDelivery(t *testing.T) {
	// GIVEN: The client disconnected, so the request context is cancelled
	// WHEN: Submitting
	// THEN: Delivery still runs on a live context and both channels are sent

	var sawCancelled atomic.Bool
	notifier := contract.NotifierFunc(func(ctx context.Context, _ *contract.Contract) error {
		if ctx.Err() != nil {
			sawCancelled.Store(true)
			return ctx.Err()
		}
		return nil
	})
	svc, mem := newService(t, notifier, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)
	assert.False(t, sawCancelled.Load())
	assert.Equal(t, contract.SyncSent, c.EmailStatus)
	assert.Equal(t, contract.SyncSent, c.CRMStatus)

	stored, err := mem.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, stored.NeedsSync())
}

// =============================================================================
// RETRY
// =============================================================================

func TestRetryFailedSyncs_OnlyResendsFailedChannels(t *testing.T) {
	email := &countingNotifier{}
	crm := &countingNotifier{err: errors.New("timeout")}
	svc, mem := newService(t, email, crm)
	ctx := context.Background()

	c, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)

	// CRM comes back up
	crm.err = nil

	delivered, err := svc.RetryFailedSyncs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, int32(1), email.calls.Load(), "email was already sent")
	assert.Equal(t, int32(2), crm.calls.Load())

	stored, err := mem.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.SyncSent, stored.CRMStatus)
	assert.Equal(t, 2, stored.SyncAttempts)
	assert.Empty(t, stored.LastSyncError)

	delivered, err = svc.RetryFailedSyncs(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered, "nothing left to deliver")
}

func TestRetryFailedSyncs_StopsAtMaxAttempts(t *testing.T) {
	crm := &countingNotifier{err: errors.New("down")}
	svc, _ := newService(t, &countingNotifier{}, crm)
	svc.MaxSyncAttempts = 3
	ctx := context.Background()

	_, err := svc.Submit(ctx, validSubmission(pricing.TierBasic))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.RetryFailedSyncs(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), crm.calls.Load())
}

// =============================================================================
// QUOTE / GET
// =============================================================================

func TestQuote(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	q, err := svc.Quote(context.Background(), pricing.TierPremium, 1, 1, pricing.Monthly)
	require.NoError(t, err)
	assert.Equal(t, "16", q.Total.String())

	_, err = svc.Quote(context.Background(), pricing.TierPremium, 0, 1, pricing.Monthly)
	assert.True(t, contract.IsValidation(err))
	assert.True(t, errors.Is(err, pricing.ErrInvalidInput))
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	_, err := svc.Get(context.Background(), "OC-missing")
	assert.True(t, contract.IsNotFound(err))
}

func TestNewContractID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := contract.NewContractID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
