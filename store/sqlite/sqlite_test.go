package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/pricing"
	"github.com/aircare/contract-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleContract(t *testing.T, id string, tier pricing.Tier, at time.Time) *contract.Contract {
	t.Helper()
	q, err := pricing.NewQuote(tier, 2, 3, pricing.Yearly)
	require.NoError(t, err)

	c := &contract.Contract{
		ID: id,
		Customer: contract.Customer{
			FirstName:      "Jan",
			LastName:       "de Vries",
			Email:          "jan@example.com",
			Phone:          "0612345678",
			Address:        "Keizersgracht 1",
			PostalCode:     "1015 CJ",
			City:           "Amsterdam",
			OutdoorUnits:   2,
			IndoorUnits:    3,
			Tier:           tier,
			Frequency:      pricing.Yearly,
			CustomerNumber: "K-1001",
		},
		Quote:       q,
		CreatedAt:   at,
		EmailStatus: contract.SyncPending,
		CRMStatus:   contract.SyncPending,
	}
	if tier.IsRecurring() {
		c.Sepa = &contract.Sepa{
			IBAN:          "NL91ABNA0417164300",
			AccountHolder: "J. de Vries",
			MandateDate:   time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			Signature:     "data:image/png;base64,AAAA",
		}
	}
	return c
}

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestStore_SaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	in := sampleContract(t, "OC-1", pricing.TierPremium, t0.Add(250*time.Millisecond))
	require.NoError(t, store.Save(ctx, in))

	got, err := store.Get(ctx, "OC-1")
	require.NoError(t, err)

	assert.Equal(t, in.Customer, got.Customer)
	require.NotNil(t, got.Sepa)
	assert.Equal(t, in.Sepa.IBAN, got.Sepa.IBAN)
	assert.True(t, in.Sepa.MandateDate.Equal(got.Sepa.MandateDate))
	assert.True(t, got.Sepa.HasSignature())
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, contract.SyncPending, got.EmailStatus)

	// Quote snapshot survives the round trip
	assert.True(t, in.Quote.Total.Equal(got.Quote.Total), "total %s vs %s", in.Quote.Total, got.Quote.Total)
	assert.True(t, in.Quote.MonthlyPrice.Equal(got.Quote.MonthlyPrice))
	assert.Equal(t, in.Quote.Tier, got.Quote.Tier)
	assert.Len(t, got.Quote.Lines, len(in.Quote.Lines))
}

func TestStore_NoneTierHasNoMandate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-1", pricing.TierNone, t0)))

	got, err := store.Get(ctx, "OC-1")
	require.NoError(t, err)
	assert.Nil(t, got.Sepa)
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-1", pricing.TierBasic, t0)))
	err := store.Save(ctx, sampleContract(t, "OC-1", pricing.TierBasic, t0))
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	store := newStore(t)

	_, err := store.Get(context.Background(), "OC-NOPE")
	require.Error(t, err)
	assert.True(t, contract.IsNotFound(err))
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-A", pricing.TierBasic, t0)))
	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-B", pricing.TierBasic, t0.Add(500*time.Millisecond))))
	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-C", pricing.TierBasic, t0.Add(time.Second))))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "OC-C", list[0].ID)
	assert.Equal(t, "OC-B", list[1].ID)
	assert.Equal(t, "OC-A", list[2].ID)
}

func TestStore_ListPendingSync(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-DONE", pricing.TierBasic, t0)))
	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-FAILED", pricing.TierBasic, t0.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, sampleContract(t, "OC-EXHAUSTED", pricing.TierBasic, t0.Add(2*time.Minute))))

	require.NoError(t, store.UpdateSync(ctx, "OC-DONE", contract.SyncUpdate{
		EmailStatus: contract.SyncSent, CRMStatus: contract.SyncSkipped, SyncAttempts: 1,
	}))
	require.NoError(t, store.UpdateSync(ctx, "OC-FAILED", contract.SyncUpdate{
		EmailStatus: contract.SyncSent, CRMStatus: contract.SyncFailed, SyncAttempts: 1, LastSyncError: "crm: 502",
	}))
	require.NoError(t, store.UpdateSync(ctx, "OC-EXHAUSTED", contract.SyncUpdate{
		EmailStatus: contract.SyncFailed, CRMStatus: contract.SyncFailed, SyncAttempts: 5,
	}))

	pending, err := store.ListPendingSync(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "OC-FAILED", pending[0].ID)
	assert.Equal(t, "crm: 502", pending[0].LastSyncError)
	assert.Equal(t, contract.SyncFailed, pending[0].CRMStatus)
}

func TestStore_UpdateSyncMissing(t *testing.T) {
	store := newStore(t)

	err := store.UpdateSync(context.Background(), "OC-NOPE", contract.SyncUpdate{})
	assert.True(t, contract.IsNotFound(err))
}

func TestStore_WorksWithService(t *testing.T) {
	store := newStore(t)
	svc := contract.NewService(store, nil, nil, nil)

	c, err := svc.Submit(context.Background(), contract.Submission{
		Customer: sampleContract(t, "", pricing.TierNone, t0).Customer,
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.SyncSkipped, got.EmailStatus)
	assert.Equal(t, contract.SyncSkipped, got.CRMStatus)
	assert.Equal(t, 1, got.SyncAttempts)
}
