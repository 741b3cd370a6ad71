package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/users"
)

type recordingMetrics struct {
	mu       sync.Mutex
	placed   []float64
	rejected []string
}

func (r *recordingMetrics) OrderPlaced(_ context.Context, amount float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, amount)
}

func (r *recordingMetrics) OrderRejected(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

type fixture struct {
	svc     *Service
	fake    *awstest.Dynamo
	metrics *recordingMetrics
	hook    *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := newFake()
	log, hook := logtest.NewNullLogger()
	rec := &recordingMetrics{}
	svc := NewService(Deps{
		Store:       NewStore(fake, ordersTable, productsTable),
		Products:    catalog.NewStore(fake, productsTable),
		Users:       users.NewStore(fake, usersTable),
		Idempotency: idempotency.NewStore(fake, idemTable, time.Hour),
		Metrics:     rec,
		Log:         log,
	})

	var mu sync.Mutex
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	n := 0
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("order-%03d", n)
	}

	require.NoError(t, fake.Seed(usersTable, users.User{ID: "u1", Username: "alice", Role: users.RoleUser}))
	require.NoError(t, fake.Seed(usersTable, users.User{ID: "u2", Username: "bob", Role: users.RoleUser}))
	return &fixture{svc: svc, fake: fake, metrics: rec, hook: hook}
}

var address = Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}

func (f *fixture) place(userID string, items ...ItemRequest) (*View, error) {
	return f.svc.Place(context.Background(), PlaceInput{UserID: userID, Items: items, ShippingAddress: address})
}

func TestPlace_TotalAndStock(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 19.995, 10)
	seedProduct(t, f.fake, "p2", "Pad", 10, 5)

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 2}, ItemRequest{ProductID: "p2", Quantity: 1})

	require.NoError(t, err)
	assert.Equal(t, 49.99, v.TotalAmount)
	assert.Equal(t, StatusPending, v.Status)
	assert.Equal(t, address, v.ShippingAddress)
	require.NotNil(t, v.User)
	assert.Equal(t, "alice", v.User.Username)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "Pen", v.Items[0].Product.Name)
	assert.Equal(t, 19.995, v.Items[0].Price)
	assert.Equal(t, 2, v.Items[0].Quantity)

	assert.Equal(t, 8, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 4, stockOf(t, f.fake, "p2"))
	assert.Equal(t, []float64{49.99}, f.metrics.placed)
	assert.Equal(t, 1, f.fake.Calls("TransactWriteItems"))
}

func TestPlace_RoundsHalfAwayFromZero(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Clip", 1.005, 10)

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})

	require.NoError(t, err)
	assert.Equal(t, 1.01, v.TotalAmount)
}

func TestPlace_ProductNotFoundLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 10)

	_, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1}, ItemRequest{ProductID: "nope", Quantity: 1})

	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ProductID)
	assert.Equal(t, 10, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
	assert.Equal(t, 0, f.fake.Calls("TransactWriteItems"))
	assert.Equal(t, []string{"product_not_found"}, f.metrics.rejected)
}

func TestPlace_InsufficientStockFailsFast(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 2)
	seedProduct(t, f.fake, "p2", "Pad", 2, 10)

	_, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 3}, ItemRequest{ProductID: "p2", Quantity: 1})

	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "p1", short.ProductID)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 3, short.Requested)
	assert.Contains(t, short.Error(), "Pen")
	assert.Equal(t, 2, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 10, stockOf(t, f.fake, "p2"))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
}

func TestPlace_RepeatedProductLinesShareStock(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)

	// each line fits on its own but not together
	_, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 3}, ItemRequest{ProductID: "p1", Quantity: 3})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 5, short.Available)
	assert.Equal(t, 6, short.Requested)
	assert.Equal(t, 0, f.fake.Calls("TransactWriteItems"), "rejected before commit")
	assert.Equal(t, 5, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 0, f.fake.Len(ordersTable))

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 2}, ItemRequest{ProductID: "p1", Quantity: 3})
	require.NoError(t, err)
	assert.Len(t, v.Items, 2)
	assert.Equal(t, 10.0, v.TotalAmount)
	assert.Equal(t, 0, stockOf(t, f.fake, "p1"))
}

func TestPlace_ConcurrentOrdersForAllStock(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.place("u1", ItemRequest{ProductID: "p1", Quantity: 5})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var short *InsufficientStockError
		assert.ErrorAs(t, err, &short)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 1, f.fake.Len(ordersTable))
}

func TestPlace_TransactionErrorLeavesStock(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	boom := errors.New("boom")
	f.fake.FailOn("TransactWriteItems", boom)

	_, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 0, f.fake.Len(ordersTable))
	assert.Empty(t, f.metrics.placed)
}

func TestPlace_CommittedOrderSurvivesDisplayLookupFailure(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	f.fake.FailOn("BatchGetItem", errors.New("boom"))

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, "order-001", v.ID)
	assert.Equal(t, 4.0, v.TotalAmount)
	require.Len(t, v.Items, 1)
	assert.Nil(t, v.Items[0].Product)
	assert.Equal(t, "p1", v.Items[0].ProductID)
	assert.Nil(t, v.User)
	assert.Equal(t, 1, f.fake.Len(ordersTable))
	assert.Equal(t, 3, stockOf(t, f.fake, "p1"))
	assert.Equal(t, []float64{4}, f.metrics.placed)
	assert.Equal(t, "order placed but display fields unavailable", f.hook.LastEntry().Message)
}

func TestPlace_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	ctx := context.Background()
	in := PlaceInput{
		UserID:          "u1",
		Items:           []ItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: address,
		IdempotencyKey:  "req-1",
	}

	first, err := f.svc.Place(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, in)
	var dup *DuplicateRequestError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.OrderID)
	assert.Equal(t, 4, stockOf(t, f.fake, "p1"))
	assert.Equal(t, 1, f.fake.Len(ordersTable))

	// keys are scoped per user
	in.UserID = "u2"
	_, err = f.svc.Place(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, f.fake, "p1"))
}

func TestPlace_Empty(t *testing.T) {
	f := newFixture(t)

	_, err := f.place("u1")

	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestUpdateStatus_AnyTransition(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	ctx := context.Background()
	owner := Actor{UserID: "u1"}

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	for _, next := range []string{"delivered", "pending", "cancelled", "processing", "processing"} {
		updated, err := f.svc.UpdateStatus(ctx, owner, v.ID, next)
		require.NoError(t, err, next)
		assert.Equal(t, Status(next), updated.Status)
		assert.True(t, updated.UpdatedAt.After(v.CreatedAt))
	}
}

func TestUpdateStatus_Rejections(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	ctx := context.Background()

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: "u1"}, v.ID, "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: "u2"}, v.ID, "shipped")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: "u1"}, "missing", "shipped")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.Get(ctx, Actor{UserID: "u1"}, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	updated, err := f.svc.UpdateStatus(ctx, Actor{UserID: "admin", Admin: true}, v.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)
}

func TestGet_VisibilityAndDeletedProduct(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 5)
	ctx := context.Background()

	v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = catalog.NewStore(f.fake, productsTable).Delete(ctx, "p1")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, Actor{UserID: "u1"}, v.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].Product)
	assert.Equal(t, 2.0, got.Items[0].Price)

	_, err = f.svc.Get(ctx, Actor{UserID: "u2"}, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(ctx, Actor{UserID: "u2", Admin: true}, v.ID)
	assert.NoError(t, err)
}

func TestList_NewestFirstWithPaging(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 2, 50)
	ctx := context.Background()

	var placed []string
	for i := 0; i < 3; i++ {
		v, err := f.place("u1", ItemRequest{ProductID: "p1", Quantity: 1})
		require.NoError(t, err)
		placed = append(placed, v.ID)
	}
	_, err := f.place("u2", ItemRequest{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: "u1"}, placed[0], "shipped")
	require.NoError(t, err)

	page, err := f.svc.List(ctx, Actor{UserID: "u1"}, ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, placed[2], page.Items[0].ID)
	assert.Equal(t, placed[0], page.Items[2].ID)
	assert.Equal(t, "Pen", page.Items[0].Items[0].Product.Name)
	assert.Equal(t, 10, page.Pagination.Limit)

	second, err := f.svc.List(ctx, Actor{UserID: "u1"}, ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, placed[0], second.Items[0].ID)
	assert.True(t, second.Pagination.HasPrev)
	assert.False(t, second.Pagination.HasNext)
	assert.Equal(t, 2, second.Pagination.Pages)

	shipped, err := f.svc.List(ctx, Actor{UserID: "u1"}, ListQuery{Status: "shipped"})
	require.NoError(t, err)
	require.Len(t, shipped.Items, 1)
	assert.Equal(t, placed[0], shipped.Items[0].ID)

	_, err = f.svc.List(ctx, Actor{UserID: "u1"}, ListQuery{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.fake, "p1", "Pen", 10, 50)
	seedProduct(t, f.fake, "p2", "Pad", 2.5, 50)
	ctx := context.Background()

	empty, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalOrders)
	assert.Equal(t, 0.0, empty.AverageOrderValue)

	_, err = f.place("u1", ItemRequest{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	v, err := f.place("u2", ItemRequest{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: "u2"}, v.ID, "cancelled")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 22.5, stats.TotalRevenue)
	assert.Equal(t, 11.25, stats.AverageOrderValue)
	require.Len(t, stats.StatusBreakdown, len(Statuses))
	assert.Equal(t, StatusCount{Status: StatusPending, Count: 1}, stats.StatusBreakdown[0])
	assert.Equal(t, StatusCount{Status: StatusCancelled, Count: 1}, stats.StatusBreakdown[4])
}

func TestParseStatus(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseStatus("PENDING")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
