package booking

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketstall/internal/database"
	"marketstall/internal/domain/reservation"
	"marketstall/internal/domain/slip"
)

const saturday = "2024-06-01"

var pngSlip = "data:image/png;base64," + base64.StdEncoding.EncodeToString(
	[]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"))

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	db        *gorm.DB
	store     reservation.Repository
	holds     *HoldService
	payments  *PaymentService
	reviews   *ReviewService
	occupancy *OccupancyService
	clock     *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:booking_%s?mode=memory&cache=shared", name), database.Options{Silent: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, reservation.Migrate, slip.Migrate))

	store := reservation.NewRepository(db)
	slips := slip.NewStore(slip.NewRepository(db), t.TempDir(), "/static", 0)
	clock := &testClock{t: time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC)}

	f := &fixture{
		db:        db,
		store:     store,
		holds:     NewHoldService(store, HoldConfig{}, nil),
		payments:  NewPaymentService(store, slip.NewMetadataReader(), slips, decimal.NewFromInt(1), nil),
		reviews:   NewReviewService(store, nil),
		occupancy: NewOccupancyService(store),
		clock:     clock,
	}
	f.holds.now = clock.Now
	f.payments.now = clock.Now
	f.reviews.now = clock.Now
	f.occupancy.now = clock.Now
	return f
}

func (f *fixture) hold(t *testing.T, userID int64, ids ...string) *HoldResult {
	t.Helper()
	res, err := f.holds.RequestHold(context.Background(), userID, saturday, ids)
	require.NoError(t, err)
	return res
}

func (f *fixture) pay(userID int64, groupID string, amount int64, ids ...string) (*FinalizeResult, error) {
	return f.payments.SubmitPayment(context.Background(), SubmitPaymentInput{
		UserID:         userID,
		PaymentGroupID: groupID,
		LockIDs:        ids,
		Date:           saturday,
		Amount:         decimal.NewFromInt(amount),
		SlipImage:      pngSlip,
		Metadata:       map[string]any{"qrData": map[string]any{"amount": fmt.Sprintf("%d.00", amount)}},
		ProductType:    "clothing",
	})
}

func (f *fixture) active(t *testing.T, ids ...string) []reservation.Booking {
	t.Helper()
	rows, err := f.store.ActiveBookings(context.Background(), saturday, ids)
	require.NoError(t, err)
	return rows
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
