// Package campaign fans bulk emails out to every recipient of a batch.
package campaign

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

// DefaultConcurrency bounds in-flight sends per batch.
const DefaultConcurrency = 8

// Reorder window: orders placed between 35 and 30 days ago.
const (
	reorderMinAge = 30 * 24 * time.Hour
	reorderMaxAge = 35 * 24 * time.Hour
)

// A customer whose last order is older than inactiveAfter gets a comeback offer.
const (
	inactiveAfter  = 30 * 24 * time.Hour
	comebackCode   = "RETOUR10"
	reminderLayout = "02/01/2006 15:04"
)

var (
	co2PerOrder     = decimal.RequireFromString("2.5")
	plasticPerOrder = decimal.RequireFromString("1.2")
)

// Report summarises one batch. A send counted as Fallback was written to the
// fallback log; Queued sends were handed to a background dispatcher; Failed
// counts sends that were none of these.
type Report struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Queued    int `json:"queued,omitempty"`
	Fallback  int `json:"fallback"`
	Failed    int `json:"failed"`
}

// Runner builds and sends campaign batches from store snapshots.
type Runner struct {
	users       storage.UserStore
	orders      storage.OrderStore
	bookings    storage.BookingStore
	mailer      email.Dispatcher
	logger      *zap.Logger
	frontendURL string
	concurrency int
	now         func() time.Time
}

func NewRunner(users storage.UserStore, orders storage.OrderStore, bookings storage.BookingStore, mailer email.Dispatcher, frontendURL string, logger *zap.Logger) *Runner {
	return &Runner{
		users:       users,
		orders:      orders,
		bookings:    bookings,
		mailer:      mailer,
		logger:      logger,
		frontendURL: frontendURL,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// WithConcurrency sets the per-batch send limit.
func (r *Runner) WithConcurrency(n int) *Runner {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

type send struct {
	kind email.Kind
	to   string
	data email.Data
}

// fanOut sends every message with bounded concurrency. One failed send never
// stops the rest of the batch.
func (r *Runner) fanOut(ctx context.Context, name string, batch []send) Report {
	var delivered, queued, fallback, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, s := range batch {
		s := s
		g.Go(func() error {
			res := r.mailer.Send(ctx, s.kind, s.to, s.data)
			switch {
			case res.Delivered:
				delivered.Add(1)
			case res.Queued:
				queued.Add(1)
			case res.Fallback:
				fallback.Add(1)
			default:
				failed.Add(1)
				r.logger.Warn("campaign send failed", zap.String("campaign", name), zap.String("kind", string(s.kind)))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Attempted: len(batch),
		Delivered: int(delivered.Load()),
		Queued:    int(queued.Load()),
		Fallback:  int(fallback.Load()),
		Failed:    int(failed.Load()),
	}
	r.logger.Info("campaign finished",
		zap.String("campaign", name),
		zap.Int("attempted", report.Attempted),
		zap.Int("delivered", report.Delivered),
		zap.Int("queued", report.Queued),
		zap.Int("fallback", report.Fallback),
		zap.Int("failed", report.Failed),
	)
	return report
}

// Newsletter sends the monthly newsletter to every user.
func (r *Runner) Newsletter(ctx context.Context, promotions []email.Promotion, products []email.Product) (Report, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	if promotions == nil {
		promotions = []email.Promotion{}
	}
	if products == nil {
		products = []email.Product{}
	}
	batch := make([]send, 0, len(users))
	for _, u := range users {
		batch = append(batch, send{kind: email.KindNewsletter, to: u.Email, data: email.Data{
			"FirstName":   FirstName(u),
			"Promotions":  promotions,
			"NewProducts": products,
		}})
	}
	return r.fanOut(ctx, "newsletter", batch), nil
}

// EcoReports sends each user the impact of their orders.
func (r *Runner) EcoReports(ctx context.Context, monthYear string) (Report, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	orders, err := r.orders.ListOrders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list orders: %w", err)
	}
	perUser := make(map[string]int64, len(users))
	for _, o := range orders {
		perUser[o.UserID]++
	}

	batch := make([]send, 0, len(users))
	for _, u := range users {
		n := perUser[u.ID]
		count := decimal.NewFromInt(n)
		batch = append(batch, send{kind: email.KindEcoReport, to: u.Email, data: email.Data{
			"MonthYear":    monthYear,
			"OrderCount":   n,
			"CO2Saved":     count.Mul(co2PerOrder).StringFixed(1),
			"PlasticSaved": count.Mul(plasticPerOrder).StringFixed(1),
		}})
	}
	return r.fanOut(ctx, "eco_report", batch), nil
}

// ReorderSuggestions sends one suggestion per item of every order placed
// between 30 and 35 days ago.
func (r *Runner) ReorderSuggestions(ctx context.Context) (Report, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	orders, err := r.orders.ListOrders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list orders: %w", err)
	}
	emails := make(map[string]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}

	now := r.now()
	var batch []send
	for _, o := range orders {
		age := now.Sub(o.CreatedAt)
		if age < reorderMinAge || age > reorderMaxAge {
			continue
		}
		to, ok := emails[o.UserID]
		if !ok {
			continue
		}
		for _, item := range o.Items {
			batch = append(batch, send{kind: email.KindReorderSuggestion, to: to, data: email.Data{
				"ProductName": item.Name,
				"ProductID":   item.ProductID,
				"OrderDate":   o.CreatedAt.Format("02/01/2006"),
				"Days":        int(age.Hours() / 24),
				"Link":        r.frontendURL + "/products/" + item.ProductID,
			}})
		}
	}
	return r.fanOut(ctx, "reorder_suggestion", batch), nil
}

// InactiveUserOffers sends a comeback discount to every customer whose most
// recent order is more than 30 days old. Users who never ordered are skipped.
func (r *Runner) InactiveUserOffers(ctx context.Context) (Report, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	orders, err := r.orders.ListOrders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list orders: %w", err)
	}
	lastOrder := make(map[string]time.Time, len(users))
	for _, o := range orders {
		if o.CreatedAt.After(lastOrder[o.UserID]) {
			lastOrder[o.UserID] = o.CreatedAt
		}
	}

	now := r.now()
	var batch []send
	for _, u := range users {
		last, ok := lastOrder[u.ID]
		if !ok {
			continue
		}
		idle := now.Sub(last)
		if idle <= inactiveAfter {
			continue
		}
		batch = append(batch, send{kind: email.KindInactiveUserOffer, to: u.Email, data: email.Data{
			"Days":         int(idle.Hours() / 24),
			"DiscountCode": comebackCode,
			"Link":         r.frontendURL + "/products",
		}})
	}
	return r.fanOut(ctx, "inactive_user_offer", batch), nil
}

// ServiceReminders reminds customers of bookings scheduled for tomorrow, in
// the runner clock's time zone. Cancelled bookings are skipped.
func (r *Runner) ServiceReminders(ctx context.Context) (Report, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	bookings, err := r.bookings.ListBookings(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list bookings: %w", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	now := r.now()
	loc := now.Location()
	ty, tm, td := now.AddDate(0, 0, 1).Date()
	var batch []send
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			continue
		}
		at := b.ScheduledAt.In(loc)
		if y, m, d := at.Date(); y != ty || m != tm || d != td {
			continue
		}
		u, ok := byID[b.UserID]
		if !ok {
			continue
		}
		batch = append(batch, send{kind: email.KindServiceReminder, to: u.Email, data: email.Data{
			"FirstName":     FirstName(u),
			"BookingID":     b.ID,
			"ServiceName":   b.ServiceName,
			"ScheduledDate": at.Format(reminderLayout),
		}})
	}
	return r.fanOut(ctx, "service_reminder", batch), nil
}

// FirstName is the greeting name used in emails.
func FirstName(u models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Client"
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// MonthYear formats t as "octobre 2025".
func MonthYear(t time.Time) string {
	return fmt.Sprintf("%s %d", frenchMonths[t.Month()-1], t.Year())
}
