package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/campaign"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

// AdminService backs the admin endpoints. Callers must have passed AdminGate.
type AdminService struct {
	users         storage.UserStore
	orders        storage.OrderStore
	bookings      storage.BookingStore
	campaigns     *campaign.Runner
	mailer        email.Dispatcher
	allowFullName bool
	logger        *zap.Logger
	now           func() time.Time

	// jobs tracks campaigns running past the request that started them.
	jobs sync.WaitGroup
}

func NewAdminService(
	users storage.UserStore,
	orders storage.OrderStore,
	bookings storage.BookingStore,
	campaigns *campaign.Runner,
	mailer email.Dispatcher,
	allowFullName bool,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		users:         users,
		orders:        orders,
		bookings:      bookings,
		campaigns:     campaigns,
		mailer:        mailer,
		allowFullName: allowFullName,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *AdminService) Stats(ctx context.Context) (dto.Stats, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return dto.Stats{}, storeError("list users", err)
	}
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return dto.Stats{}, storeError("list orders", err)
	}
	bookings, err := s.bookings.ListBookings(ctx)
	if err != nil {
		return dto.Stats{}, storeError("list bookings", err)
	}
	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return dto.Stats{
		TotalUsers:    len(users),
		TotalOrders:   len(orders),
		TotalBookings: len(bookings),
		Revenue:       revenue.StringFixed(2),
	}, nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}
	return models.Views(users, s.allowFullName), nil
}

func (s *AdminService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, storeError("list orders", err)
	}
	return orders, nil
}

func (s *AdminService) ListBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.bookings.ListBookings(ctx)
	if err != nil {
		return nil, storeError("list bookings", err)
	}
	return bookings, nil
}

// Promote grants the admin role. Promoting an admin is a no-op.
func (s *AdminService) Promote(ctx context.Context, actor models.User, id string) (models.UserView, error) {
	user, err := s.users.PromoteToAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.UserView{}, ErrUserNotFound
		}
		return models.UserView{}, storeError("promote user", err)
	}
	s.logger.Info("user promoted", zap.String("user_id", user.ID), zap.String("by", actor.ID))
	return user.View(s.allowFullName), nil
}

// DeleteAllUsers wipes every account, including the caller's.
func (s *AdminService) DeleteAllUsers(ctx context.Context, actor models.User) error {
	if err := s.users.DeleteAllUsers(ctx); err != nil {
		return storeError("delete users", err)
	}
	s.logger.Warn("all users deleted", zap.String("by", actor.ID))
	return nil
}

// SendNewsletter starts the newsletter in the background and returns at once.
func (s *AdminService) SendNewsletter(ctx context.Context, req dto.NewsletterRequest) (dto.CampaignJob, error) {
	promotions := make([]email.Promotion, 0, len(req.Promotions))
	for _, p := range req.Promotions {
		promotions = append(promotions, email.Promotion{Title: p.Title, Description: p.Description})
	}
	products := make([]email.Product, 0, len(req.NewProducts))
	for _, p := range req.NewProducts {
		products = append(products, email.Product{Name: p.Name, Price: p.Price})
	}
	return s.start(ctx, "newsletter", func(ctx context.Context) (campaign.Report, error) {
		return s.campaigns.Newsletter(ctx, promotions, products)
	}), nil
}

// SendEcoReports starts the eco report campaign in the background.
func (s *AdminService) SendEcoReports(ctx context.Context, monthYear string) (dto.CampaignJob, error) {
	monthYear = strings.TrimSpace(monthYear)
	if monthYear == "" {
		monthYear = "Ce mois"
	}
	return s.start(ctx, "eco_report", func(ctx context.Context) (campaign.Report, error) {
		return s.campaigns.EcoReports(ctx, monthYear)
	}), nil
}

func (s *AdminService) start(ctx context.Context, name string, run func(context.Context) (campaign.Report, error)) dto.CampaignJob {
	job := dto.CampaignJob{Campaign: name, StartedAt: s.now().UTC()}
	bg := context.WithoutCancel(ctx)
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if _, err := run(bg); err != nil {
			s.logger.Error("campaign aborted", zap.String("campaign", name), zap.Error(err))
		}
	}()
	s.logger.Info("campaign started", zap.String("campaign", name))
	return job
}

// Drain waits for background campaigns until ctx ends.
func (s *AdminService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// testEmails maps the short names accepted by the test endpoint to sample messages.
var testEmails = map[string]struct {
	kind email.Kind
	data email.Data
}{
	"welcome": {email.KindWelcome, email.Data{"FirstName": "Client"}},
	"order": {email.KindOrderConfirmation, email.Data{
		"OrderID": "TEST1234",
		"Items":   []email.ItemLine{{Name: "Nettoyage standard", Quantity: 1, Subtotal: "49.99"}},
		"Total":   "49.99",
	}},
	"booking": {email.KindBookingConfirmation, email.Data{"BookingID": "BOOK123", "ServiceName": "Ménage", "ScheduledDate": "10/12/2025 10:00"}},
	"reset":   {email.KindPasswordReset, email.Data{"Link": "https://ekonzims.com/reset-password?token=TEST"}},
}

// SendTestEmail sends a sample of kind ("welcome", "order", "booking" or "reset") to to.
func (s *AdminService) SendTestEmail(ctx context.Context, kind, to string) (email.Result, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return email.Result{}, invalid("to", "is required")
	}
	sample, ok := testEmails[strings.TrimSpace(kind)]
	if !ok {
		return email.Result{}, invalid("type", "unknown email type")
	}
	return s.mailer.Send(ctx, sample.kind, to, sample.data), nil
}
