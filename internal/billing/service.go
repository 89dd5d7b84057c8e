package billing

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevensea/warehouse/internal/shared"
)

// RepositoryPort defines data access methods for billings.
type RepositoryPort interface {
	List(ctx context.Context) ([]Billing, error)
	Update(ctx context.Context, fn func([]Billing) ([]Billing, bool, error)) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles billing business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
	locker *shared.Locker

	mu sync.Mutex
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: now}
}

// WithLocker makes every write hold BillingLockKey so that other processes
// sharing the store cannot overwrite each other.
func (s *Service) WithLocker(locker *shared.Locker) *Service {
	s.locker = locker
	return s
}

// Create records a billing. An empty status defaults to pending.
func (s *Service) Create(ctx context.Context, input Input) (Billing, error) {
	input = normalizeInput(input)
	if input.Status == "" {
		input.Status = StatusPending
	}
	if err := validateInput(input); err != nil {
		return Billing{}, err
	}
	now := s.now()
	created := Billing{
		ID:            uuid.NewString(),
		InvoiceNumber: input.InvoiceNumber,
		VendorNumber:  input.VendorNumber,
		Status:        input.Status,
		Amount:        input.Amount,
		DueDate:       input.DueDate,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.update(ctx, func(billings []Billing) ([]Billing, bool, error) {
		return append(billings, created), true, nil
	})
	if err != nil {
		return Billing{}, err
	}
	s.record(ctx, "billing:create", created.ID, map[string]any{"invoice": created.InvoiceNumber, "amount": created.Amount.String()})
	return created, nil
}

// Update overwrites the writable fields of a billing and refreshes updatedAt.
func (s *Service) Update(ctx context.Context, id string, input Input) (Billing, error) {
	input = normalizeInput(input)
	var updated Billing
	err := s.update(ctx, func(billings []Billing) ([]Billing, bool, error) {
		i := indexOf(billings, id)
		if i < 0 {
			return nil, false, ErrBillingNotFound
		}
		if input.Status == "" {
			input.Status = billings[i].Status
		}
		if err := validateInput(input); err != nil {
			return nil, false, err
		}
		b := billings[i]
		b.InvoiceNumber = input.InvoiceNumber
		b.VendorNumber = input.VendorNumber
		b.Status = input.Status
		b.Amount = input.Amount
		b.DueDate = input.DueDate
		b.Notes = input.Notes
		b.UpdatedAt = s.now()
		billings[i] = b
		updated = b
		return billings, true, nil
	})
	if err != nil {
		return Billing{}, err
	}
	s.record(ctx, "billing:update", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// Delete removes a billing.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.update(ctx, func(billings []Billing) ([]Billing, bool, error) {
		i := indexOf(billings, id)
		if i < 0 {
			return nil, false, ErrBillingNotFound
		}
		return append(billings[:i], billings[i+1:]...), true, nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "billing:delete", id, nil)
	return nil
}

// MarkPaid settles a billing. Paid and cancelled billings are rejected.
func (s *Service) MarkPaid(ctx context.Context, id string) (Billing, error) {
	var paid Billing
	err := s.update(ctx, func(billings []Billing) ([]Billing, bool, error) {
		i := indexOf(billings, id)
		if i < 0 {
			return nil, false, ErrBillingNotFound
		}
		if billings[i].Status.Closed() {
			return nil, false, ErrBillingClosed
		}
		now := s.now()
		billings[i].Status = StatusPaid
		billings[i].PaidAt = &now
		billings[i].UpdatedAt = now
		paid = billings[i]
		return billings, true, nil
	})
	if err != nil {
		return Billing{}, err
	}
	s.record(ctx, "billing:pay", id, map[string]any{"amount": paid.Amount.String()})
	return paid, nil
}

// MarkOverdue moves pending billings due before now to overdue and reports
// how many changed.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	count := 0
	err := s.update(ctx, func(billings []Billing) ([]Billing, bool, error) {
		for i := range billings {
			if billings[i].IsOverdueAt(now) {
				billings[i].Status = StatusOverdue
				billings[i].UpdatedAt = now
				count++
			}
		}
		return billings, count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "billings marked overdue", slog.Int("count", count))
	}
	return count, nil
}

// Get returns one billing visible in scope.
func (s *Service) Get(ctx context.Context, id string, scope shared.VendorScope) (Billing, error) {
	billings, err := s.repo.List(ctx)
	if err != nil {
		return Billing{}, err
	}
	i := indexOf(billings, id)
	if i < 0 || !scope.Allows(billings[i].VendorNumber) {
		return Billing{}, ErrBillingNotFound
	}
	return billings[i], nil
}

// List returns billings in scope matching the filter, latest due date first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Billing, error) {
	billings, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Billing, 0, len(billings))
	for _, b := range billings {
		if !filter.Scope.Allows(b.VendorNumber) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.InvoiceNumber), search) &&
			!strings.Contains(strings.ToLower(b.VendorNumber), search) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	return out, nil
}

// Aging groups unpaid billings in scope by days past due as of asOf.
func (s *Service) Aging(ctx context.Context, asOf time.Time, scope shared.VendorScope) (AgingBucket, error) {
	billings, err := s.repo.List(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	var bucket AgingBucket
	for _, b := range billings {
		if b.Status.Closed() || b.Status == StatusDraft || !scope.Allows(b.VendorNumber) {
			continue
		}
		days := int(asOf.Sub(b.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(b.Amount)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(b.Amount)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(b.Amount)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(b.Amount)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(b.Amount)
		}
	}
	return bucket, nil
}

func (s *Service) update(ctx context.Context, fn func([]Billing) ([]Billing, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locker.WithLock(ctx, shared.BillingLockKey, func(ctx context.Context) error {
		return s.repo.Update(ctx, fn)
	})
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor := ""
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		actor = p.UserID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "billing",
		EntityID: id,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func indexOf(billings []Billing, id string) int {
	for i := range billings {
		if billings[i].ID == id {
			return i
		}
	}
	return -1
}

func normalizeInput(in Input) Input {
	in.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	in.VendorNumber = strings.TrimSpace(in.VendorNumber)
	in.Status = Status(strings.ToLower(strings.TrimSpace(string(in.Status))))
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

func validateInput(in Input) error {
	var verrs shared.ValidationErrors
	if in.InvoiceNumber == "" {
		verrs.Add("invoiceNumber", "is required")
	}
	if in.VendorNumber == "" {
		verrs.Add("vendorNumber", "is required")
	}
	if !in.Status.Valid() {
		verrs.Add("status", "must be one of draft, pending, paid, overdue, cancelled")
	}
	if in.Amount.LessThan(decimal.Zero) {
		verrs.Add("amount", "must not be negative")
	}
	if in.DueDate.IsZero() {
		verrs.Add("dueDate", "is required")
	}
	return verrs.Err()
}
