package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sevensea/warehouse/internal/shared"
)

// Status enumerates billing statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Closed reports whether the billing can no longer be paid.
func (s Status) Closed() bool {
	return s == StatusPaid || s == StatusCancelled
}

var (
	// ErrBillingNotFound is returned for unknown billing ids.
	ErrBillingNotFound = shared.Kinded(shared.ErrNotFound, "billing: billing not found")
	// ErrBillingClosed rejects payment of a paid or cancelled billing.
	ErrBillingClosed = shared.Kinded(shared.ErrConflict, "billing: billing is already paid or cancelled")
)

// Billing is a vendor invoice. Amount is persisted as a decimal string and
// accepts either a JSON number or a string on the way in.
type Billing struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	VendorNumber  string          `json:"vendorNumber"`
	Status        Status          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

// IsOverdueAt reports whether a pending billing is past its due date.
func (b Billing) IsOverdueAt(now time.Time) bool {
	return b.Status == StatusPending && !b.DueDate.IsZero() && b.DueDate.Before(now)
}

// Input carries the writable fields of a billing.
type Input struct {
	InvoiceNumber string          `json:"invoiceNumber" validate:"required,max=64"`
	VendorNumber  string          `json:"vendorNumber" validate:"required,max=50"`
	Status        Status          `json:"status" validate:"omitempty,oneof=draft pending paid overdue cancelled"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate" validate:"required"`
	Notes         string          `json:"notes" validate:"max=1000"`
}

// Filter narrows billing listings.
type Filter struct {
	Status Status
	Search string
	Scope  shared.VendorScope
}

// AgingBucket sums unpaid amounts by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket30"`
	Bucket60  decimal.Decimal `json:"bucket60"`
	Bucket90  decimal.Decimal `json:"bucket90"`
	Bucket120 decimal.Decimal `json:"bucket120"`
}

// Total sums every bucket.
func (a AgingBucket) Total() decimal.Decimal {
	return a.Current.Add(a.Bucket30).Add(a.Bucket60).Add(a.Bucket90).Add(a.Bucket120)
}

// UnmarshalJSON accepts dueDate as either YYYY-MM-DD or RFC3339.
func (in *Input) UnmarshalJSON(data []byte) error {
	type alias Input
	aux := struct {
		*alias
		DueDate string `json:"dueDate"`
	}{alias: (*alias)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	due, err := parseDate(aux.DueDate)
	if err != nil {
		return err
	}
	in.DueDate = due
	return nil
}

const dateLayout = "2006-01-02"

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("billing: date %q is not YYYY-MM-DD or RFC3339", v)
	}
	return t, nil
}
