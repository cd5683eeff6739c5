package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefundState string

const (
	RefundStateRequested  RefundState = "requested"
	RefundStateProcessing RefundState = "processing"
	RefundStateCompleted  RefundState = "completed"
	RefundStateFailed     RefundState = "failed"
)

type RefundRail string

const (
	RefundRailPayPal RefundRail = "paypal"
	RefundRailCrypto RefundRail = "crypto"
)

// RefundRequest is a reversal workflow instance. The paypal rail auto-advances
// requested -> processing -> completed/failed; the crypto rail requires an
// explicit approval before processing and an explicit completion once the
// external transfer is observed. At most one non-failed request exists per
// payment.
type RefundRequest struct {
	ID               uuid.UUID
	PaymentID        uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	Reason           string
	State            RefundState
	Rail             RefundRail
	RequiresApproval bool
	ApprovedBy       *uuid.UUID
	ApprovedAt       *time.Time
	ProviderRefundID *string
	CompletedAt      *time.Time
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r *RefundRequest) IsTerminal() bool {
	return r.State == RefundStateCompleted || r.State == RefundStateFailed
}
