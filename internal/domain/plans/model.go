package plans

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Interval string

const (
	Monthly Interval = "Monthly"
	Yearly  Interval = "Yearly"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
)

// FreePackID is the business id of the zero-amount plan attached on signup.
const FreePackID = "FREE_001"

type Plan struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	PackID        string   `gorm:"column:pack_id;not null;uniqueIndex:idx_plans_pack_id" json:"packId" validate:"required,max=64"`
	Amount        int64    `gorm:"not null;default:0" json:"amount" validate:"gte=0"`
	Currency      string   `gorm:"type:varchar(8);not null;default:'usd'" json:"currency" validate:"required,len=3"`
	Interval      Interval `gorm:"column:billing_interval;type:varchar(16);not null" json:"subscriptionType" validate:"required,oneof=Monthly Yearly"`
	Status        Status   `gorm:"type:varchar(16);not null;default:'Active'" json:"status" validate:"required,oneof=Active Suspended"`
	TrialDays     int      `gorm:"not null;default:0" json:"freeTrialDays" validate:"gte=0"`
	StripePriceID *string  `gorm:"column:stripe_price_id" json:"stripePriceId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var validate = validator.New()

func (p *Plan) Validate() error {
	return validate.Struct(p)
}

func (p *Plan) IsActive() bool {
	return p != nil && p.Status == StatusActive
}

// IsFree reports whether p is a zero-amount plan managed without the gateway.
func (p *Plan) IsFree() bool {
	return p != nil && p.Amount == 0
}

// NewFreePlan returns the catalog entry used when no free plan exists yet.
func NewFreePlan() Plan {
	return Plan{
		PackID:   FreePackID,
		Amount:   0,
		Currency: "usd",
		Interval: Monthly,
		Status:   StatusActive,
	}
}
