package billing

import (
	"time"

	"voiceclone-backend/internal/domain/subscriptions"
)

type SubscriptionDTO struct {
	PackID            string    `json:"packId,omitempty"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	TrialActive       bool      `json:"trialActive"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
	Type              string    `json:"type"`
	Managed           string    `json:"managed"`
}

func toDTO(s *subscriptions.Subscription) SubscriptionDTO {
	d := SubscriptionDTO{
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		TrialActive:       s.TrialActive,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Type:              string(s.Interval()),
		Managed:           "local",
	}
	if s.Plan != nil {
		d.PackID = s.Plan.PackID
	}
	if s.ExternalRef() != "" {
		d.Managed = "stripe"
	}
	return d
}
