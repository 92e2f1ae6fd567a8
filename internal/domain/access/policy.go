package access

import (
	"time"

	"voiceclone-backend/internal/domain/subscriptions"
)

const (
	CapVoiceClone    = "voice_clone"
	CapChatbot       = "chatbot"
	CapPriorityQueue = "priority_queue"
)

// Policy is what the product surface needs to know about one user's access.
type Policy struct {
	State        subscriptions.State `json:"state"`
	Entitled     bool                `json:"entitled"`
	EndsAt       *time.Time          `json:"endsAt,omitempty"`
	Capabilities []string            `json:"capabilities"`
}

func ComputePolicy(now time.Time, sub *subscriptions.Subscription) Policy {
	state := subscriptions.Classify(sub, now)
	p := Policy{
		State:        state,
		Entitled:     subscriptions.Entitled(sub, now),
		Capabilities: CapabilitiesFor(state),
	}
	if sub != nil {
		end := sub.EndDate
		p.EndsAt = &end
	}
	return p
}

func CapabilitiesFor(state subscriptions.State) []string {
	switch state {
	case subscriptions.StateFree:
		return []string{CapChatbot}
	case subscriptions.StateTrialing:
		return []string{CapChatbot, CapVoiceClone}
	case subscriptions.StateActive, subscriptions.StatePendingCancel:
		return []string{CapChatbot, CapVoiceClone, CapPriorityQueue}
	default:
		return []string{}
	}
}
