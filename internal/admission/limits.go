package admission

import (
	"time"
)

// Action is the category of public form a request is trying to reach. Each
// category carries its own rate-limit budget.
type Action string

const (
	ActionNewsletter Action = "newsletter"
	ActionDonation   Action = "donation"
	ActionContact    Action = "contact"
	ActionSignup     Action = "signup"
)

// Limit is a (max requests, trailing window) pair.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// normalLimits apply to clean clients, strictLimits to clients the
// classifier has flagged as suspicious for the current request.
var (
	normalLimits = map[Action]Limit{
		ActionNewsletter: {MaxRequests: 3, Window: 60 * time.Minute},
		ActionDonation:   {MaxRequests: 10, Window: 60 * time.Minute},
		ActionContact:    {MaxRequests: 5, Window: 30 * time.Minute},
		ActionSignup:     {MaxRequests: 3, Window: 60 * time.Minute},
	}
	strictLimits = map[Action]Limit{
		ActionNewsletter: {MaxRequests: 1, Window: 60 * time.Minute},
		ActionDonation:   {MaxRequests: 3, Window: 60 * time.Minute},
		ActionContact:    {MaxRequests: 2, Window: 30 * time.Minute},
		ActionSignup:     {MaxRequests: 1, Window: 60 * time.Minute},
	}
)

// ValidAction reports whether the action is a known category.
func ValidAction(a Action) bool {
	_, ok := normalLimits[a]
	return ok
}

// LimitFor returns the limit pair for an action. Unknown actions get the
// newsletter budget, the tightest of the defaults.
func LimitFor(a Action, strict bool) Limit {
	table := normalLimits
	if strict {
		table = strictLimits
	}
	if l, ok := table[a]; ok {
		return l
	}
	return table[ActionNewsletter]
}
