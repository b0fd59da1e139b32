package models

// Tier is the account class governing quota limits.
type Tier string

const (
	TierGuest   Tier = "guest"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// QuotaUsage describes consumption of one quota dimension. A nil Limit
// means unlimited, in which case Remaining is nil as well.
type QuotaUsage struct {
	Used      int  `json:"used"`
	Limit     *int `json:"limit,omitempty"`
	Remaining *int `json:"remaining,omitempty"`
}

// NewQuotaUsage derives Remaining from used and limit. Remaining never goes
// below zero even if used overshoots the limit.
func NewQuotaUsage(used int, limit *int) QuotaUsage {
	u := QuotaUsage{Used: used, Limit: limit}
	if limit != nil {
		rem := *limit - used
		if rem < 0 {
			rem = 0
		}
		u.Remaining = &rem
	}
	return u
}

// QuotaStatus is the full quota picture for one account (and, for the
// per-message dimension, one target record).
type QuotaStatus struct {
	Tier Tier `json:"tier"`

	Analyses     QuotaUsage `json:"analyses"`
	Explorations QuotaUsage `json:"explorations"`
	Messages     QuotaUsage `json:"messages"`

	CanAnalyze bool `json:"can_analyze"`
	CanExplore bool `json:"can_explore"`

	// Reasons holds machine-readable codes explaining denied permissions.
	Reasons []string `json:"reasons,omitempty"`
}

// BillingStatus is what the external billing-status provider reports.
// Loading=true means the entitlement is still resolving; a non-free tier in
// that state is treated optimistically, a free tier is not.
type BillingStatus struct {
	Tier    Tier
	Loading bool
}
