package domain

import "time"

type PromoCode struct {
	ID         int64
	Code       string
	PercentOff int
	Active     bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.PercentOff <= 0 || p.PercentOff > 100 {
		return false
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	return true
}
