package domain

import (
	"errors"
	"fmt"
	"math"
)

type ItemKind string

const (
	ItemKindService   ItemKind = "SERVICE"
	ItemKindCombo     ItemKind = "COMBO"
	ItemKindEquipment ItemKind = "EQUIPMENT"
)

var (
	ErrUnknownItemKind       = errors.New("unknown item kind")
	ErrVariantMismatch       = errors.New("item payload does not match its kind")
	ErrDateRequired          = errors.New("check-in date is required")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidDateRange      = errors.New("check-out must be after check-in")
	ErrQuantityOutOfRange    = errors.New("quantity out of range")
	ErrExtraPeopleNotAllowed = errors.New("extra people not allowed")
	ErrRentalDaysRequired    = errors.New("rental days must be at least 1")
	ErrRentalDaysOutOfRange  = errors.New("rental days out of range")
	ErrTotalOutOfRange       = errors.New("line total out of range")
)

const MaxRentalDays = 365

type ServiceRef struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Image              string `json:"image,omitempty"`
	Price              int64  `json:"price"`
	MinCapacity        int    `json:"minCapacity"`
	MaxCapacity        int    `json:"maxCapacity"`
	ExtraPeopleEnabled bool   `json:"extraPeopleEnabled"`
	MaxExtraPeople     int    `json:"maxExtraPeople"`
	ExtraPersonFee     int64  `json:"extraPersonFee"`
	MaxDurationDays    int    `json:"maxDurationDays"`
}

type ComboRef struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Image              string  `json:"image,omitempty"`
	Price              int64   `json:"price"`
	ServiceIDs         []int64 `json:"serviceIds"`
	MaxCapacity        int     `json:"maxCapacity"`
	ExtraPeopleEnabled bool    `json:"extraPeopleEnabled"`
	MaxExtraPeople     int     `json:"maxExtraPeople"`
	ExtraPersonFee     int64   `json:"extraPersonFee"`
	MaxDurationDays    int     `json:"maxDurationDays"`
}

type EquipmentRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	PricePerDay int64  `json:"pricePerDay"`
	Available   int    `json:"available"`
}

// LineItem is one cart line. Exactly one of Service, Combo or Equipment is
// set, matching Kind.
type LineItem struct {
	ID          string        `json:"id"`
	Kind        ItemKind      `json:"kind"`
	Service     *ServiceRef   `json:"service,omitempty"`
	Combo       *ComboRef     `json:"combo,omitempty"`
	Equipment   *EquipmentRef `json:"equipment,omitempty"`
	Quantity    int           `json:"quantity"`
	CheckIn     Date          `json:"checkIn,omitempty"`
	CheckOut    Date          `json:"checkOut,omitempty"`
	RentalDays  int           `json:"rentalDays,omitempty"`
	ExtraPeople int           `json:"extraPeople"`
	TotalPrice  int64         `json:"totalPrice"`
}

func (li LineItem) checkVariant() error {
	switch li.Kind {
	case ItemKindService:
		if li.Service == nil || li.Combo != nil || li.Equipment != nil {
			return fmt.Errorf("%w: %s", ErrVariantMismatch, li.Kind)
		}
	case ItemKindCombo:
		if li.Combo == nil || li.Service != nil || li.Equipment != nil {
			return fmt.Errorf("%w: %s", ErrVariantMismatch, li.Kind)
		}
	case ItemKindEquipment:
		if li.Equipment == nil || li.Service != nil || li.Combo != nil {
			return fmt.Errorf("%w: %s", ErrVariantMismatch, li.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
	return nil
}

// IsDated reports whether the line books date-bound capacity.
func (li LineItem) IsDated() bool {
	return li.Kind == ItemKindService || li.Kind == ItemKindCombo
}

func (li LineItem) Name() string {
	switch li.Kind {
	case ItemKindService:
		if li.Service != nil {
			return li.Service.Name
		}
	case ItemKindCombo:
		if li.Combo != nil {
			return li.Combo.Name
		}
	case ItemKindEquipment:
		if li.Equipment != nil {
			return li.Equipment.Name
		}
	}
	return ""
}

// QuantityBounds returns the inclusive range of accepted quantities.
func (li LineItem) QuantityBounds() (int, int, error) {
	if err := li.checkVariant(); err != nil {
		return 0, 0, err
	}

	switch li.Kind {
	case ItemKindService:
		s := li.Service
		lo := s.MinCapacity
		if lo < 1 {
			lo = 1
		}
		hi := s.MaxCapacity
		if s.ExtraPeopleEnabled {
			hi += s.MaxExtraPeople
		}
		return lo, hi, nil
	case ItemKindCombo:
		return 1, 1, nil
	case ItemKindEquipment:
		return 1, li.Equipment.Available, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
}

// MaxExtraPeople returns how many extra people the line accepts; zero when
// the referenced service or combo does not enable them.
func (li LineItem) MaxExtraPeople() (int, error) {
	if err := li.checkVariant(); err != nil {
		return 0, err
	}

	switch li.Kind {
	case ItemKindService:
		if li.Service.ExtraPeopleEnabled {
			return li.Service.MaxExtraPeople, nil
		}
		return 0, nil
	case ItemKindCombo:
		if li.Combo.ExtraPeopleEnabled {
			return li.Combo.MaxExtraPeople, nil
		}
		return 0, nil
	case ItemKindEquipment:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
}

// ComputeTotal prices the line from its own snapshot of catalog data.
func (li LineItem) ComputeTotal() (int64, error) {
	if err := li.checkVariant(); err != nil {
		return 0, err
	}

	switch li.Kind {
	case ItemKindService:
		s := li.Service
		base, err := mulPrice(s.Price, int64(li.Quantity))
		if err != nil {
			return 0, err
		}
		extra, err := mulPrice(s.ExtraPersonFee, int64(li.ExtraPeople))
		if err != nil {
			return 0, err
		}
		return addPrice(base, extra)
	case ItemKindCombo:
		c := li.Combo
		extra, err := mulPrice(c.ExtraPersonFee, int64(li.ExtraPeople))
		if err != nil {
			return 0, err
		}
		return addPrice(c.Price, extra)
	case ItemKindEquipment:
		perDay, err := mulPrice(li.Equipment.PricePerDay, int64(li.Quantity))
		if err != nil {
			return 0, err
		}
		return mulPrice(perDay, int64(li.RentalDays))
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
}

func mulPrice(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, fmt.Errorf("%w: %d x %d", ErrTotalOutOfRange, a, b)
	}
	return r, nil
}

func addPrice(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrTotalOutOfRange, a, b)
	}
	return r, nil
}

// People is the head count sent to the booking backend.
func (li LineItem) People() (int, error) {
	if err := li.checkVariant(); err != nil {
		return 0, err
	}

	switch li.Kind {
	case ItemKindService:
		s := li.Service
		if s.ExtraPeopleEnabled && li.ExtraPeople > 0 {
			return max(s.MaxCapacity, s.MaxCapacity+li.ExtraPeople), nil
		}
		return li.Quantity, nil
	case ItemKindCombo:
		c := li.Combo
		if c.ExtraPeopleEnabled && li.ExtraPeople > 0 {
			return max(c.MaxCapacity, c.MaxCapacity+li.ExtraPeople), nil
		}
		return c.MaxCapacity, nil
	case ItemKindEquipment:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
}

// ServiceIDs lists the services whose date capacity the line consumes.
func (li LineItem) ServiceIDs() ([]int64, error) {
	if err := li.checkVariant(); err != nil {
		return nil, err
	}

	switch li.Kind {
	case ItemKindService:
		return []int64{li.Service.ID}, nil
	case ItemKindCombo:
		ids := make([]int64, len(li.Combo.ServiceIDs))
		copy(ids, li.Combo.ServiceIDs)
		return ids, nil
	case ItemKindEquipment:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemKind, li.Kind)
	}
}

func (li LineItem) maxDurationDays() int {
	switch li.Kind {
	case ItemKindService:
		return li.Service.MaxDurationDays
	case ItemKindCombo:
		return li.Combo.MaxDurationDays
	}
	return 0
}

// NormalizeDates fills a missing check-out with check-in plus the
// referenced max duration (at least one day).
func (li *LineItem) NormalizeDates() error {
	if err := li.checkVariant(); err != nil {
		return err
	}
	if !li.IsDated() {
		return nil
	}
	if li.CheckIn.IsZero() {
		return ErrDateRequired
	}
	if _, err := li.CheckIn.Time(); err != nil {
		return err
	}

	if li.CheckOut.IsZero() {
		out, err := li.CheckIn.AddDays(max(li.maxDurationDays(), 1))
		if err != nil {
			return err
		}
		li.CheckOut = out
		return nil
	}

	before, err := li.CheckIn.Before(li.CheckOut)
	if err != nil {
		return err
	}
	if !before {
		return ErrInvalidDateRange
	}
	return nil
}

// Validate checks the line against its own bounds. Dates must already be
// normalized.
func (li LineItem) Validate() error {
	if err := li.checkVariant(); err != nil {
		return err
	}

	lo, hi, err := li.QuantityBounds()
	if err != nil {
		return err
	}
	if li.Quantity < lo || li.Quantity > hi {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrQuantityOutOfRange, li.Quantity, lo, hi)
	}

	maxExtra, err := li.MaxExtraPeople()
	if err != nil {
		return err
	}
	if li.ExtraPeople < 0 || li.ExtraPeople > maxExtra {
		return fmt.Errorf("%w: %d (max %d)", ErrExtraPeopleNotAllowed, li.ExtraPeople, maxExtra)
	}

	if li.IsDated() {
		if li.CheckIn.IsZero() || li.CheckOut.IsZero() {
			return ErrDateRequired
		}
		before, err := li.CheckIn.Before(li.CheckOut)
		if err != nil {
			return err
		}
		if !before {
			return ErrInvalidDateRange
		}
	}

	if li.Kind == ItemKindEquipment {
		if li.RentalDays < 1 {
			return ErrRentalDaysRequired
		}
		if li.RentalDays > MaxRentalDays {
			return fmt.Errorf("%w: %d (max %d)", ErrRentalDaysOutOfRange, li.RentalDays, MaxRentalDays)
		}
	}

	return nil
}

func (li LineItem) Clone() LineItem {
	out := li
	if li.Service != nil {
		s := *li.Service
		out.Service = &s
	}
	if li.Combo != nil {
		c := *li.Combo
		c.ServiceIDs = append([]int64(nil), li.Combo.ServiceIDs...)
		out.Combo = &c
	}
	if li.Equipment != nil {
		e := *li.Equipment
		out.Equipment = &e
	}
	return out
}
