package usecase

import (
	"fmt"

	"campcart/internal/domain"
	"campcart/internal/dto"
)

// reservationKind picks the backend aggregate. Any dated line routes the
// whole cart through the booking path.
func reservationKind(items []domain.LineItem) domain.ReservationKind {
	for _, item := range items {
		if item.IsDated() {
			return domain.ReservationKindBooking
		}
	}
	return domain.ReservationKindGearOrder
}

func gearLine(item domain.LineItem) (dto.GearOrderLine, error) {
	total, err := item.ComputeTotal()
	if err != nil {
		return dto.GearOrderLine{}, fmt.Errorf("line %s: %w", item.ID, err)
	}
	eq := item.Equipment
	return dto.GearOrderLine{
		ItemType:   dto.GearItemType,
		ItemID:     eq.ID,
		Quantity:   item.Quantity,
		UnitPrice:  eq.PricePerDay,
		TotalPrice: total,
		RentalDays: item.RentalDays,
	}, nil
}

func buildBookingRequest(items []domain.LineItem, note string, promo *domain.AppliedPromo) (dto.BookingRequest, error) {
	req := dto.BookingRequest{
		Services: []dto.BookingServiceLine{},
		Combos:   []dto.BookingComboLine{},
		Note:     note,
	}
	if promo != nil {
		req.PromoCode = promo.Code
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return dto.BookingRequest{}, fmt.Errorf("line %s: %w", item.ID, err)
		}

		switch item.Kind {
		case domain.ItemKindService:
			people, err := item.People()
			if err != nil {
				return dto.BookingRequest{}, err
			}
			req.Services = append(req.Services, dto.BookingServiceLine{
				ServiceID:    item.Service.ID,
				CheckInDate:  item.CheckIn.String(),
				CheckOutDate: item.CheckOut.String(),
				People:       people,
				ExtraPeople:  item.ExtraPeople,
				TotalPrice:   item.TotalPrice,
			})
		case domain.ItemKindCombo:
			people, err := item.People()
			if err != nil {
				return dto.BookingRequest{}, err
			}
			req.Combos = append(req.Combos, dto.BookingComboLine{
				ComboID:      item.Combo.ID,
				CheckInDate:  item.CheckIn.String(),
				CheckOutDate: item.CheckOut.String(),
				People:       people,
				ExtraPeople:  item.ExtraPeople,
				TotalPrice:   item.TotalPrice,
			})
		case domain.ItemKindEquipment:
			line, err := gearLine(item)
			if err != nil {
				return dto.BookingRequest{}, err
			}
			req.Gear = append(req.Gear, line)
		default:
			return dto.BookingRequest{}, fmt.Errorf("%w: %q", domain.ErrUnknownItemKind, item.Kind)
		}
	}

	return req, nil
}

func buildGearOrderRequest(identity *domain.Identity, items []domain.LineItem, totals domain.Totals, promo *domain.AppliedPromo) (dto.GearOrderRequest, error) {
	req := dto.GearOrderRequest{
		UserID:       identity.UserID,
		CustomerName: identity.Name,
		Email:        identity.Email,
		Phone:        identity.Phone,
		TotalPrice:   totals.Total,
		Items:        make([]dto.GearOrderLine, 0, len(items)),
	}
	if promo != nil {
		req.PromoCode = promo.Code
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return dto.GearOrderRequest{}, fmt.Errorf("line %s: %w", item.ID, err)
		}

		switch item.Kind {
		case domain.ItemKindEquipment:
			line, err := gearLine(item)
			if err != nil {
				return dto.GearOrderRequest{}, err
			}
			req.Items = append(req.Items, line)
		case domain.ItemKindService, domain.ItemKindCombo:
			return dto.GearOrderRequest{}, fmt.Errorf("line %s: %s cannot be part of a gear order", item.ID, item.Kind)
		default:
			return dto.GearOrderRequest{}, fmt.Errorf("%w: %q", domain.ErrUnknownItemKind, item.Kind)
		}
	}

	return req, nil
}
