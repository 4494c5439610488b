package models

import "tradebridge/internal/decimal"

// IsFilled reports whether an order element describes a completely filled
// order. Quantities are compared as exact decimals.
func IsFilled(e Element) (bool, error) {
	if e.Has(FieldQuantity) && e.Has(FieldCumulativeFilledQuantity) {
		qty, err := decimal.Parse(e.Get(FieldQuantity))
		if err != nil {
			return false, err
		}
		filled, err := decimal.Parse(e.Get(FieldCumulativeFilledQuantity))
		if err != nil {
			return false, err
		}
		return qty.Equal(filled), nil
	}
	if e.Has(FieldRemainingQuantity) {
		remaining, err := decimal.Parse(e.Get(FieldRemainingQuantity))
		if err != nil {
			return false, err
		}
		return remaining.IsZero(), nil
	}
	return false, nil
}

// OppositeSide maps BUY to SELL and back. Other values are returned unchanged.
func OppositeSide(side string) string {
	switch side {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return side
}
