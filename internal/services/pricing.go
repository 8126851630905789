package services

import (
	"fmt"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type Totals struct {
	Subtotal int64
	Tax      int64
	CODFee   int64
	Total    int64
}

type Pricing struct {
	taxRate decimal.Decimal
	codFee  int64
}

func NewPricing(taxRate string, codFee int64) (*Pricing, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, fmt.Errorf("%w: tax rate %q: %v", ErrInvalidPricing, taxRate, err)
	}
	if rate.IsNegative() || codFee < 0 {
		return nil, fmt.Errorf("%w: negative tax rate or COD fee", ErrInvalidPricing)
	}
	return &Pricing{taxRate: rate, codFee: codFee}, nil
}

// Quote prices a cart. Tax is rounded half away from zero to whole units and
// the COD fee only applies to cash on delivery.
func (p *Pricing) Quote(lines []domain.CartLine, method domain.PaymentMethod) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.UnitPrice * int64(l.Quantity)
	}
	t.Tax = decimal.NewFromInt(t.Subtotal).Mul(p.taxRate).Round(0).IntPart()
	if method == domain.PaymentCOD {
		t.CODFee = p.codFee
	}
	t.Total = t.Subtotal + t.Tax + t.CODFee
	return t
}

func orderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Price:       l.UnitPrice,
			Quantity:    l.Quantity,
			Image:       l.ImageRef,
		})
	}
	return items
}
