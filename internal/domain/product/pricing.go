package product

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnavailableError indicates the product is switched off on the menu.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.Name)
}

// VariantNotFoundError indicates no variant matches the requested size and
// temperature.
type VariantNotFoundError struct {
	Name        string
	Size        string
	Temperature string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s %s not found for %s", e.Size, e.Temperature, e.Name)
}

// Selection is what the customer picked for one cart line.
type Selection struct {
	Size        string
	Temperature string
	Quantity    int
	Modifiers   []string
}

// Quote is the priced result of a Selection.
type Quote struct {
	UnitPrice decimal.Decimal
	// Modifiers holds only the requested modifiers that exist on the
	// product, in request order, with the price at the time of quoting.
	Modifiers []Modifier
	Subtotal  decimal.Decimal
}

// Price resolves the unit price for sel and computes the line subtotal:
// unitPrice*qty plus each matched modifier price*qty. Unknown modifier names
// are ignored. Quantity is expected to be validated by the caller.
func (p *Product) Price(sel Selection) (Quote, error) {
	if !p.IsAvailable {
		return Quote{}, &UnavailableError{Name: p.Name}
	}

	unit, err := p.unitPrice(sel.Size, sel.Temperature)
	if err != nil {
		return Quote{}, err
	}

	qty := decimal.NewFromInt(int64(sel.Quantity))
	subtotal := unit.Mul(qty)

	applied := make([]Modifier, 0, len(sel.Modifiers))
	for _, name := range sel.Modifiers {
		m, ok := p.modifier(name)
		if !ok {
			continue
		}
		subtotal = subtotal.Add(m.Price.Mul(qty))
		applied = append(applied, m)
	}

	return Quote{
		UnitPrice: unit,
		Modifiers: applied,
		Subtotal:  subtotal,
	}, nil
}

func (p *Product) unitPrice(size, temperature string) (decimal.Decimal, error) {
	if len(p.Variants) == 0 {
		return p.BasePrice, nil
	}
	for _, v := range p.Variants {
		if v.Size == size && v.Temperature == temperature {
			return v.Price, nil
		}
	}
	return decimal.Zero, &VariantNotFoundError{
		Name:        p.Name,
		Size:        size,
		Temperature: temperature,
	}
}

func (p *Product) modifier(name string) (Modifier, bool) {
	for _, m := range p.Modifiers {
		if m.Name == name {
			return m, true
		}
	}
	return Modifier{}, false
}
