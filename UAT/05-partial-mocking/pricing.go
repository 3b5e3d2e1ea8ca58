// Package pricing computes order totals.
package pricing

// Calculator prices line items.
type Calculator struct {
	TaxRate float64
}

// Discount returns the fraction taken off a subtotal.
func (c *Calculator) Discount(subtotal float64) float64 {
	if subtotal >= 100 {
		return 0.1
	}

	return 0
}

// Tax returns the tax owed on amount.
func (c *Calculator) Tax(amount float64) float64 {
	return amount * c.TaxRate
}

// Pricer is what Total needs from a calculator.
type Pricer interface {
	Discount(subtotal float64) float64
	Tax(amount float64) float64
}

// Total applies the discount and then tax to the sum of prices.
func Total(p Pricer, prices ...float64) float64 {
	subtotal := 0.0
	for _, price := range prices {
		subtotal += price
	}

	discounted := subtotal * (1 - p.Discount(subtotal))

	return discounted + p.Tax(discounted)
}
