package billing

// ResolveLineTotal applies the derive-vs-manual rule to a single row.
// A derivable row always yields area*rate regardless of the stored total;
// otherwise the stored total is authoritative and a missing one counts as
// zero (validation rejects it before submission).
func ResolveLineTotal(item LineItem) float64 {
	if item.Derivable() {
		return *item.Area * item.Rate
	}
	if item.Total != nil {
		return *item.Total
	}
	return 0
}

// Calculate computes the aggregate totals for a document. It is pure and
// idempotent: the same inputs always produce the same outputs. Negative
// area or rate values are not clamped here; field validation rejects them
// upstream. A discount larger than the subtotal floors the grand total at
// zero.
func Calculate(items []LineItem, extraWork []ExtraWorkItem, discount float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += ResolveLineTotal(item)
	}
	for _, extra := range extraWork {
		if extra.Total != nil {
			subtotal += *extra.Total
		}
	}
	grand := subtotal - discount
	if grand < 0 {
		grand = 0
	}
	return Totals{Subtotal: subtotal, GrandTotal: grand}
}
