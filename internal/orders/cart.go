package orders

import "fmt"

// StallGroup is one stall's slice of the cart, in the customer's original
// line order.
type StallGroup struct {
	StallID string
	Lines   []CartLine
}

// CartWarning flags a line that was excluded from grouping, e.g. because
// its stall is not open on the selected festival day.
type CartWarning struct {
	ProductID string `json:"product_id"`
	StallID   string `json:"stall_id"`
	Reason    string `json:"reason"`
}

// MergeLines collapses repeated product ids into a single line with the
// summed quantity, keeping first-appearance order. Mirrors the cart UI,
// where adding a product again bumps its quantity instead of duplicating
// the row.
func MergeLines(lines []CartLine) []CartLine {
	idx := make(map[string]int, len(lines))
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// GroupByStall splits a flat cart into per-stall groups, preserving the
// relative order of lines within each group and ordering groups by first
// appearance. Lines whose stall is closed on day are excluded with a
// warning, never silently dropped. Pure: no side effects.
func GroupByStall(lines []CartLine, products map[string]Product, stalls map[string]Stall, day int) ([]StallGroup, []CartWarning) {
	groups := make([]StallGroup, 0, len(stalls))
	pos := make(map[string]int, len(stalls))
	var warnings []CartWarning

	for _, l := range lines {
		p := products[l.ProductID]
		st, ok := stalls[p.StallID]
		if ok && day != 0 && st.OpenDay != day {
			warnings = append(warnings, CartWarning{
				ProductID: l.ProductID,
				StallID:   p.StallID,
				Reason:    fmt.Sprintf("stall closed on day %d", day),
			})
			continue
		}
		i, ok := pos[p.StallID]
		if !ok {
			i = len(groups)
			pos[p.StallID] = i
			groups = append(groups, StallGroup{StallID: p.StallID})
		}
		groups[i].Lines = append(groups[i].Lines, l)
	}
	return groups, warnings
}
