package orchestrator

import "sort"

type scored struct {
	desc  Descriptor
	cost  float64
	order int
}

// Rank orders candidates most-preferred first. It is a pure function of its
// inputs; ties always keep registration order.
//
//   - budget=low: cheapest first, even when premium quality is requested.
//   - budget=high or quality=premium: premium-quality providers first, the
//     rest cheapest first.
//   - otherwise: the recommended provider first, the rest cheapest first.
func Rank(candidates []Descriptor, opts Options, recommended string) []Descriptor {
	items := make([]scored, len(candidates))
	for i, d := range candidates {
		items[i] = scored{desc: d, cost: d.EstimateCost(opts), order: i}
	}

	var preferred func(s scored) bool
	switch {
	case opts.EffectiveBudget() == BudgetLow:
		preferred = nil
	case opts.Premium():
		preferred = func(s scored) bool { return s.desc.HasCapability(CapabilityPremium) }
	default:
		preferred = func(s scored) bool { return recommended != "" && s.desc.ID == recommended }
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if preferred != nil {
			pa, pb := preferred(a), preferred(b)
			if pa != pb {
				return pa
			}
		}
		if a.cost != b.cost {
			return a.cost < b.cost
		}
		return a.order < b.order
	})

	out := make([]Descriptor, len(items))
	for i, s := range items {
		out[i] = s.desc
	}
	return out
}
