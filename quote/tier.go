package quote

// Documented display range of a trust score.
const (
	MinTrustScore = 300
	MaxTrustScore = 850
)

// Tier buckets a trust score for display.
type Tier string

const (
	TierExcellent Tier = "Excellent"
	TierGood      Tier = "Good"
	TierFair      Tier = "Fair"
	TierPoor      Tier = "Poor"
)

var tierBenefits = map[Tier][]string{
	TierExcellent: {
		"Access to premium loan rates",
		"Higher borrowing limits",
		"Reduced collateral requirements",
		"Priority customer support",
	},
	TierGood: {
		"Standard loan rates",
		"Normal borrowing limits",
		"Standard collateral requirements",
		"Regular customer support",
	},
	TierFair: {
		"Higher interest rates",
		"Limited borrowing amounts",
		"Higher collateral requirements",
		"Basic customer support",
	},
	TierPoor: {
		"Restricted access to loans",
		"Very limited borrowing",
		"Maximum collateral required",
		"Limited platform features",
	},
}

// TierFor maps a score onto its tier.
func TierFor(score uint64) Tier {
	switch {
	case score >= 800:
		return TierExcellent
	case score >= 700:
		return TierGood
	case score >= 600:
		return TierFair
	default:
		return TierPoor
	}
}

// Benefits returns a copy of the benefit list for the tier.
func (t Tier) Benefits() []string {
	list := tierBenefits[t]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// InDisplayRange reports whether score lies within 300-850. The contract does
// not enforce the range; callers use this to warn before an admin update.
func InDisplayRange(score uint64) bool {
	return score >= MinTrustScore && score <= MaxTrustScore
}
