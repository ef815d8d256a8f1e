package reba

// RiskLevel is one of five ordered severity bands derived from the final
// REBA score, plus the "unknown" sentinel for unscored frames.
type RiskLevel string

const (
	RiskUnknown    RiskLevel = "unknown"
	RiskNegligible RiskLevel = "negligible"
	RiskLow        RiskLevel = "low"
	RiskMedium     RiskLevel = "medium"
	RiskHigh       RiskLevel = "high"
	RiskVeryHigh   RiskLevel = "very_high"
)

// Levels lists the five scored bands in ascending severity order.
var Levels = []RiskLevel{RiskNegligible, RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}

// RiskLevelForScore maps a final REBA score to its band. The bands partition
// [1,∞) contiguously: 1, 2-3, 4-7, 8-10, 11+.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score < 1:
		return RiskUnknown
	case score == 1:
		return RiskNegligible
	case score <= 3:
		return RiskLow
	case score <= 7:
		return RiskMedium
	case score <= 10:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// Color returns the band's display colour as a hex string.
func (r RiskLevel) Color() string {
	switch r {
	case RiskNegligible:
		return "#00FF00"
	case RiskLow:
		return "#90EE90"
	case RiskMedium:
		return "#FFFF00"
	case RiskHigh:
		return "#FFA500"
	case RiskVeryHigh:
		return "#FF0000"
	default:
		return "#FFFFFF"
	}
}

// Description returns the band's recommended response.
func (r RiskLevel) Description() string {
	switch r {
	case RiskNegligible:
		return "negligible risk, no action required"
	case RiskLow:
		return "low risk, change may be needed"
	case RiskMedium:
		return "medium risk, further investigation, change soon"
	case RiskHigh:
		return "high risk, investigate and implement change"
	case RiskVeryHigh:
		return "very high risk, implement change now"
	default:
		return "unknown risk"
	}
}

// ActionLevel returns the REBA action level code (AL1-AL5) and its advice
// for a final score.
func ActionLevel(score int) (string, string) {
	switch RiskLevelForScore(score) {
	case RiskNegligible:
		return "AL1", "none necessary"
	case RiskLow:
		return "AL2", "may be necessary"
	case RiskMedium:
		return "AL3", "necessary"
	case RiskHigh:
		return "AL4", "necessary soon"
	case RiskVeryHigh:
		return "AL5", "necessary now"
	default:
		return "AL0", "not assessable"
	}
}
