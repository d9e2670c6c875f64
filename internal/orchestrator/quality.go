package orchestrator

// QualityRating turns a synthetic quality score into a label.
func QualityRating(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Moderate"
	case score >= 20:
		return "Poor"
	default:
		return "Very Poor"
	}
}
