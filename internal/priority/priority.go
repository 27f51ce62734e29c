// Package priority scores keyword/location pairs by content opportunity.
package priority

import "strings"

// Scoring weights. These are a fixed contract: tier assignment in stored
// plans depends on them reproducing exactly.
const (
	Base = 50
	Max  = 100

	questionWeight = 5
	questionCap    = 25
	relatedWeight  = 2
	relatedCap     = 15
	cityBonus      = 10
	intentBonus    = 10
)

var majorCities = []string{
	"Newark", "Jersey City", "Manhattan", "Brooklyn", "Philadelphia",
	"Los Angeles", "Chicago", "Houston", "Phoenix",
}

var highIntentTerms = []string{"inpatient", "cost", "insurance", "near me", "best", "detox"}

// MajorCities returns a copy of the city names that earn the location bonus.
func MajorCities() []string {
	return append([]string(nil), majorCities...)
}

// HighIntentTerms returns a copy of the lowercase terms that earn the keyword bonus.
func HighIntentTerms() []string {
	return append([]string(nil), highIntentTerms...)
}

// Score maps a pair and its signal counts to an integer in [Base, Max].
// Negative counts are treated as zero.
func Score(keyword, location string, paaCount, relatedCount int) int {
	score := Base
	score += min(max(paaCount, 0)*questionWeight, questionCap)
	score += min(max(relatedCount, 0)*relatedWeight, relatedCap)

	city, intent := Bonuses(keyword, location)
	if city {
		score += cityBonus
	}
	if intent {
		score += intentBonus
	}
	return min(score, Max)
}

// Bonuses reports whether the location matches a major city (case-sensitive)
// and whether the keyword contains a high-intent term (case-insensitive).
func Bonuses(keyword, location string) (city, intent bool) {
	for _, c := range majorCities {
		if strings.Contains(location, c) {
			city = true
			break
		}
	}
	lower := strings.ToLower(keyword)
	for _, term := range highIntentTerms {
		if strings.Contains(lower, term) {
			intent = true
			break
		}
	}
	return city, intent
}
