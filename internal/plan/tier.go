package plan

import "fmt"

// Tier thresholds on the priority score.
const (
	Tier1Min = 80
	Tier2Min = 65
	Tier3Min = 50
)

// Tiers partitions pages into four ordered priority bands, 1 being highest.
type Tiers struct {
	Tier1 []Page
	Tier2 []Page
	Tier3 []Page
	Tier4 []Page
}

// TierOf returns the band (1-4) a priority belongs to.
func TierOf(priority int) int {
	switch {
	case priority >= Tier1Min:
		return 1
	case priority >= Tier2Min:
		return 2
	case priority >= Tier3Min:
		return 3
	default:
		return 4
	}
}

// Tier splits pages into bands. Every page lands in exactly one band and
// the input order is preserved within each band.
func Tier(pages []Page) Tiers {
	var t Tiers
	for _, p := range pages {
		switch TierOf(p.Priority) {
		case 1:
			t.Tier1 = append(t.Tier1, p)
		case 2:
			t.Tier2 = append(t.Tier2, p)
		case 3:
			t.Tier3 = append(t.Tier3, p)
		default:
			t.Tier4 = append(t.Tier4, p)
		}
	}
	return t
}

// TierPages returns the band with the given number.
func (t Tiers) TierPages(n int) ([]Page, error) {
	switch n {
	case 1:
		return t.Tier1, nil
	case 2:
		return t.Tier2, nil
	case 3:
		return t.Tier3, nil
	case 4:
		return t.Tier4, nil
	default:
		return nil, fmt.Errorf("tier must be 1-4, got %d", n)
	}
}

// Counts returns the number of pages in each band.
func (t Tiers) Counts() [4]int {
	return [4]int{len(t.Tier1), len(t.Tier2), len(t.Tier3), len(t.Tier4)}
}
