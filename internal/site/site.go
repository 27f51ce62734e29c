// Package site describes the microsites pages are built for: contact
// details, target markets and seed keywords.
package site

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WordPress holds the REST credentials of a site's WordPress install.
type WordPress struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Profile is one microsite.
type Profile struct {
	Key             string    `yaml:"key"`
	Name            string    `yaml:"name"`
	Domain          string    `yaml:"domain"`
	ParentOrg       string    `yaml:"parent_org"`
	Phone           string    `yaml:"phone"`
	Address         string    `yaml:"address"`
	Services        []string  `yaml:"services"`
	Niche           string    `yaml:"niche"`
	TargetLocations []string  `yaml:"target_locations"`
	SeedKeywords    []string  `yaml:"seed_keywords"`
	InsuranceFocus  string    `yaml:"insurance_focus"`
	WordPress       WordPress `yaml:"wordpress"`
}

// Validate checks the fields page rendering cannot do without.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Key) == "" {
		missing = append(missing, "key")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("site %q: missing %s", p.Key, strings.Join(missing, ", "))
	}
	return nil
}

// PhoneDigits returns the phone number with only its digits, for tel: links.
func (p Profile) PhoneDigits() string {
	var b strings.Builder
	for _, r := range p.Phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Registry indexes profiles by key.
type Registry struct {
	sites map[string]Profile
}

// NewRegistry validates profiles and indexes them. Keys must be unique.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{sites: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.sites[p.Key]; dup {
			return nil, fmt.Errorf("site %q defined twice", p.Key)
		}
		r.sites[p.Key] = p
	}
	return r, nil
}

// ErrUnknownSite is returned by Get for a key not in the registry.
var ErrUnknownSite = errors.New("unknown site")

// Get returns the profile for key.
func (r *Registry) Get(key string) (Profile, error) {
	p, ok := r.sites[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownSite, key, strings.Join(r.Keys(), ", "))
	}
	return p, nil
}

// Keys lists the registered site keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.sites))
	for k := range r.sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type file struct {
	Sites []Profile `yaml:"sites"`
}

// Decode reads a sites document. Unknown fields are rejected so typos in
// hand-edited files surface early.
func Decode(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return NewRegistry()
		}
		return nil, fmt.Errorf("decode sites: %w", err)
	}
	return NewRegistry(f.Sites...)
}

// Load reads a sites file from path.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Default returns the built-in registry used when no sites file is given.
func Default() *Registry {
	r, err := NewRegistry(defaultProfiles()...)
	if err != nil {
		panic(err)
	}
	return r
}

func defaultProfiles() []Profile {
	return []Profile{
		{
			Key:       "trupathnj",
			Name:      "TruPath Recovery NJ",
			Domain:    "trupathnj.com",
			ParentOrg: "Quantum Behavioral",
			Phone:     "(732) 281-6005",
			Address:   "1129 Hooper Avenue, Suite 2, Toms River, NJ 08753",
			Services:  []string{"Inpatient Treatment", "Outpatient Programs", "Medical Detox", "Dual Diagnosis"},
			Niche:     NicheAddiction,
			TargetLocations: []string{
				"Newark, NJ", "Jersey City, NJ", "Paterson, NJ", "Elizabeth, NJ",
				"Toms River, NJ", "Trenton, NJ", "Camden, NJ", "Edison, NJ",
				"Woodbridge, NJ", "Lakewood, NJ", "Hoboken, NJ", "Brick, NJ",
				"Cherry Hill, NJ", "Atlantic City, NJ", "Hackensack, NJ",
				"Manhattan, NY", "Brooklyn, NY", "Philadelphia, PA",
			},
			SeedKeywords: []string{
				"drug rehab", "inpatient drug rehab", "alcohol rehab", "inpatient alcohol rehab",
				"detox centers", "medical detox", "addiction treatment", "heroin rehab",
				"opioid treatment", "dual diagnosis treatment", "cocaine rehab",
				"residential treatment", "outpatient drug rehab", "MAT treatment",
			},
			InsuranceFocus: "PPO only - no Medicaid/Medicare",
		},
		{
			Key:       "trupath_la",
			Name:      "TruPath Recovery LA",
			Domain:    "trupathla.com",
			ParentOrg: "TruPath LA Facility",
			Phone:     "(555) 000-0000",
			Address:   "Los Angeles, CA",
			Services:  []string{"Inpatient Treatment", "Outpatient Programs", "Medical Detox"},
			Niche:     NicheAddiction,
			TargetLocations: []string{
				"Los Angeles, CA", "Beverly Hills, CA", "Santa Monica, CA",
				"Malibu, CA", "Pasadena, CA", "Long Beach, CA", "Burbank, CA",
			},
			SeedKeywords: []string{
				"drug rehab", "inpatient drug rehab", "alcohol rehab", "luxury rehab",
				"detox centers", "addiction treatment", "heroin rehab", "cocaine rehab",
			},
			InsuranceFocus: "PPO only - no Medicaid/Medicare",
		},
	}
}
