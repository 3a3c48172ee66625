package risk

import "strings"

// Profile is the static per-instrument-class lookup used for pip math and
// broker size bounds.
type Profile struct {
	Class            string
	PipSize          float64
	USDPerPipPerUnit float64
	MinUnits         float64
	MaxUnits         float64
	UnitStep         float64
}

// classRule matches a symbol to a profile by substring. The mapping is
// deliberately many-to-one: every JPY-quoted pair shares one profile, all
// metals another, and so on.
type classRule struct {
	match   []string
	profile Profile
}

// Classifier resolves symbols to asset-class profiles. Rules are checked in
// order; the last entry is the catch-all FX profile.
type Classifier struct {
	rules []classRule
}

// DefaultClassifier returns the built-in class table. Deployments override
// entries through config without touching code.
func DefaultClassifier() *Classifier {
	return &Classifier{rules: []classRule{
		{
			match:   []string{"XAU", "XAG", "GOLD", "SILVER"},
			profile: Profile{Class: "metal", PipSize: 0.1, USDPerPipPerUnit: 1, MinUnits: 0.01, MaxUnits: 100, UnitStep: 0.01},
		},
		{
			match:   []string{"BTC", "ETH", "LTC", "XRP"},
			profile: Profile{Class: "crypto", PipSize: 1, USDPerPipPerUnit: 1, MinUnits: 0.01, MaxUnits: 50, UnitStep: 0.01},
		},
		{
			match:   []string{"_CFD", ".US", ".DE", "#"},
			profile: Profile{Class: "cfd_equity", PipSize: 0.01, USDPerPipPerUnit: 0.01, MinUnits: 1, MaxUnits: 10000, UnitStep: 1},
		},
		{
			match:   []string{"JPY"},
			profile: Profile{Class: "jpy_pair", PipSize: 0.01, USDPerPipPerUnit: 100, MinUnits: 0.01, MaxUnits: 100, UnitStep: 0.01},
		},
		{
			match:   nil, // catch-all
			profile: Profile{Class: "fx", PipSize: 0.0001, USDPerPipPerUnit: 10, MinUnits: 0.01, MaxUnits: 100, UnitStep: 0.01},
		},
	}}
}

// NewClassifier builds a classifier from explicit rules followed by the
// catch-all FX profile.
func NewClassifier(profiles []Profile, matches [][]string) *Classifier {
	c := &Classifier{}
	for i, p := range profiles {
		var m []string
		if i < len(matches) {
			m = matches[i]
		}
		c.rules = append(c.rules, classRule{match: m, profile: p})
	}
	return c
}

// Resolve returns the profile for a symbol. A rule with no match strings is a
// catch-all; resolution always succeeds when one is present.
func (c *Classifier) Resolve(symbol string) (Profile, bool) {
	upper := strings.ToUpper(symbol)
	for _, rule := range c.rules {
		if len(rule.match) == 0 {
			return rule.profile, true
		}
		for _, m := range rule.match {
			if strings.Contains(upper, strings.ToUpper(m)) {
				return rule.profile, true
			}
		}
	}
	return Profile{}, false
}
