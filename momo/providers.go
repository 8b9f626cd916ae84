package momo

// Provider describes a Zambian mobile-money operator.
type Provider struct {
	ID       string   // Correspondent code understood by the payments API
	Name     string   // Display name
	LogoURL  string   // Operator logo for UI consumers
	Prefixes []string // National number prefixes owned by the operator
}

// Providers is the ordered operator list. Detection is
// first-match-wins, so the order is part of the contract.
var Providers = []Provider{
	{
		ID:       "MTN_MOMO_ZMB",
		Name:     "MTN Money",
		LogoURL:  "https://static-content.pawapay.io/provider_logos/mtn.png",
		Prefixes: []string{"096", "076", "056"},
	},
	{
		ID:       "AIRTEL_OAPI_ZMB",
		Name:     "Airtel Money",
		LogoURL:  "https://static-content.pawapay.io/provider_logos/airtel.png",
		Prefixes: []string{"097", "077", "057"},
	},
	{
		ID:       "ZAMTEL_ZMB",
		Name:     "Zamtel Kwacha",
		LogoURL:  "https://static-content.pawapay.io/provider_logos/zamtel.png",
		Prefixes: []string{"095", "075", "055"},
	},
}

// ByID looks up a provider by its correspondent code.
func ByID(id string) (Provider, bool) {
	for _, p := range Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
