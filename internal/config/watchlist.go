package config

// WatchlistCategory is one of the three alias categories news queries and
// entity tagging are built from.
type WatchlistCategory string

const (
	WatchlistCrypto WatchlistCategory = "crypto"
	WatchlistEnergy WatchlistCategory = "energy"
	WatchlistTech   WatchlistCategory = "tech"
)

// WatchlistEntry is one tradable asset with its category and alias set.
type WatchlistEntry struct {
	Symbol   string              `yaml:"symbol"`
	Category WatchlistCategory   `yaml:"category"`
	Aliases  []string            `yaml:"aliases"`
}

// Watchlist is the full set of entries a request's `watchlist` field is
// validated/expanded against; an empty watchlist still produces a valid
// IntelResponse.
type Watchlist struct {
	Entries []WatchlistEntry `yaml:"entries"`
}

// ByCategory groups watchlist entries by category for query construction.
func (w Watchlist) ByCategory(cat WatchlistCategory) []WatchlistEntry {
	var out []WatchlistEntry
	for _, e := range w.Entries {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// DefaultWatchlist is the built-in registry used when a request supplies no
// explicit watchlist. It is intentionally small; production deployments
// load a larger table from YAML via the same struct shape.
func DefaultWatchlist() Watchlist {
	return Watchlist{Entries: []WatchlistEntry{
		{Symbol: "BTC", Category: WatchlistCrypto, Aliases: []string{"BTC", "Bitcoin", "bitcoin"}},
		{Symbol: "ETH", Category: WatchlistCrypto, Aliases: []string{"ETH", "Ethereum", "ether"}},
		{Symbol: "SOL", Category: WatchlistCrypto, Aliases: []string{"SOL", "Solana"}},
		{Symbol: "USDT", Category: WatchlistCrypto, Aliases: []string{"USDT", "Tether", "stablecoin"}},
		{Symbol: "USDC", Category: WatchlistCrypto, Aliases: []string{"USDC", "Circle"}},
		{Symbol: "OIL", Category: WatchlistEnergy, Aliases: []string{"crude oil", "WTI", "Brent"}},
		{Symbol: "OPEC", Category: WatchlistEnergy, Aliases: []string{"OPEC", "OPEC+"}},
		{Symbol: "NVDA", Category: WatchlistTech, Aliases: []string{"NVDA", "Nvidia", "nvidia"}},
		{Symbol: "AAPL", Category: WatchlistTech, Aliases: []string{"AAPL", "Apple"}},
		{Symbol: "MSFT", Category: WatchlistTech, Aliases: []string{"MSFT", "Microsoft"}},
	}}
}

// RegionalTermSet is the per-category regional term set mixed into a
// category query.
func RegionalTermSet(cat WatchlistCategory) []string {
	switch cat {
	case WatchlistCrypto:
		return []string{"SEC", "ETF", "stablecoin", "regulation"}
	case WatchlistEnergy:
		return []string{"Middle East", "Russia", "Gulf", "shipping"}
	case WatchlistTech:
		return []string{"export controls", "chips act", "antitrust"}
	default:
		return nil
	}
}

// ActorGroup names one registry bucket of known public figures whose
// statements move markets.
type ActorGroup string

const (
	GroupCentralBankHeads   ActorGroup = "CENTRAL_BANK_HEADS"
	GroupEUOfficials        ActorGroup = "EU_OFFICIALS"
	GroupRegionalLeaders    ActorGroup = "REGIONAL_POWER_LEADERS"
	GroupRegulators         ActorGroup = "REGULATORS"
	GroupEnergyMinisters    ActorGroup = "ENERGY_MINISTERS"
	GroupDefenseSecurity    ActorGroup = "DEFENSE_SECURITY"
)

// GroupBoost is the tiered title-keyword boost added when a known actor
// group matches.
var GroupBoost = map[ActorGroup]float64{
	GroupCentralBankHeads: 12,
	GroupRegulators:       12,
	GroupEnergyMinisters:  10,
	GroupDefenseSecurity:  10,
	GroupEUOfficials:      8,
	GroupRegionalLeaders:  8,
}

// actorAliases maps a canonical actor name to its diacritic/alternate-spelling
// variants; AliasVariants returns the variant list for a canonical name.
var actorAliases = map[string][]string{
	"Christine Lagarde":     {"Christine Lagarde"},
	"Gabriel Galipolo":      {"Gabriel Galipolo", "Gabriel Galípolo"},
	"Maros Sefcovic":        {"Maros Sefcovic", "Maroš Šefčovič"},
	"Luiz Inacio Lula da Silva": {"Luiz Inacio Lula da Silva", "Luiz Inácio Lula da Silva"},
}

// ActorEntry is one registered public figure and their group membership.
type ActorEntry struct {
	CanonicalName string
	Group         ActorGroup
}

// ActorRegistry is the built-in actor table, trimmed to a representative
// sample per group; production deployments extend it via YAML using the
// same shape.
func ActorRegistry() []ActorEntry {
	return []ActorEntry{
		{"Jerome Powell", GroupCentralBankHeads},
		{"Christine Lagarde", GroupCentralBankHeads},
		{"Andrew Bailey", GroupCentralBankHeads},
		{"Kazuo Ueda", GroupCentralBankHeads},
		{"Gabriel Galipolo", GroupCentralBankHeads},
		{"Ursula von der Leyen", GroupEUOfficials},
		{"Antonio Costa", GroupEUOfficials},
		{"Kaja Kallas", GroupEUOfficials},
		{"Maros Sefcovic", GroupEUOfficials},
		{"Donald Trump", GroupRegionalLeaders},
		{"Mark Carney", GroupRegionalLeaders},
		{"Claudia Sheinbaum", GroupRegionalLeaders},
		{"Javier Milei", GroupRegionalLeaders},
		{"Gary Gensler", GroupRegulators},
		{"Paul Atkins", GroupRegulators},
		{"Haitham Al Ghais", GroupEnergyMinisters},
		{"Abdulaziz bin Salman", GroupEnergyMinisters},
		{"Lloyd Austin", GroupDefenseSecurity},
	}
}

// AliasVariants returns every known spelling of a canonical actor name,
// including itself.
func AliasVariants(canonical string) []string {
	if v, ok := actorAliases[canonical]; ok {
		return v
	}
	return []string{canonical}
}
