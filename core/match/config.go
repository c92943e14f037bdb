package match

// Config holds the matcher's tunable weights and thresholds.
// Defaults approximate the behavior of the scraped-score cutoff the
// catalog was originally curated with, rescaled to [0,1].
type Config struct {
	// LinkThreshold is the minimum score for an automatic link.
	LinkThreshold float64 `mapstructure:"link_threshold" default:"0.72"`

	// AmbiguityFloor is the minimum score for a result to be surfaced as
	// ambiguous instead of unmatched.
	AmbiguityFloor float64 `mapstructure:"ambiguity_floor" default:"0.55"`

	// AmbiguityMargin is how close the runner-up must be to the top
	// candidate for the result to count as ambiguous.
	AmbiguityMargin float64 `mapstructure:"ambiguity_margin" default:"0.06"`

	// NameWeight scales the product-name similarity signal.
	NameWeight float64 `mapstructure:"name_weight" default:"0.5"`

	// BreweryWeight scales the brewery similarity signal. Brewery suffixes
	// ("brewing co") stay in the token stream but this weight keeps them
	// from dominating.
	BreweryWeight float64 `mapstructure:"brewery_weight" default:"0.3"`

	// StyleWeight scales style compatibility. Styles are recorded
	// inconsistently across sources, so this is a tie-breaker only.
	StyleWeight float64 `mapstructure:"style_weight" default:"0.1"`

	// ABVWeight scales ABV closeness, also a tie-breaker.
	ABVWeight float64 `mapstructure:"abv_weight" default:"0.1"`

	// ABVTolerance is the ABV difference (percentage points) at which the
	// ABV signal bottoms out.
	ABVTolerance float64 `mapstructure:"abv_tolerance" default:"1.5"`

	// MaxAmbiguousCandidates bounds how many contenders an ambiguous
	// result carries for review.
	MaxAmbiguousCandidates int `mapstructure:"max_ambiguous_candidates" default:"3"`
}
