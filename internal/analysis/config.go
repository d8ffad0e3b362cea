package analysis

// Config holds every tunable of scoring, normalization and the heuristic fallback.
type Config struct {
	// MaxPromptChars bounds the document text embedded in the prompt (runes, prefix kept).
	MaxPromptChars   int
	Temperature      float32
	DefaultScore     int
	MaxListItems     int
	MaxOpportunities int

	HeuristicBase            int
	HeuristicIdentifierBonus int
	HeuristicLengthBonus     int
	HeuristicLengthChars     int
	HeuristicMedicationBonus int
	HeuristicSignatureBonus  int
	HeuristicCodeBonus       int
	HeuristicConfidence      int
	// HeuristicCompletenessBase is raised by HeuristicCompletenessStep per structural signal found.
	HeuristicCompletenessBase int
	HeuristicCompletenessStep int
}

// DefaultConfig returns the production scoring constants.
func DefaultConfig() Config {
	return Config{
		MaxPromptChars:   15000,
		Temperature:      0.2,
		DefaultScore:     75,
		MaxListItems:     10,
		MaxOpportunities: 5,

		HeuristicBase:             60,
		HeuristicIdentifierBonus:  10,
		HeuristicLengthBonus:      5,
		HeuristicLengthChars:      500,
		HeuristicMedicationBonus:  5,
		HeuristicSignatureBonus:   5,
		HeuristicCodeBonus:        10,
		HeuristicConfidence:       30,
		HeuristicCompletenessBase: 50,
		HeuristicCompletenessStep: 10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = def.MaxPromptChars
	}
	if c.Temperature < 0 {
		c.Temperature = def.Temperature
	}
	if c.DefaultScore <= 0 {
		c.DefaultScore = def.DefaultScore
	}
	if c.MaxListItems <= 0 {
		c.MaxListItems = def.MaxListItems
	}
	if c.MaxOpportunities <= 0 {
		c.MaxOpportunities = def.MaxOpportunities
	}
	if c.HeuristicBase <= 0 {
		c.HeuristicBase = def.HeuristicBase
	}
	if c.HeuristicLengthChars <= 0 {
		c.HeuristicLengthChars = def.HeuristicLengthChars
	}
	if c.HeuristicConfidence <= 0 {
		c.HeuristicConfidence = def.HeuristicConfidence
	}
	if c.HeuristicCompletenessBase <= 0 {
		c.HeuristicCompletenessBase = def.HeuristicCompletenessBase
	}
	return c
}
