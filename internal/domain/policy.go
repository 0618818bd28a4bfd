package domain

const (
	// DefaultInjectionMaxCharacters bounds the prompt-injection call site.
	DefaultInjectionMaxCharacters = 4
	// DefaultCardMaxCharacters bounds the card-display call site.
	DefaultCardMaxCharacters = 6
	// DefaultMaxTagsPerCategory applies to priority categories.
	DefaultMaxTagsPerCategory = 3
	// NonPriorityTagCap is the fixed per-category cap for categories outside
	// the priority list, regardless of MaxTagsPerCategory. The asymmetry
	// biases the token budget toward priority traits.
	NonPriorityTagCap = 2
)

// OptimizationPolicy shapes how a character list is reduced before
// serialization. It is read-only input at call time, never persisted state.
type OptimizationPolicy struct {
	MaxCharacters      int
	PriorityCategories []string
	MaxTagsPerCategory int
	Compact            bool
}

// DefaultInjectionPolicy returns the policy used for prompt injection.
func DefaultInjectionPolicy() OptimizationPolicy {
	return OptimizationPolicy{
		MaxCharacters:      DefaultInjectionMaxCharacters,
		PriorityCategories: []string{"personality", "species", "genre"},
		MaxTagsPerCategory: DefaultMaxTagsPerCategory,
		Compact:            true,
	}
}

// DefaultCardPolicy returns the policy used when handing card data to the
// presentation layer.
func DefaultCardPolicy() OptimizationPolicy {
	p := DefaultInjectionPolicy()
	p.MaxCharacters = DefaultCardMaxCharacters
	p.Compact = false
	return p
}
