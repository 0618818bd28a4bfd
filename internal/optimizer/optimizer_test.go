package optimizer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/internal/parser"
	"go.uber.org/zap"
)

func newTestOptimizer() *Optimizer {
	return New(zap.NewNop())
}

func makeCharacter(name string, categories map[string][]string, order []string) domain.Character {
	tags := domain.NewTagMap()
	for _, cat := range order {
		tags.Add(cat, categories[cat]...)
	}
	return domain.Character{Name: name, Tags: tags}
}

func alicePolicyExample() (domain.Character, domain.OptimizationPolicy) {
	alice := makeCharacter("Alice", map[string][]string{
		"species":     {"Elf", "Wood Elf", "Ranger"},
		"personality": {"Kind"},
	}, []string{"species", "personality"})

	policy := domain.OptimizationPolicy{
		MaxCharacters:      4,
		PriorityCategories: []string{"species"},
		MaxTagsPerCategory: 2,
		Compact:            true,
	}
	return alice, policy
}

func TestOptimizeWorkedExample(t *testing.T) {
	alice, policy := alicePolicyExample()

	out := newTestOptimizer().Optimize([]domain.Character{alice}, policy)
	if len(out) != 1 {
		t.Fatalf("expected 1 character, got %d", len(out))
	}
	if got := out[0].Tags.Get("species"); !reflect.DeepEqual(got, []string{"Elf", "Wood Elf"}) {
		t.Errorf("species = %v", got)
	}
	if got := out[0].Tags.Get("personality"); !reflect.DeepEqual(got, []string{"Kind"}) {
		t.Errorf("personality = %v", got)
	}

	if s := Serialize(out, true); s != "Alice: species(Elf,Wood Elf) personality(Kind)" {
		t.Errorf("compact serialization = %q", s)
	}
}

func TestOptimizeTruncationBound(t *testing.T) {
	chars := []domain.Character{
		makeCharacter("A", map[string][]string{"x": {"1"}}, []string{"x"}),
		makeCharacter("B", map[string][]string{"x": {"1"}}, []string{"x"}),
		makeCharacter("C", map[string][]string{"x": {"1"}}, []string{"x"}),
	}

	o := newTestOptimizer()
	for _, max := range []int{0, 1, 2, 3, 10} {
		policy := domain.OptimizationPolicy{MaxCharacters: max, MaxTagsPerCategory: 3}
		out := o.Optimize(chars, policy)
		bound := max
		if len(chars) < bound {
			bound = len(chars)
		}
		if len(out) > bound {
			t.Errorf("max=%d: got %d characters, bound %d", max, len(out), bound)
		}
	}
}

func TestOptimizePerCategoryCaps(t *testing.T) {
	char := makeCharacter("A", map[string][]string{
		"species": {"a", "b", "c", "d", "e"},
		"quirks":  {"q1", "q2", "q3", "q4"},
		"mood":    {"m1", "m2", "m3"},
	}, []string{"species", "quirks", "mood"})

	policy := domain.OptimizationPolicy{
		MaxCharacters:      1,
		PriorityCategories: []string{"species"},
		MaxTagsPerCategory: 4,
	}

	out := newTestOptimizer().Optimize([]domain.Character{char}, policy)
	if len(out) != 1 {
		t.Fatalf("expected 1 character, got %d", len(out))
	}
	for _, cat := range out[0].Tags.Categories() {
		n := len(out[0].Tags.Get(cat))
		if cat == "species" {
			if n > policy.MaxTagsPerCategory {
				t.Errorf("priority category %s kept %d values", cat, n)
			}
		} else if n > domain.NonPriorityTagCap {
			t.Errorf("non-priority category %s kept %d values, cap %d", cat, n, domain.NonPriorityTagCap)
		}
	}
	// Non-priority cap is fixed at 2 even though MaxTagsPerCategory is 4.
	if got := out[0].Tags.Get("quirks"); !reflect.DeepEqual(got, []string{"q1", "q2"}) {
		t.Errorf("quirks = %v", got)
	}
}

func TestOptimizeKeepsDuplicateValues(t *testing.T) {
	// Label-syntax parsing concatenates duplicate values; the optimizer copies
	// the first N verbatim, so duplicates inside the cap survive and still
	// count toward it.
	char := makeCharacter("A", map[string][]string{
		"traits": {"Kind", "Kind", "Brave"},
	}, []string{"traits"})

	policy := domain.OptimizationPolicy{
		MaxCharacters:      1,
		PriorityCategories: []string{"traits"},
		MaxTagsPerCategory: 2,
	}
	out := newTestOptimizer().Optimize([]domain.Character{char}, policy)
	if len(out) != 1 {
		t.Fatalf("expected 1 character, got %d", len(out))
	}
	if got := out[0].Tags.Get("traits"); !reflect.DeepEqual(got, []string{"Kind", "Kind"}) {
		t.Errorf("traits = %v, want [Kind Kind]", got)
	}
}

func TestOptimizePriorityMatchingIsCaseInsensitive(t *testing.T) {
	tags := domain.NewTagMap()
	tags.AddUnique("SPECIES", "ELF", "RANGER", "SCOUT")
	char := domain.Character{Name: "A", Tags: tags}

	policy := domain.OptimizationPolicy{
		MaxCharacters:      1,
		PriorityCategories: []string{"species"},
		MaxTagsPerCategory: 3,
	}
	out := newTestOptimizer().Optimize([]domain.Character{char}, policy)
	if len(out) != 1 {
		t.Fatalf("expected 1 character, got %d", len(out))
	}
	// The upper-cased tag-block key matched the lower-cased priority entry
	// and kept its full priority allowance.
	if got := out[0].Tags.Get("SPECIES"); !reflect.DeepEqual(got, []string{"ELF", "RANGER", "SCOUT"}) {
		t.Errorf("SPECIES = %v", got)
	}
}

func TestOptimizeDropsEmptiedCharacters(t *testing.T) {
	char := makeCharacter("A", map[string][]string{"x": {"1"}}, []string{"x"})

	policy := domain.OptimizationPolicy{
		MaxCharacters:      1,
		PriorityCategories: []string{"x"},
		MaxTagsPerCategory: 0,
	}
	// MaxTagsPerCategory 0 empties the only (priority) category... but the
	// non-priority pass never sees it, so nothing survives.
	out := newTestOptimizer().Optimize([]domain.Character{char}, policy)
	if len(out) != 0 {
		t.Errorf("expected no survivors, got %v", out)
	}
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	alice, policy := alicePolicyExample()
	before := alice.Tags.Clone()

	out := newTestOptimizer().Optimize([]domain.Character{alice}, policy)
	if len(out) != 1 {
		t.Fatalf("expected 1 character, got %d", len(out))
	}
	out[0].Tags.Add("species", "Mutant")

	if !reflect.DeepEqual(alice.Tags.Get("species"), before.Get("species")) {
		t.Errorf("input mutated: %v", alice.Tags.Get("species"))
	}
}

func TestSerializeEmpty(t *testing.T) {
	if s := Serialize(nil, true); s != "" {
		t.Errorf("compact empty = %q", s)
	}
	if s := Serialize(nil, false); s != "{}" {
		t.Errorf("json empty = %q", s)
	}
}

func TestSerializeCompactMultipleCharacters(t *testing.T) {
	chars := []domain.Character{
		makeCharacter("A", map[string][]string{"x": {"1", "2"}}, []string{"x"}),
		makeCharacter("B", map[string][]string{"y": {"3"}}, []string{"y"}),
	}
	want := "A: x(1,2)\nB: y(3)"
	if s := Serialize(chars, true); s != want {
		t.Errorf("compact = %q, want %q", s, want)
	}
}

func TestSerializeJSONIsUnindented(t *testing.T) {
	chars := []domain.Character{
		makeCharacter("A", map[string][]string{"x": {"1"}}, []string{"x"}),
	}
	s := Serialize(chars, false)
	if strings.ContainsAny(s, "\n\t") {
		t.Errorf("json output contains whitespace formatting: %q", s)
	}
	if !strings.HasPrefix(s, `{"characters":[`) {
		t.Errorf("json output = %q", s)
	}
}

func TestJSONRoundTripReproducesTriples(t *testing.T) {
	input := "Alice:\n  - Personality: Kind, Curious\n  - Species: Elf\nBob: stray\n  - Species: Human\n"

	p := parser.New(zap.NewNop())
	first := p.Parse(input)
	if len(first) == 0 {
		t.Fatal("seed parse produced nothing")
	}

	second := p.Parse(Serialize(first, false))
	if len(second) != len(first) {
		t.Fatalf("round trip count = %d, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("name[%d] = %q, want %q", i, second[i].Name, first[i].Name)
		}
		if !reflect.DeepEqual(first[i].Tags.Categories(), second[i].Tags.Categories()) {
			t.Errorf("categories[%d] = %v, want %v", i, second[i].Tags.Categories(), first[i].Tags.Categories())
		}
		for _, cat := range first[i].Tags.Categories() {
			if !reflect.DeepEqual(first[i].Tags.Get(cat), second[i].Tags.Get(cat)) {
				t.Errorf("%s/%s = %v, want %v", first[i].Name, cat, second[i].Tags.Get(cat), first[i].Tags.Get(cat))
			}
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q len %d) = %d, want %d", tt.in[:min(len(tt.in), 8)], len(tt.in), got, tt.want)
		}
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	prev := 0
	for i := 0; i <= 64; i++ {
		got := EstimateTokens(strings.Repeat("a", i))
		if got < prev {
			t.Fatalf("estimate decreased at length %d: %d < %d", i, got, prev)
		}
		prev = got
	}
}

func TestMeasureReportsSavings(t *testing.T) {
	alice, policy := alicePolicyExample()
	o := newTestOptimizer()
	out := o.Optimize([]domain.Character{alice}, policy)

	report := Measure([]domain.Character{alice}, out, true)
	if report.CharactersIn != 1 || report.CharactersOut != 1 {
		t.Errorf("report counts = %+v", report)
	}
	if report.TokensAfter > report.TokensBefore {
		t.Errorf("optimization increased tokens: %+v", report)
	}
}
