package parser

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return New(zap.NewNop())
}

func TestParseLabelSyntaxBasic(t *testing.T) {
	input := "Alice:\n  - Personality: Kind, Curious\n  - Species: Elf\n"

	chars := newTestParser().Parse(input)
	if len(chars) != 1 {
		t.Fatalf("expected 1 character, got %d", len(chars))
	}

	alice := chars[0]
	if alice.Name != "Alice" {
		t.Errorf("name = %q", alice.Name)
	}
	if got := alice.Tags.Get("personality"); !reflect.DeepEqual(got, []string{"Kind", "Curious"}) {
		t.Errorf("personality = %v", got)
	}
	if got := alice.Tags.Get("species"); !reflect.DeepEqual(got, []string{"Elf"}) {
		t.Errorf("species = %v", got)
	}
}

func TestParseLabelSyntaxMultipleCharacters(t *testing.T) {
	input := "Alice:\n  - Species: Elf\nBob: brave, loyal\n  - Species: Human\n"

	chars := newTestParser().Parse(input)
	if len(chars) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(chars))
	}
	if chars[0].Name != "Alice" || chars[1].Name != "Bob" {
		t.Errorf("names = %q, %q", chars[0].Name, chars[1].Name)
	}
	// Inline tags after the name colon land in the "other" bucket.
	if got := chars[1].Tags.Get("other"); !reflect.DeepEqual(got, []string{"brave", "loyal"}) {
		t.Errorf("bob other = %v", got)
	}
}

func TestParseLabelSyntaxDuplicateCategoriesConcatenate(t *testing.T) {
	input := "Alice:\n  - Traits: Kind\n  - Traits: Kind, Brave\n"

	chars := newTestParser().Parse(input)
	if len(chars) != 1 {
		t.Fatalf("expected 1 character, got %d", len(chars))
	}
	// No deduplication in the label path.
	if got := chars[0].Tags.Get("traits"); !reflect.DeepEqual(got, []string{"Kind", "Kind", "Brave"}) {
		t.Errorf("traits = %v", got)
	}
}

func TestParseLabelSyntaxBareTagsAndFallbacks(t *testing.T) {
	input := "Alice:\n  - mysterious\n  Mood: wistful\nstray line with no colon\n"

	chars := newTestParser().Parse(input)
	if len(chars) != 1 {
		t.Fatalf("expected 1 character, got %d", len(chars))
	}
	if got := chars[0].Tags.Get("other"); !reflect.DeepEqual(got, []string{"mysterious"}) {
		t.Errorf("other = %v", got)
	}
	// Indented colon line without a dash is a tolerated category line.
	if got := chars[0].Tags.Get("mood"); !reflect.DeepEqual(got, []string{"wistful"}) {
		t.Errorf("mood = %v", got)
	}
}

func TestParseDropsEmptyCharacters(t *testing.T) {
	// A name line with no subsequent tags yields nothing.
	chars := newTestParser().Parse("Alice:\nBob:\n  - Species: Human\n")
	if len(chars) != 1 {
		t.Fatalf("expected 1 character, got %d", len(chars))
	}
	if chars[0].Name != "Bob" {
		t.Errorf("surviving character = %q", chars[0].Name)
	}
}

func TestParseEmptyInput(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{"", "   ", "\n\n\t\n", "no tags here at all"} {
		if chars := p.Parse(input); len(chars) != 0 {
			t.Errorf("Parse(%q) = %d characters, want 0", input, len(chars))
		}
	}
}

func TestParseJSONSyntax(t *testing.T) {
	input := `{"characters":[{"name":"Alice","tags":{"personality":["Kind"],"species":["Elf"]}}]}`

	chars := newTestParser().Parse(input)
	if len(chars) != 1 {
		t.Fatalf("expected 1 character, got %d", len(chars))
	}
	if chars[0].Name != "Alice" {
		t.Errorf("name = %q", chars[0].Name)
	}
	if got := chars[0].Tags.Get("species"); !reflect.DeepEqual(got, []string{"Elf"}) {
		t.Errorf("species = %v", got)
	}
}

func TestParseJSONSkipsEmptyCharacters(t *testing.T) {
	input := `{"characters":[{"name":"Ghost","tags":{}},{"name":"","tags":{"a":["b"]}},{"name":"Real","tags":{"species":["Orc"]}}]}`

	chars := newTestParser().Parse(input)
	if len(chars) != 1 || chars[0].Name != "Real" {
		t.Fatalf("expected only Real, got %v", chars)
	}
}

func TestParseInvalidJSONFallsThroughToLabelSyntax(t *testing.T) {
	// Starts with a brace but is not valid JSON; the brace line itself is
	// ignored and the label lines still parse.
	input := "{broken\nAlice:\n  - Species: Elf\n"

	chars := newTestParser().Parse(input)
	if len(chars) != 1 || chars[0].Name != "Alice" {
		t.Fatalf("fallback parse failed: %v", chars)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineRole
	}{
		{"", roleBlank},
		{"   ", roleBlank},
		{"Alice:", roleName},
		{"Alice: brave", roleName},
		{"  - Species: Elf", roleCategory},
		{"\t- Species: Elf", roleCategory},
		{"  - mysterious", roleBareTag},
		{"  Mood: wistful", roleFallback},
		{"- Species: Elf", roleFallback},
		{"just words", roleIgnored},
	}

	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseNeverEmitsEmptyTagMaps(t *testing.T) {
	inputs := []string{
		"Alice:\n  - Species: Elf\nBob:\n",
		"Solo:\n  - : \n",
		`{"characters":[{"name":"X","tags":{}}]}`,
	}
	p := newTestParser()
	for _, input := range inputs {
		for _, char := range p.Parse(input) {
			if char.Tags.Empty() {
				t.Errorf("input %q emitted character %q with empty tags", input, char.Name)
			}
		}
	}
}
