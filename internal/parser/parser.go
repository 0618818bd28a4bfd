// Package parser extracts character trait data from free-form text. Three
// syntaxes are recognized: a JSON document, a line-oriented label format, and
// the inline <BunnymoTags> micro-language. Parsing is tolerant end to end:
// malformed lines are skipped, unparseable input yields no characters, and
// the host-facing entry points never return an error or panic.
package parser

import (
	"encoding/json"
	"strings"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/pkg/errors"
	"go.uber.org/zap"
)

type Parser struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse converts raw text into zero or more characters. Internal failures
// degrade to "no data found": the caller sees nil, never an error.
func (p *Parser) Parse(text string) []domain.Character {
	chars, err := p.parseChecked(text)
	if err != nil {
		p.logger.Warn("Tag parse failed, treating as no data", zap.Error(err))
		return nil
	}
	return chars
}

func (p *Parser) parseChecked(text string) ([]domain.Character, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	// JSON syntax: attempted first, falls through to the label syntax on
	// failure rather than erroring.
	if strings.HasPrefix(trimmed, "{") {
		if chars, err := p.parseJSON(trimmed); err == nil {
			return chars, nil
		}
	}

	return p.parseLabelSyntax(text), nil
}

type jsonDocument struct {
	Characters []domain.Character `json:"characters"`
}

func (p *Parser) parseJSON(text string) ([]domain.Character, error) {
	var doc jsonDocument
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, errors.NewParseError("invalid character JSON", "json", 0, err)
	}

	result := make([]domain.Character, 0, len(doc.Characters))
	for _, c := range doc.Characters {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || c.Tags.Empty() {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// lineRole classifies one line of label-syntax input. Keeping the roles
// explicit makes the tolerant fallback behavior testable per line type.
type lineRole int

const (
	roleBlank lineRole = iota
	roleName
	roleCategory
	roleBareTag
	roleFallback
	roleIgnored
)

func classifyLine(line string) lineRole {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return roleBlank
	}

	indented := len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
	dashed := strings.HasPrefix(trimmed, "-")
	hasColon := strings.Contains(trimmed, ":")

	switch {
	case !indented && !dashed && hasColon:
		return roleName
	case indented && dashed && hasColon:
		return roleCategory
	case indented && dashed:
		return roleBareTag
	case hasColon:
		return roleFallback
	default:
		return roleIgnored
	}
}

// parseLabelSyntax walks the text line by line with a current-character
// cursor. Duplicate categories merge by concatenation; completely empty
// characters are dropped at flush time.
func (p *Parser) parseLabelSyntax(text string) []domain.Character {
	var result []domain.Character
	var current *domain.Character

	flush := func() {
		if current != nil && !current.Tags.Empty() {
			result = append(result, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch classifyLine(line) {
		case roleBlank, roleIgnored:
			continue

		case roleName:
			name, rest, _ := strings.Cut(trimmed, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			flush()
			current = &domain.Character{Name: name, Tags: domain.NewTagMap()}
			if inline := strings.TrimSpace(rest); inline != "" {
				current.Tags.Add(domain.OtherCategory, splitValues(inline)...)
			}

		case roleCategory, roleFallback:
			if current == nil {
				continue
			}
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
			category, rest, _ := strings.Cut(body, ":")
			current.Tags.Add(category, splitValues(rest)...)

		case roleBareTag:
			if current == nil {
				continue
			}
			tag := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
			current.Tags.Add(domain.OtherCategory, tag)
		}
	}

	flush()
	return result
}

func splitValues(s string) []string {
	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
