package parser

import (
	"regexp"
	"strings"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"go.uber.org/zap"
)

const nameSentinel = "NAME"

var (
	tagBlockPattern = regexp.MustCompile(`(?is)<BunnymoTags>(.*?)</BunnymoTags>`)
	tagTokenPattern = regexp.MustCompile(`^<([^<>:]+):([^<>]*)>$`)
	// commentTagPattern matches bare <tag>-shaped tokens used in lorebook
	// entry comments to label tag definitions.
	commentTagPattern = regexp.MustCompile(`<([^<>:/][^<>:]*)>`)
)

// ExtractTagBlocks returns the inner text of every <BunnymoTags> block in
// order of appearance.
func ExtractTagBlocks(text string) []string {
	matches := tagBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// ExtractCommentTags returns <tag>-shaped tokens from a comment field, with
// the angle brackets stripped.
func ExtractCommentTags(comment string) []string {
	matches := commentTagPattern.FindAllStringSubmatch(comment, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if tag := strings.TrimSpace(m[1]); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ParseTagBlock converts the body of one <BunnymoTags> block into a
// character. Tokens are comma-separated <Category:Value> pairs; categories
// are upper-cased, underscores in values become spaces, and repeated values
// per category deduplicate silently. The NAME sentinel supplies the
// character's name. A character is only emitted when a NAME token was found
// and at least one other tag was collected.
func (p *Parser) ParseTagBlock(block, source string) *domain.Character {
	char := &domain.Character{Tags: domain.NewTagMap(), Source: source}

	for _, token := range strings.Split(block, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		m := tagTokenPattern.FindStringSubmatch(token)
		if m == nil {
			p.logger.Debug("Skipping malformed tag token", zap.String("token", token))
			continue
		}

		category := strings.ToUpper(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(strings.ReplaceAll(m[2], "_", " "))
		if category == "" || value == "" {
			continue
		}

		if category == nameSentinel {
			char.Name = value
			continue
		}
		char.Tags.AddUnique(category, value)
	}

	if char.Name == "" || char.Tags.Empty() {
		return nil
	}
	return char
}

// ParseTagBlocks extracts and parses every tag block in text.
func (p *Parser) ParseTagBlocks(text, source string) []domain.Character {
	var result []domain.Character
	for _, block := range ExtractTagBlocks(text) {
		if char := p.ParseTagBlock(block, source); char != nil {
			result = append(result, *char)
		}
	}
	return result
}
