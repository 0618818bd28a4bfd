// Package scanner walks the user's selected lorebooks and splits them into
// two products: a name-keyed character map built from <BunnymoTags> blocks in
// character-repository books, and a keyword index over tag-library books.
package scanner

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mirren/bunnymo-bridge-go/internal/constants"
	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/internal/parser"
	"github.com/mirren/bunnymo-bridge-go/internal/service/cache"
	"github.com/mirren/bunnymo-bridge-go/internal/util"
	"github.com/mirren/bunnymo-bridge-go/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// LorebookSource loads lorebook entries; implemented by the host client.
type LorebookSource interface {
	GetLorebook(ctx context.Context, name string) ([]domain.LorebookEntry, error)
}

var markupPattern = regexp.MustCompile(`(?i)</?(p|div|br|span|ul|ol|li|h[1-6]|table|em|strong)\b`)

type Scanner struct {
	source      LorebookSource
	cache       *cache.CacheService // may be nil, scanning then runs uncached
	parser      *parser.Parser
	logger      *zap.Logger
	concurrency int
}

func New(source LorebookSource, cacheSvc *cache.CacheService, p *parser.Parser, logger *zap.Logger, concurrency int) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		source:      source,
		cache:       cacheSvc,
		parser:      p,
		logger:      logger,
		concurrency: util.Max(1, concurrency),
	}
}

// Result is one scan pass over the selected lorebooks.
type Result struct {
	characters map[string]domain.Character
	order      []string
	tagIndex   map[string][]domain.TagDefinition
}

func newResult() *Result {
	return &Result{
		characters: make(map[string]domain.Character),
		tagIndex:   make(map[string][]domain.TagDefinition),
	}
}

// Characters returns the scanned characters in first-seen order.
func (r *Result) Characters() []domain.Character {
	chars := make([]domain.Character, 0, len(r.order))
	for _, name := range r.order {
		chars = append(chars, r.characters[name])
	}
	return chars
}

// Character looks up one character by name.
func (r *Result) Character(name string) (domain.Character, bool) {
	c, ok := r.characters[name]
	return c, ok
}

// FindDefinitions returns tag-library definitions for a keyword, matched on
// the normalized form.
func (r *Result) FindDefinitions(keyword string) []domain.TagDefinition {
	return r.tagIndex[util.NormalizeKey(keyword)]
}

// Len returns the number of scanned characters.
func (r *Result) Len() int {
	return len(r.order)
}

// InvalidateTagLibraries drops cached indexes for the named tag-library
// books so the next scan rebuilds them from live lorebook content.
func (s *Scanner) InvalidateTagLibraries(ctx context.Context, names []string) {
	if s.cache == nil {
		return
	}
	for _, name := range names {
		s.cache.InvalidateTagIndex(ctx, name)
	}
}

type bookResult struct {
	name       string
	characters []domain.Character
	tagIndex   map[string][]domain.TagDefinition
}

// Scan loads and processes every named lorebook. Books flagged in
// characterRepos are scanned for character tag blocks; the rest are indexed
// as tag libraries. Books are fetched concurrently but merged in input
// order, so the first occurrence of a character name always wins and repeat
// scans are deterministic. A failing book is logged and skipped; it never
// aborts the others.
func (s *Scanner) Scan(ctx context.Context, names []string, characterRepos map[string]bool) *Result {
	result := newResult()
	if len(names) == 0 {
		return result
	}

	perBook := make([]*bookResult, len(names))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for idx, name := range names {
		idx, name := idx, name
		p.Go(func() {
			br := s.scanBook(ctx, name, characterRepos[name])
			mu.Lock()
			perBook[idx] = br
			mu.Unlock()
		})
	}
	p.Wait()

	for _, br := range perBook {
		if br == nil {
			continue
		}
		for _, char := range br.characters {
			if _, exists := result.characters[char.Name]; exists {
				s.logger.Debug("Duplicate character name, keeping first",
					zap.String("name", char.Name),
					zap.String("lorebook", br.name),
				)
				continue
			}
			result.characters[char.Name] = char
			result.order = append(result.order, char.Name)
		}
		for key, defs := range br.tagIndex {
			result.tagIndex[key] = append(result.tagIndex[key], defs...)
		}
	}

	s.logger.Info("Lorebook scan complete",
		zap.Int("lorebooks", len(names)),
		zap.Int("characters", len(result.order)),
		zap.Int("indexed_keywords", len(result.tagIndex)),
	)
	return result
}

func (s *Scanner) scanBook(ctx context.Context, name string, isCharacterRepo bool) *bookResult {
	if !isCharacterRepo {
		if index := s.tagIndexFor(ctx, name); index != nil {
			return &bookResult{name: name, tagIndex: index}
		}
		return nil
	}

	entries, err := s.source.GetLorebook(ctx, name)
	if err != nil {
		s.logger.Warn("Skipping unreadable lorebook",
			zap.String("lorebook", name),
			zap.Error(errors.NewScanError("lorebook fetch failed", name, err)),
		)
		return nil
	}
	return &bookResult{name: name, characters: s.scanCharacterEntries(name, entries)}
}

func (s *Scanner) scanCharacterEntries(book string, entries []domain.LorebookEntry) []domain.Character {
	var characters []domain.Character

	for _, entry := range entries {
		if entry.Disabled {
			continue
		}

		chars := s.parser.ParseTagBlocks(entry.Content, book)
		if len(chars) == 0 {
			chars = s.parsePlainEntry(entry, book)
		}

		for _, char := range chars {
			char.UID = entry.UID
			characters = append(characters, char)
		}
	}
	return characters
}

// parsePlainEntry handles character entries written without a tag block:
// label-syntax text, optionally wrapped in HTML. When the text has trait
// lines but no leading name line, the entry's comment supplies the name.
func (s *Scanner) parsePlainEntry(entry domain.LorebookEntry, book string) []domain.Character {
	text := entry.Content
	if markupPattern.MatchString(text) {
		text = htmlToText(text)
	}

	chars := s.parser.Parse(text)
	if len(chars) == 0 && strings.TrimSpace(entry.Comment) != "" {
		chars = s.parser.Parse(strings.TrimSpace(entry.Comment) + ":\n" + text)
	}

	for i := range chars {
		chars[i].Source = book
	}
	return chars
}

func htmlToText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return doc.Text()
}

// tagIndexFor builds (or fetches from cache) the keyword index for one
// tag-library book. Entries are indexed by every activation keyword and by
// <tag>-shaped tokens in their comment field.
func (s *Scanner) tagIndexFor(ctx context.Context, book string) map[string][]domain.TagDefinition {
	if s.cache != nil {
		if index, ok := s.cache.GetTagIndex(ctx, book); ok {
			s.logger.Debug("Tag index served from cache", zap.String("lorebook", book))
			return index
		}
	}

	entries, err := s.source.GetLorebook(ctx, book)
	if err != nil {
		s.logger.Warn("Skipping unreadable tag library",
			zap.String("lorebook", book),
			zap.Error(errors.NewScanError("tag library fetch failed", book, err)),
		)
		return nil
	}

	index := make(map[string][]domain.TagDefinition)
	add := func(keyword string, entry domain.LorebookEntry) {
		normalized := util.NormalizeKey(keyword)
		if normalized == "" {
			return
		}
		index[normalized] = append(index[normalized], domain.TagDefinition{
			Keyword:    keyword,
			Definition: entry.Content,
			Lorebook:   book,
			EntryUID:   entry.UID,
		})
	}

	for _, entry := range entries {
		if entry.Disabled {
			continue
		}
		for _, key := range entry.Key {
			add(key, entry)
		}
		for _, tag := range parser.ExtractCommentTags(entry.Comment) {
			add(tag, entry)
		}
	}

	if s.cache != nil && len(index) > 0 {
		s.cache.SetTagIndex(ctx, book, index, constants.CacheTTL.TagLibraryIndex)
	}
	return index
}
