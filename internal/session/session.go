// Package session owns all mutable state of one bridge lifetime: the scanned
// character map, the selected lorebook sets, the last processed message
// pointer, and the activation limiter. Nothing here is persisted; the host's
// message history is the only durable store and re-parsing happens on demand.
package session

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/internal/host"
	"github.com/mirren/bunnymo-bridge-go/internal/inject"
	"github.com/mirren/bunnymo-bridge-go/internal/optimizer"
	"github.com/mirren/bunnymo-bridge-go/internal/parser"
	"github.com/mirren/bunnymo-bridge-go/internal/scanner"
	"github.com/mirren/bunnymo-bridge-go/internal/util"
	"go.uber.org/zap"
)

// HostBridge is the slice of the host API the session drives.
type HostBridge interface {
	GetLorebook(ctx context.Context, name string) ([]domain.LorebookEntry, error)
	Inject(ctx context.Context, req host.InjectRequest) error
	PushCards(ctx context.Context, header string, characters []domain.Character) error
}

// Settings is the host-persisted configuration surface, read-only input at
// call time. The host owns persistence; the session only holds the latest
// snapshot.
type Settings struct {
	CharacterRepoBooks []string
	TagLibraryBooks    []string
	MaxCharacters      int
	PriorityTags       []string
	MaxTagsPerCategory int
	CompactFormat      bool
	ScanUserMessages   bool
	InjectionRole      string
	InjectionDepth     int
	InjectionEnabled   bool
	CardsEnabled       bool
}

func (s Settings) injectionPolicy() domain.OptimizationPolicy {
	p := domain.DefaultInjectionPolicy()
	if s.MaxCharacters > 0 {
		p.MaxCharacters = s.MaxCharacters
	}
	if len(s.PriorityTags) > 0 {
		p.PriorityCategories = s.PriorityTags
	}
	if s.MaxTagsPerCategory > 0 {
		p.MaxTagsPerCategory = s.MaxTagsPerCategory
	}
	p.Compact = s.CompactFormat
	return p
}

func (s Settings) cardPolicy() domain.OptimizationPolicy {
	p := domain.DefaultCardPolicy()
	if len(s.PriorityTags) > 0 {
		p.PriorityCategories = s.PriorityTags
	}
	if s.MaxTagsPerCategory > 0 {
		p.MaxTagsPerCategory = s.MaxTagsPerCategory
	}
	if s.MaxCharacters > p.MaxCharacters {
		p.MaxCharacters = s.MaxCharacters
	}
	return p
}

type Dependencies struct {
	Host      HostBridge
	Scanner   *scanner.Scanner
	Parser    *parser.Parser
	Optimizer *optimizer.Optimizer
	Templates *inject.TemplateStore
	Limiter   *util.ActivationLimiter
	Logger    *zap.Logger
	Settings  Settings
}

type Session struct {
	mu            sync.Mutex
	settings      Settings
	scanned       []domain.Character
	scanResult    *scanner.Result
	lastMessageID string

	hostAPI   HostBridge
	scanner   *scanner.Scanner
	parser    *parser.Parser
	optimizer *optimizer.Optimizer
	templates *inject.TemplateStore
	limiter   *util.ActivationLimiter
	logger    *zap.Logger
}

func New(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		settings:  deps.Settings,
		hostAPI:   deps.Host,
		scanner:   deps.Scanner,
		parser:    deps.Parser,
		optimizer: deps.Optimizer,
		templates: deps.Templates,
		limiter:   deps.Limiter,
		logger:    logger,
	}
}

// UpdateSettings replaces the settings snapshot.
func (s *Session) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// RescanLorebooks re-runs the scanner over the currently selected lorebook
// sets and replaces the session's character map.
func (s *Session) RescanLorebooks(ctx context.Context) {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	names := make([]string, 0, len(settings.CharacterRepoBooks)+len(settings.TagLibraryBooks))
	repos := make(map[string]bool, len(settings.CharacterRepoBooks))
	for _, name := range settings.CharacterRepoBooks {
		names = append(names, name)
		repos[name] = true
	}
	for _, name := range settings.TagLibraryBooks {
		if !repos[name] {
			names = append(names, name)
		}
	}

	// An explicit rescan means the user expects fresh lorebook content.
	s.scanner.InvalidateTagLibraries(ctx, settings.TagLibraryBooks)
	result := s.scanner.Scan(ctx, names, repos)

	s.mu.Lock()
	s.scanned = result.Characters()
	s.scanResult = result
	s.mu.Unlock()

	s.logger.Info("Lorebook characters refreshed", zap.Int("characters", result.Len()))
}

// HandleMessage runs the full pipeline for one host message event: parse the
// message for character tag data, merge with the lorebook scan, optimize,
// compose, inject, and push cards. Every failure degrades to a functional
// no-op; nothing here is surfaced to the end user as an error.
func (s *Session) HandleMessage(ctx context.Context, msg *domain.ChatMessage) {
	if msg == nil || msg.Text == "" {
		return
	}

	s.mu.Lock()
	settings := s.settings
	lastID := s.lastMessageID
	s.mu.Unlock()

	if msg.IsUserAuthored && !settings.ScanUserMessages {
		return
	}
	// The last-processed pointer plus the limiter prevent re-entrancy when
	// the bridge's own injection re-triggers host scanning.
	if msg.ID != "" && msg.ID == lastID {
		s.logger.Debug("Message already processed", zap.String("id", msg.ID))
		return
	}
	if !s.limiter.Allow() {
		s.logger.Debug("Activation limited, dropping message",
			zap.String("state", s.limiter.State().String()),
		)
		return
	}

	s.mu.Lock()
	s.lastMessageID = msg.ID
	scanned := s.scanned
	s.mu.Unlock()

	characters := s.collectCharacters(msg, scanned)
	if len(characters) == 0 {
		s.logger.Debug("No character data found, skipping turn")
		return
	}

	if settings.InjectionEnabled {
		s.injectCharacters(ctx, characters, settings)
	}
	if settings.CardsEnabled {
		s.pushCards(ctx, characters, settings)
	}
}

// collectCharacters merges characters parsed out of the message with the
// lorebook scan. Message characters come first; across both sources the
// first occurrence of a name wins.
func (s *Session) collectCharacters(msg *domain.ChatMessage, scanned []domain.Character) []domain.Character {
	fromMessage := s.parser.ParseTagBlocks(msg.Text, domain.SourceGenerated)
	if len(fromMessage) == 0 {
		fromMessage = s.parser.Parse(msg.Text)
		for i := range fromMessage {
			fromMessage[i].Source = domain.SourceGenerated
		}
	}

	seen := make(map[string]bool, len(fromMessage)+len(scanned))
	merged := make([]domain.Character, 0, len(fromMessage)+len(scanned))
	for _, char := range fromMessage {
		if seen[char.Name] {
			continue
		}
		seen[char.Name] = true
		merged = append(merged, char)
	}
	for _, char := range scanned {
		if seen[char.Name] {
			continue
		}
		seen[char.Name] = true
		merged = append(merged, char)
	}
	return merged
}

func (s *Session) injectCharacters(ctx context.Context, characters []domain.Character, settings Settings) {
	policy := settings.injectionPolicy()
	optimized := s.optimizer.Optimize(characters, policy)
	serialized := optimizer.Serialize(optimized, policy.Compact)
	if len(optimized) == 0 || serialized == "" {
		s.logger.Debug("Optimization left nothing to inject")
		return
	}

	report := optimizer.Measure(characters, optimized, policy.Compact)
	s.logger.Debug("Injection payload optimized",
		zap.Int("characters_in", report.CharactersIn),
		zap.Int("characters_out", report.CharactersOut),
		zap.Int("tokens_before", report.TokensBefore),
		zap.Int("tokens_after", report.TokensAfter),
	)

	template, err := s.templates.Get(inject.TemplateInjection)
	if err != nil {
		s.logger.Warn("Injection template unavailable, skipping injection", zap.Error(err))
		return
	}
	payload := inject.Compose(template, serialized, map[string]string{
		"CHARACTER_COUNT": strconv.Itoa(len(optimized)),
		"TAG_DEFINITIONS": s.tagGlossary(optimized),
	})

	role := settings.InjectionRole
	if role == "" {
		role = "system"
	}
	req := host.InjectRequest{
		Text:  payload,
		Role:  role,
		Depth: settings.InjectionDepth,
	}
	if err := s.hostAPI.Inject(ctx, req); err != nil {
		s.logger.Warn("Injection failed for this turn", zap.Error(err))
	}
}

// tagGlossary looks up tag-library definitions for the tag values that
// survived optimization and renders them as extra glossary lines. Capped so a
// rich tag library cannot blow up the injection budget.
func (s *Session) tagGlossary(characters []domain.Character) string {
	s.mu.Lock()
	result := s.scanResult
	s.mu.Unlock()
	if result == nil {
		return ""
	}

	const maxDefinitions = 5
	const maxDefinitionRunes = 200

	seen := make(map[string]bool)
	var lines []string
	for _, char := range characters {
		for _, category := range char.Tags.Categories() {
			for _, value := range char.Tags.Get(category) {
				if len(lines) == maxDefinitions {
					return "\n" + strings.Join(lines, "\n")
				}
				key := util.NormalizeKey(value)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				defs := result.FindDefinitions(value)
				if len(defs) == 0 {
					continue
				}
				definition := util.TruncateString(strings.TrimSpace(defs[0].Definition), maxDefinitionRunes)
				lines = append(lines, value+": "+definition)
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n")
}

func (s *Session) pushCards(ctx context.Context, characters []domain.Character, settings Settings) {
	cards := s.optimizer.Optimize(characters, settings.cardPolicy())
	if len(cards) == 0 {
		return
	}

	header := ""
	if template, err := s.templates.Get(inject.TemplateCardHeader); err == nil {
		header = strings.TrimSpace(inject.Compose(template, "", map[string]string{
			"CHARACTER_COUNT": strconv.Itoa(len(cards)),
		}))
	}

	if err := s.hostAPI.PushCards(ctx, header, cards); err != nil {
		s.logger.Warn("Card push failed for this turn", zap.Error(err))
	}
}
