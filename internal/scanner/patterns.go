package scanner

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/imHansiy/mediadex/internal/models"
)

// ──────────────────── Pattern Rules ────────────────────

// ParseRule is one ordered filename rule. Extract receives the submatches
// and returns the season/episode pair; season 0 means the rule carries no
// season information.
type ParseRule struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(m []string) (season, episode int)
}

// SeasonFolderRule matches a directory name against a season-marker shape
// and extracts the season number.
type SeasonFolderRule struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(m []string) int
}

// DirRule assigns a special-directory role from a folder name.
type DirRule struct {
	Role    string
	Pattern *regexp.Regexp
}

// PatternSet is one named preset: pure data consumed by the filename parser
// and the directory classifier. Selecting a preset never changes control
// flow, only which rules are consulted and in what order.
type PatternSet struct {
	Name          string
	VideoExts     map[string]bool
	SeasonEpisode []ParseRule
	EpisodeOnly   []ParseRule
	SeasonFolders []SeasonFolderRule
	SpecialDirs   []DirRule

	// LooseFolders treats every non-season folder as a movie-folder
	// candidate regardless of name shape.
	LooseFolders bool
}

// IsVideo reports whether the filename extension counts as video under this
// preset.
func (s *PatternSet) IsVideo(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	return s.VideoExts[strings.ToLower(name[idx:])]
}

// SeasonFolderNumber matches name against the preset's season-folder rules
// and returns the extracted season number.
func (s *PatternSet) SeasonFolderNumber(name string) (int, bool) {
	trimmed := strings.TrimSpace(name)
	for _, r := range s.SeasonFolders {
		m := r.Pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		return r.Extract(m), true
	}
	return 0, false
}

// DirectoryRole returns the special-directory role for a folder name, or ""
// when none matches. Season folders report the seasons role.
func (s *PatternSet) DirectoryRole(name string) string {
	if _, ok := s.SeasonFolderNumber(name); ok {
		return models.RoleDirSeasons
	}
	trimmed := strings.TrimSpace(name)
	for _, r := range s.SpecialDirs {
		if r.Pattern.MatchString(trimmed) {
			return r.Role
		}
	}
	return ""
}

// ──────────────────── Numerals ────────────────────

var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumeral reads an arabic or Chinese numeral up to 99.
func parseNumeral(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	// Chinese numerals: a十b where a defaults to 1 and b to 0.
	tens, units, seenTen := 0, 0, false
	for _, r := range s {
		if r == '十' {
			if seenTen {
				return 0, false
			}
			seenTen = true
			if tens == 0 {
				tens = 1
			}
			continue
		}
		d, ok := chineseDigits[r]
		if !ok {
			return 0, false
		}
		if seenTen {
			units = units*10 + d
		} else {
			tens = tens*10 + d
		}
	}
	if seenTen {
		return tens*10 + units, true
	}
	return tens, true
}

// numeral group class used by the CJK rules below.
const cjkNum = `[0-9一二三四五六七八九十两零]`

// ──────────────────── Extract helpers ────────────────────

func extractPair(m []string) (int, int) {
	s, _ := parseNumeral(m[1])
	e, _ := parseNumeral(m[2])
	return s, e
}

func extractEpisode(m []string) (int, int) {
	e, _ := parseNumeral(m[1])
	return 0, e
}

func extractSeason(m []string) int {
	s, _ := parseNumeral(m[1])
	return s
}

// ──────────────────── Built-in rule tables ────────────────────

var (
	ruleSxxExx = ParseRule{
		Name:    "sxxexx",
		Pattern: regexp.MustCompile(`(?i)\bS(\d{1,2})[ ._-]?EP?(\d{1,3})\b`),
		Extract: extractPair,
	}
	ruleXbyY = ParseRule{
		Name:    "NxM",
		Pattern: regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{1,2})x(\d{1,3})(?:[^0-9]|$)`),
		Extract: extractPair,
	}
	ruleSeasonEpisodeWords = ParseRule{
		Name:    "season-episode-words",
		Pattern: regexp.MustCompile(`(?i)season[ ._-]*(\d{1,2})[ ._-]*episode[ ._-]*(\d{1,3})`),
		Extract: extractPair,
	}
	ruleCJKSeasonEpisode = ParseRule{
		Name:    "cjk-season-episode",
		Pattern: regexp.MustCompile(`第(` + cjkNum + `{1,3})季.{0,4}?第(` + cjkNum + `{1,4})[集话話期]`),
		Extract: extractPair,
	}
	ruleBracketPair = ParseRule{
		Name:    "bracket-pair",
		Pattern: regexp.MustCompile(`\[(\d{1,2})\]\[(\d{1,3})\]`),
		Extract: extractPair,
	}

	ruleEpisodeWord = ParseRule{
		Name:    "episode-word",
		Pattern: regexp.MustCompile(`(?i)episode[ ._-]*(\d{1,4})`),
		Extract: extractEpisode,
	}
	ruleExx = ParseRule{
		Name:    "exx",
		Pattern: regexp.MustCompile(`(?i)(?:^|[^a-z0-9])EP?(\d{1,3})(?:[^0-9]|$)`),
		Extract: extractEpisode,
	}
	ruleCJKEpisode = ParseRule{
		Name:    "cjk-episode",
		Pattern: regexp.MustCompile(`第(` + cjkNum + `{1,4})[集话話期]`),
		Extract: extractEpisode,
	}
	// Loose only: a short bare number set off by separators, commonly an
	// episode index in fansub releases.
	ruleBareNumber = ParseRule{
		Name:    "bare-number",
		Pattern: regexp.MustCompile(`(?:^|[ ._\-\[])(\d{1,3})(?:[ ._\-\]]|$)`),
		Extract: extractEpisode,
	}

	seasonFolderShort = SeasonFolderRule{
		Name:    "sxx",
		Pattern: regexp.MustCompile(`(?i)^s(\d{1,2})(?:[ ._-].*)?$`),
		Extract: extractSeason,
	}
	seasonFolderWord = SeasonFolderRule{
		Name:    "season-word",
		Pattern: regexp.MustCompile(`(?i)^season[ ._-]*(\d{1,3})(?:[ ._-].*)?$`),
		Extract: extractSeason,
	}
	seasonFolderCJK = SeasonFolderRule{
		Name:    "cjk-season",
		Pattern: regexp.MustCompile(`^第(` + cjkNum + `{1,3})季$`),
		Extract: extractSeason,
	}
	seasonFolderSpecials = SeasonFolderRule{
		Name:    "specials",
		Pattern: regexp.MustCompile(`(?i)^(specials?)$`),
		Extract: func(m []string) int { return 0 },
	}

	seasonFolderShortStrict = SeasonFolderRule{
		Name:    "sxx-strict",
		Pattern: regexp.MustCompile(`^[Ss](\d{2})$`),
		Extract: extractSeason,
	}
	seasonFolderWordStrict = SeasonFolderRule{
		Name:    "season-word-strict",
		Pattern: regexp.MustCompile(`(?i)^season (\d{1,2})$`),
		Extract: extractSeason,
	}
)

func specialDirRules() []DirRule {
	return []DirRule{
		{Role: models.RoleDirMovies, Pattern: regexp.MustCompile(`(?i)^(movies?|films?|电影|影片)$`)},
		{Role: models.RoleDirTVShows, Pattern: regexp.MustCompile(`(?i)^(tv|tv[ ._-]?shows?|tv[ ._-]?series|series|shows?|电视剧|剧集|连续剧|美剧|日剧|韩剧)$`)},
		{Role: models.RoleDirDocumentaries, Pattern: regexp.MustCompile(`(?i)^(documentar(?:y|ies)|docs?|纪录片|记录片)$`)},
		{Role: models.RoleDirAnime, Pattern: regexp.MustCompile(`(?i)^(anime|animation|动漫|动画|番剧)$`)},
		{Role: models.RoleDirContent, Pattern: regexp.MustCompile(`(?i)^(media|content|videos?|library|资源|影视|视频)$`)},
	}
}

func videoExts(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

var baseVideoExts = []string{
	".mp4", ".mkv", ".avi", ".mov", ".m4v", ".wmv",
	".flv", ".webm", ".ts", ".m2ts", ".mpg", ".mpeg",
}

// ──────────────────── Built-in presets ────────────────────

func defaultSet() *PatternSet {
	return &PatternSet{
		Name:      "default",
		VideoExts: videoExts(baseVideoExts...),
		SeasonEpisode: []ParseRule{
			ruleSxxExx, ruleXbyY, ruleSeasonEpisodeWords, ruleCJKSeasonEpisode, ruleBracketPair,
		},
		EpisodeOnly: []ParseRule{
			ruleEpisodeWord, ruleExx, ruleCJKEpisode,
		},
		SeasonFolders: []SeasonFolderRule{
			seasonFolderShort, seasonFolderWord, seasonFolderCJK, seasonFolderSpecials,
		},
		SpecialDirs: specialDirRules(),
	}
}

func chineseSet() *PatternSet {
	return &PatternSet{
		Name:      "chinese",
		VideoExts: videoExts(append(baseVideoExts, ".rmvb", ".rm", ".3gp")...),
		SeasonEpisode: []ParseRule{
			ruleCJKSeasonEpisode, ruleSxxExx, ruleXbyY, ruleSeasonEpisodeWords, ruleBracketPair,
		},
		EpisodeOnly: []ParseRule{
			ruleCJKEpisode, ruleEpisodeWord, ruleExx,
		},
		SeasonFolders: []SeasonFolderRule{
			seasonFolderCJK, seasonFolderShort, seasonFolderWord, seasonFolderSpecials,
		},
		SpecialDirs: specialDirRules(),
	}
}

func strictSet() *PatternSet {
	return &PatternSet{
		Name:      "strict",
		VideoExts: videoExts(".mp4", ".mkv", ".avi", ".mov", ".m4v", ".ts"),
		SeasonEpisode: []ParseRule{
			ruleSxxExx, ruleSeasonEpisodeWords,
		},
		EpisodeOnly: []ParseRule{
			ruleEpisodeWord,
		},
		SeasonFolders: []SeasonFolderRule{
			seasonFolderShortStrict, seasonFolderWordStrict,
		},
		SpecialDirs: specialDirRules(),
	}
}

func looseSet() *PatternSet {
	return &PatternSet{
		Name:      "loose",
		VideoExts: videoExts(append(baseVideoExts, ".rmvb", ".rm", ".3gp", ".iso", ".divx", ".vob", ".ogv")...),
		SeasonEpisode: []ParseRule{
			ruleSxxExx, ruleXbyY, ruleSeasonEpisodeWords, ruleCJKSeasonEpisode, ruleBracketPair,
		},
		EpisodeOnly: []ParseRule{
			ruleEpisodeWord, ruleExx, ruleCJKEpisode, ruleBareNumber,
		},
		SeasonFolders: []SeasonFolderRule{
			seasonFolderShort, seasonFolderWord, seasonFolderCJK, seasonFolderSpecials,
		},
		SpecialDirs:  specialDirRules(),
		LooseFolders: true,
	}
}

// ──────────────────── Registry ────────────────────

// Registry holds the named pattern sets. Lookups for unknown names fall
// back to the default preset.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]*PatternSet
}

func NewRegistry() *Registry {
	r := &Registry{sets: make(map[string]*PatternSet)}
	for _, s := range []*PatternSet{defaultSet(), chineseSet(), strictSet(), looseSet()} {
		r.sets[s.Name] = s
	}
	return r
}

func (r *Registry) Get(name string) *PatternSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sets[name]; ok {
		return s
	}
	if name != "" {
		log.Printf("Patterns: unknown preset %q, falling back to default", name)
	}
	return r.sets["default"]
}

func (r *Registry) Register(s *PatternSet) {
	if s == nil || s.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[s.Name] = s
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	return names
}

// ──────────────────── Custom preset files ────────────────────

type presetFile struct {
	Presets []presetSpec `yaml:"presets"`
}

type presetSpec struct {
	Name          string     `yaml:"name"`
	Extends       string     `yaml:"extends"`
	VideoExts     []string   `yaml:"video_exts"`
	LooseFolders  *bool      `yaml:"loose_folders"`
	SeasonEpisode []ruleSpec `yaml:"season_episode"`
	EpisodeOnly   []ruleSpec `yaml:"episode_only"`
	SeasonFolders []ruleSpec `yaml:"season_folders"`
}

type ruleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// LoadFile reads custom presets from a YAML file and registers them. Each
// custom preset extends a built-in (default when unspecified); its rules are
// prepended so they take priority. An individual rule that fails to compile
// is skipped with a warning rather than failing the whole preset.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets file: %w", err)
	}
	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse presets file: %w", err)
	}

	loaded := 0
	for _, spec := range pf.Presets {
		if spec.Name == "" {
			log.Printf("Patterns: skipping preset with empty name in %s", path)
			continue
		}
		base := r.Get(spec.Extends)
		set := &PatternSet{
			Name:          spec.Name,
			VideoExts:     base.VideoExts,
			SeasonEpisode: base.SeasonEpisode,
			EpisodeOnly:   base.EpisodeOnly,
			SeasonFolders: base.SeasonFolders,
			SpecialDirs:   base.SpecialDirs,
			LooseFolders:  base.LooseFolders,
		}
		if len(spec.VideoExts) > 0 {
			set.VideoExts = videoExts(spec.VideoExts...)
		}
		if spec.LooseFolders != nil {
			set.LooseFolders = *spec.LooseFolders
		}
		if rules, ok := compileParseRules(spec.Name, spec.SeasonEpisode, extractPair); ok {
			set.SeasonEpisode = append(rules, set.SeasonEpisode...)
		}
		if rules, ok := compileParseRules(spec.Name, spec.EpisodeOnly, extractEpisode); ok {
			set.EpisodeOnly = append(rules, set.EpisodeOnly...)
		}
		if rules, ok := compileSeasonRules(spec.Name, spec.SeasonFolders); ok {
			set.SeasonFolders = append(rules, set.SeasonFolders...)
		}
		r.Register(set)
		loaded++
	}
	log.Printf("Patterns: loaded %d custom preset(s) from %s", loaded, path)
	return nil
}

func compileParseRules(preset string, specs []ruleSpec, extract func([]string) (int, int)) ([]ParseRule, bool) {
	var rules []ParseRule
	for _, rs := range specs {
		rx, err := regexp.Compile(rs.Pattern)
		if err != nil {
			log.Printf("Patterns: preset %s rule %q: bad pattern: %v", preset, rs.Name, err)
			continue
		}
		rules = append(rules, ParseRule{Name: rs.Name, Pattern: rx, Extract: extract})
	}
	return rules, len(rules) > 0
}

func compileSeasonRules(preset string, specs []ruleSpec) ([]SeasonFolderRule, bool) {
	var rules []SeasonFolderRule
	for _, rs := range specs {
		rx, err := regexp.Compile(rs.Pattern)
		if err != nil {
			log.Printf("Patterns: preset %s season rule %q: bad pattern: %v", preset, rs.Name, err)
			continue
		}
		rules = append(rules, SeasonFolderRule{Name: rs.Name, Pattern: rx, Extract: extractSeason})
	}
	return rules, len(rules) > 0
}
