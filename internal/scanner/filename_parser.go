package scanner

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/imHansiy/mediadex/internal/models"
)

// Plausibility bounds for season/episode numbers. A rule match that exceeds
// either bound is rejected and matching continues with the next rule in the
// preset's order, so a stray "99x250" token never claims a file.
const (
	maxSeason  = 50
	maxEpisode = 200
)

// ──────────────────── Compiled Regex (init once) ────────────────────

// Year extraction: requires a leading delimiter to avoid false matches, so a
// title that IS a year ("2012") keeps it.
// Matches: (2020) [2020] .2020. -2020- _2020_ ,2020+
var yearRx = regexp.MustCompile(`(?:[\(\[\.\-_,\s])([12]\d{3})(?:[\)\]\.\-_,+\s]|$)`)

// Bracketed release tags: [WEB-DL], 【字幕组】, {group}
var bracketGroupRx = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】|\{[^}]*\}`)

// Season/episode substrings stripped during title cleaning. Broader than the
// parse rules on purpose: cleaning removes anything episode-shaped even when
// the parse guard rejected it.
var seasonEpisodeTokenRx = regexp.MustCompile(
	`(?i)\bS\d{1,4}[ ._-]?EP?\d{1,4}\b` +
		`|(?i)\bseason[ ._-]*\d{1,4}(?:[ ._-]*episode[ ._-]*\d{1,4})?\b` +
		`|(?i)\bepisode[ ._-]*\d{1,4}\b` +
		`|(?i)\bS\d{1,2}\b` +
		`|(?i)(?:^|[^a-zA-Z0-9])EP?\d{1,4}(?:[^0-9]|$)` +
		`|(?i)\b\d{1,2}x\d{1,4}\b` +
		`|第[0-9一二三四五六七八九十两零]{1,4}[季集话話期]`,
)

// ──────────────────── Token-Based Garbage Detection ────────────────────

// garbageTokens is the set of release-noise tokens stripped from titles.
// Checked case-insensitively. Organized by category for maintainability.
var garbageTokens = buildGarbageSet(
	// Video codecs
	[]string{"x264", "x265", "h264", "h265", "h.264", "h.265", "hevc", "avc", "av1", "divx", "xvid", "vp9", "10bit", "8bit", "hi10p"},
	// Audio codecs & channels
	[]string{"aac", "aac2.0", "aac5.1", "ac3", "ac-3", "eac3", "dts", "dts-hd", "dtshd", "dts-x", "truehd", "atmos", "flac", "mp3", "opus", "dd5.1", "dd2.0", "ddp5.1", "5.1", "7.1", "2.0", "2audio"},
	// Resolution
	[]string{"480p", "480i", "576p", "576i", "720p", "720i", "1080p", "1080i", "1440p", "2160p", "4k", "8k", "uhd", "ultrahd"},
	// Source
	[]string{"bluray", "blu-ray", "bdrip", "brrip", "bdremux", "remux", "hdrip", "dvdrip", "dvd", "dvdscr",
		"webrip", "web-dl", "webdl", "web", "hdtv", "pdtv", "tvrip", "cam", "camrip", "telesync", "telecine",
		"hdr", "hdr10", "hdr10+", "dovi", "dv", "sdr"},
	// Release type / subs / misc
	[]string{"remastered", "proper", "repack", "rerip", "internal", "limited", "extended", "unrated", "uncut",
		"complete", "multi", "multisubs", "dubbed", "subbed", "subs", "sub",
		"chs", "cht", "gb", "big5", "chi", "eng", "jpn"},
	// Container formats appearing as tokens rather than extensions
	[]string{"mkv", "mp4", "avi"},
)

// resolutionAliases normalizes quality tokens; 4K-class labels collapse to 2160p.
var resolutionAliases = map[string]string{
	"480p": "480p", "480i": "480p", "576p": "576p", "576i": "576p",
	"720p": "720p", "720i": "720p", "1080p": "1080p", "1080i": "1080p",
	"1440p": "1440p", "2160p": "2160p", "4k": "2160p", "uhd": "2160p", "ultrahd": "2160p",
}

// ──────────────────── Main Parser ────────────────────

// ParseFilename extracts media metadata from a single video filename under
// the given preset. Season+episode rules are consulted first in preset
// order, then episode-only rules; a name matching neither is a movie. Title
// cleaning always runs, whichever branch wins.
func ParseFilename(name string, set *PatternSet) models.FileMetadata {
	meta := models.FileMetadata{RawName: name, Kind: models.KindMovie}

	stem := stripExtension(name)
	// Normalize underscores for pattern matching; byte offsets are preserved.
	normalized := strings.ReplaceAll(stem, "_", " ")

	meta.Year = extractYear(normalized)
	meta.Quality = extractQuality(normalized)

	if season, episode, pos, ok := matchRules(normalized, set.SeasonEpisode, true); ok {
		meta.Kind = models.KindEpisode
		meta.Season = intPtr(season)
		meta.Episode = intPtr(episode)
		meta.Title = titleBeforeMatch(normalized, pos)
		return meta
	}
	if _, episode, pos, ok := matchRules(normalized, set.EpisodeOnly, false); ok {
		meta.Kind = models.KindEpisode
		meta.Episode = intPtr(episode)
		meta.Title = titleBeforeMatch(normalized, pos)
		return meta
	}

	meta.Title = CleanTitle(stem)
	if meta.Title == "" {
		meta.Kind = models.KindUnknown
	}
	return meta
}

// matchRules walks an ordered rule table and returns the first match that
// survives the plausibility guard, along with the byte offset of the match
// for show-name extraction.
func matchRules(name string, rules []ParseRule, needSeason bool) (season, episode, matchPos int, ok bool) {
	for _, r := range rules {
		loc := r.Pattern.FindStringSubmatchIndex(name)
		if loc == nil {
			continue
		}
		s, e := r.Extract(groupsAt(name, loc))
		if e <= 0 || e > maxEpisode || (needSeason && (s <= 0 || s > maxSeason)) {
			log.Printf("Parse: rule %s matched implausible S%dE%d in %q, trying next pattern", r.Name, s, e, name)
			continue
		}
		return s, e, loc[0], true
	}
	return 0, 0, -1, false
}

// groupsAt materializes submatch strings from FindStringSubmatchIndex output.
func groupsAt(s string, loc []int) []string {
	groups := make([]string, 0, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, s[loc[i]:loc[i+1]])
	}
	return groups
}

// titleBeforeMatch extracts the show name from everything before the episode
// indicator. A name that leads with the indicator falls back to cleaning the
// whole string, which strips the indicator itself.
func titleBeforeMatch(name string, matchPos int) string {
	if matchPos > 0 {
		if t := CleanTitle(name[:matchPos]); t != "" {
			return t
		}
	}
	return CleanTitle(name)
}

// ──────────────────── Title Cleaning ────────────────────

// CleanTitle reduces a filename to its human title. Never fails: the worst
// input yields an empty string. Cleaning an already clean title returns it
// unchanged, so the pipeline can re-run it safely.
//
// Passes: extension, bracketed tags, year breakpoint, episode-shaped tokens,
// delimiter normalization, then a garbage-token bitmap walk that stops after
// two consecutive junk tokens (release noise through to the group suffix).
func CleanTitle(name string) string {
	base := stripExtension(name)

	cleaned := bracketGroupRx.ReplaceAllString(base, " ")

	// Year as breakpoint: scene names put the year between title and noise,
	// so everything from the year onward goes.
	if m := yearRx.FindStringSubmatchIndex(cleaned); m != nil {
		if y, err := strconv.Atoi(cleaned[m[2]:m[3]]); err == nil && plausibleYear(y) {
			if m[0] > 0 {
				cleaned = cleaned[:m[0]]
			} else {
				cleaned = cleaned[:m[2]] + cleaned[m[3]:]
			}
		}
	}

	cleaned = seasonEpisodeTokenRx.ReplaceAllString(cleaned, " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")

	tokens := tokenize(cleaned)
	if len(tokens) == 0 {
		return collapseSpaces(strings.Trim(strings.NewReplacer(".", " ", "_", " ").Replace(base), " -–"))
	}

	var kept []string
	consecutiveBad := 0
	for _, tok := range tokens {
		if garbageTokens[strings.ToLower(tok)] {
			consecutiveBad++
			if consecutiveBad >= 2 {
				break
			}
			continue
		}
		kept = append(kept, tok)
		consecutiveBad = 0
	}

	// Safety: a name that is nothing but noise keeps its first token.
	if len(kept) == 0 {
		kept = tokens[:1]
	}

	title := strings.Join(kept, " ")
	title = strings.Trim(title, " -–")
	return collapseSpaces(title)
}

// ──────────────────── Year and Quality ────────────────────

func plausibleYear(y int) bool { return y >= 1900 && y <= 2100 }

// extractYear returns the last plausible delimited year in the name. Later
// tokens win: "1917 (2019)" is the 2019 release.
func extractYear(name string) *int {
	matches := yearRx.FindAllStringSubmatch(name, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		y, err := strconv.Atoi(matches[i][1])
		if err == nil && plausibleYear(y) {
			return intPtr(y)
		}
	}
	return nil
}

// extractQuality scans tokens for a resolution marker and normalizes it.
func extractQuality(name string) *string {
	flat := strings.NewReplacer(".", " ", "_", " ", "[", " ", "]", " ", "(", " ", ")", " ").Replace(name)
	for _, tok := range strings.Fields(flat) {
		if q, ok := resolutionAliases[strings.ToLower(strings.Trim(tok, "-–,;"))]; ok {
			return strPtr(q)
		}
	}
	return nil
}

// ──────────────────── Utility Functions ────────────────────

// stripExtension removes a short alphanumeric trailing extension. Longer
// dotted suffixes stay: they are title segments, not extensions.
func stripExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return name
	}
	ext := name[idx+1:]
	if len(ext) > 5 {
		return name
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return name
		}
	}
	return name[:idx]
}

// buildGarbageSet creates a case-insensitive set of noise tokens.
func buildGarbageSet(slices ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, sl := range slices {
		for _, s := range sl {
			set[strings.ToLower(s)] = true
		}
	}
	return set
}

// tokenize splits on whitespace and strips surrounding punctuation, keeping
// dashes inside words like "Spider-Man".
func tokenize(s string) []string {
	parts := strings.Fields(s)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "-–()[]{}+,;")
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

var spaceRunRx = regexp.MustCompile(`\s+`)

// collapseSpaces replaces consecutive whitespace with a single space.
func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRunRx.ReplaceAllString(s, " "))
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
