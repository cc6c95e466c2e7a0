package domain

import (
	"strings"
	"unicode"
)

// Component keys. A card is embedded per component; search averages
// similarity over a selected subset of these keys.
const (
	ComponentName          = "name"
	ComponentType          = "type"
	ComponentManaCost      = "manaCost"
	ComponentKeywords      = "keywords"
	ComponentColorIdentity = "colorIdentity"
	ComponentStats         = "stats"
	ComponentAbilities     = "abilities"
	ComponentTheme         = "theme"
)

// Components maps a component key to its derived text. Only non-empty
// components are embedded.
type Components map[string]string

// themeVocabulary is the closed set of mechanical and thematic keywords
// matched as case-insensitive substrings of oracle text.
var themeVocabulary = []string{
	"counter", "draw", "destroy", "exile", "sacrifice", "token",
	"equipment", "aura", "artifact", "enchantment", "land",
	"graveyard", "library", "hand", "battlefield",
	"creature", "planeswalker", "instant", "sorcery",
}

// BreakdownCard derives the component texts consumed by the embedding
// engine. Intentionally crude bag-of-words signals, not NLP: the design
// bet is that hashed bag-of-words cosine over these fields is good
// enough for thematic matching.
func BreakdownCard(c *Card) Components {
	stats := ""
	if c.Power != "" && c.Toughness != "" {
		stats = c.Power + "/" + c.Toughness
	}
	return Components{
		ComponentName:          c.Name,
		ComponentType:          c.TypeLine,
		ComponentManaCost:      c.ManaCost,
		ComponentKeywords:      strings.Join(c.Keywords, " "),
		ComponentColorIdentity: strings.Join(c.ColorIdentity, ""),
		ComponentStats:         stats,
		ComponentAbilities:     ParseAbilities(c.OracleText),
		ComponentTheme:         ExtractTheme(c),
	}
}

// ParseAbilities flattens oracle text into a single ability clause string:
// sentences are split on terminators, bracketed mana symbols are spelled
// out, and "cost: effect" / "trigger, effect" clauses are rewritten as
// plain word sequences.
func ParseAbilities(oracleText string) string {
	if oracleText == "" {
		return ""
	}

	var clauses []string
	for _, raw := range splitSentences(oracleText) {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			continue
		}
		clause = expandSymbols(clause)

		if cost, effect, ok := strings.Cut(clause, ":"); ok {
			clause = strings.TrimSpace(cost) + " " + strings.TrimSpace(effect)
		} else if trigger, effect, ok := strings.Cut(clause, ","); ok {
			clause = strings.TrimSpace(trigger) + " " + strings.TrimSpace(effect)
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " ")
}

// splitSentences splits on runs of sentence terminators (. ! ?).
func splitSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

// expandSymbols replaces bracketed symbol tokens with text: single color
// letters become "<letter> mana", pure digits "<n> generic mana", and
// anything else is left as the original bracketed token.
func expandSymbols(s string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			return b.String()
		}
		close := strings.IndexByte(s[open:], '}')
		if close < 0 {
			b.WriteString(s)
			return b.String()
		}
		close += open

		b.WriteString(s[:open])
		token := s[open+1 : close]
		switch {
		case len(token) == 1 && strings.ContainsRune(wubrg, rune(token[0])):
			b.WriteString(strings.ToLower(token) + " mana")
		case isDigits(token):
			b.WriteString(token + " generic mana")
		default:
			b.WriteString(s[open : close+1])
		}
		s = s[close+1:]
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ExtractTheme concatenates subtype tokens, the keyword list, and any
// theme-vocabulary words appearing in the oracle text.
func ExtractTheme(c *Card) string {
	var elems []string
	elems = append(elems, c.Subtypes()...)
	elems = append(elems, c.Keywords...)

	lower := strings.ToLower(c.OracleText)
	for _, kw := range themeVocabulary {
		if strings.Contains(lower, kw) {
			elems = append(elems, kw)
		}
	}
	return strings.Join(elems, " ")
}
