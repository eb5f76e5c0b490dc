// Package tone holds the coach's voice: per-tone opening phrases, the motivational
// quote pool, and the tone policy snippet injected into LLM system prompts.
package tone

import (
	"strings"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// Rand is the subset of math/rand/v2 used to pick copy. Implementations must be safe
// for use by a single goroutine at a time; the engine serializes access.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// ---- Copy pools ----

// prefixes maps each tone to its opening phrases. Every pool has at least three entries.
var prefixes = map[models.CoachTone][]string{
	models.ToneKind:     {"يا هلا وغلا", "حبيبي", "ما عليه", "خذ وقتك"},
	models.ToneBalanced: {"يا بطل", "اسمعني", "خلنا نركز", "ممتاز"},
	models.ToneStrict:   {"واقف عندك!", "بدون أعذار", "ركز معي!", "لا يكثر"},
}

// nameChance is the probability an opening phrase is followed by the user's name.
const nameChance = 0.5

// Prefixes returns the opening phrases for a tone, falling back to balanced.
func Prefixes(t models.CoachTone) []string {
	if p, ok := prefixes[t]; ok {
		return p
	}
	return prefixes[models.DefaultTone]
}

// Prefix picks an opening phrase for the tone and, about half the time, appends name.
func Prefix(r Rand, t models.CoachTone, name string) string {
	p := Pick(r, Prefixes(t))
	if name != "" && r.Float64() > nameChance {
		return p + " " + name
	}
	return p
}

// Pick returns a uniformly chosen element of pool, or "" when pool is empty.
func Pick(r Rand, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[r.IntN(len(pool))]
}

// Quotes returns the motivational pool for a tone. The first entry depends on tone.
func Quotes(t models.CoachTone, name string) []string {
	first := "يا " + name + "، كل خطوة تقربك لهدفك."
	if t == models.ToneStrict {
		first = "قوم تحرك! الراحة ما تبني جسم."
	}
	return []string{
		first,
		"الجسم اللي تبيه ينتظرك بعد التعب.",
		"لا توقف لما تتعب، وقف لما تخلص!",
		"الأكل الصحي احترام لجسمك، مو عقاب.",
	}
}

// ---- Selection ----

// literals are the exact words that select a tone outside onboarding.
var literals = map[string]models.CoachTone{
	"لطيف":   models.ToneKind,
	"متوازن": models.ToneBalanced,
	"صارم":   models.ToneStrict,
}

// FromLiteral maps an exact tone word to its tone.
func FromLiteral(s string) (models.CoachTone, bool) {
	t, ok := literals[strings.TrimSpace(s)]
	return t, ok
}

// ---- Prompt guide ----

// BuildToneGuide produces a compact instruction snippet for injection into LLM system prompts.
func BuildToneGuide(t models.CoachTone) string {
	var b strings.Builder
	b.WriteString("\n<TONE POLICY>\nAdapt your responses to the coach tone the user picked:\n")
	switch t {
	case models.ToneKind:
		b.WriteString("- Be gentle and patient. Praise small wins and never shame.\n")
		b.WriteString("- Open with phrases like: " + strings.Join(prefixes[models.ToneKind], "، ") + "\n")
	case models.ToneStrict:
		b.WriteString("- Be a tough coach: short, direct, no excuses accepted.\n")
		b.WriteString("- Open with phrases like: " + strings.Join(prefixes[models.ToneStrict], "، ") + "\n")
	default:
		b.WriteString("- Balance encouragement with clear limits.\n")
		b.WriteString("- Open with phrases like: " + strings.Join(prefixes[models.ToneBalanced], "، ") + "\n")
	}
	b.WriteString("- NEVER insult the user or comment on their body in a demeaning way.\n")
	b.WriteString("</TONE POLICY>\n")
	return b.String()
}
