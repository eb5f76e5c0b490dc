package tone

import (
	"slices"
	"strings"
	"testing"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// fixedRand returns preset values so copy selection is predictable.
type fixedRand struct {
	idx int
	f   float64
}

func (r fixedRand) IntN(n int) int   { return r.idx % n }
func (r fixedRand) Float64() float64 { return r.f }

func TestPoolsHaveAtLeastThreeEntries(t *testing.T) {
	for _, tn := range []models.CoachTone{models.ToneKind, models.ToneBalanced, models.ToneStrict} {
		if n := len(Prefixes(tn)); n < 3 {
			t.Errorf("tone %q has %d prefixes, want >= 3", tn, n)
		}
		if n := len(Quotes(tn, "فهد")); n < 3 {
			t.Errorf("tone %q has %d quotes, want >= 3", tn, n)
		}
	}
}

func TestPrefix_AppendsNameAboveThreshold(t *testing.T) {
	got := Prefix(fixedRand{idx: 1, f: 0.9}, models.ToneStrict, "فهد")
	if got != "بدون أعذار فهد" {
		t.Errorf("Prefix() = %q", got)
	}
	got = Prefix(fixedRand{idx: 1, f: 0.2}, models.ToneStrict, "فهد")
	if got != "بدون أعذار" {
		t.Errorf("Prefix() without name = %q", got)
	}
}

func TestPrefixes_UnknownToneFallsBackToBalanced(t *testing.T) {
	if !slices.Equal(Prefixes(""), Prefixes(models.ToneBalanced)) {
		t.Error("expected balanced prefixes for an empty tone")
	}
}

func TestQuotes_StrictFirstEntry(t *testing.T) {
	if q := Quotes(models.ToneStrict, "فهد")[0]; q != "قوم تحرك! الراحة ما تبني جسم." {
		t.Errorf("strict quote = %q", q)
	}
	if q := Quotes(models.ToneKind, "فهد")[0]; !strings.Contains(q, "فهد") {
		t.Errorf("kind quote should mention the name, got %q", q)
	}
}

func TestFromLiteral(t *testing.T) {
	if tn, ok := FromLiteral(" صارم "); !ok || tn != models.ToneStrict {
		t.Errorf("FromLiteral(صارم) = %q, %v", tn, ok)
	}
	if _, ok := FromLiteral("صارم جدا"); ok {
		t.Error("only exact literals should select a tone")
	}
}

func TestBuildToneGuide(t *testing.T) {
	guide := BuildToneGuide(models.ToneStrict)
	if !strings.Contains(guide, "<TONE POLICY>") || !strings.Contains(guide, "لا يكثر") {
		t.Errorf("unexpected strict guide: %s", guide)
	}
	if !strings.Contains(BuildToneGuide(""), "Balance encouragement") {
		t.Error("empty tone should produce the balanced guide")
	}
}

func TestPick_Empty(t *testing.T) {
	if got := Pick(fixedRand{}, nil); got != "" {
		t.Errorf("Pick(nil) = %q", got)
	}
}
