package flow

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"arabic-indic digits", "عمري ٢٥", "عمري 25"},
		{"extended digits", "۱۷۰ سم", "170 سم"},
		{"tatweel", "صـــارم", "صارم"},
		{"hamzated alef", "أسلوب إصابة آكل", "اسلوب اصابه اكل"},
		{"ta marbuta", "محافظة", "محافظه"},
		{"case and spaces", "  VIP   Pro\n", "vip pro"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasWord(t *testing.T) {
	if !HasWord("كم سعرات التمر؟", "التمر") {
		t.Error("expected whole word match with trailing punctuation")
	}
	if HasWord("كم تمرين", "تمر") {
		t.Error("substring must not count as a word")
	}
}

func TestContainsAny_FoldsKeywords(t *testing.T) {
	if !ContainsAny(Normalize("عندي اصابه"), "إصابة") {
		t.Error("keyword with hamza and ta marbuta should match folded input")
	}
	if !ContainsAny(Normalize("عندي إصابة"), "اصابه") {
		t.Error("folded keyword should match input with hamza")
	}
	if HasWord(Normalize("كيف المشي"), "ألم") {
		t.Error("pain word must not match inside walking")
	}
	if !HasWord(Normalize("فيني ألم"), "الم") {
		t.Error("expected whole word match after folding")
	}
}

func TestFirstInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"وزني 82 كيلو", 82, true},
		{"170سم", 170, true},
		{"ما ادري", 0, false},
	}
	for _, tt := range tests {
		got, ok := firstInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("firstInt(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
