package flow

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

func onboardedProfile() models.UserProfile {
	return models.UserProfile{
		Gender:        models.GenderMale,
		Age:           25,
		Height:        170,
		Weight:        70,
		Goal:          models.GoalWeightLoss,
		ActivityLevel: models.ActivityModerate,
		CoachTone:     models.ToneBalanced,
		Points:        120,
		Level:         2,
	}
}

// converse feeds inputs through the engine, merging every patch like the orchestrator does.
func converse(t *testing.T, e *Engine, p models.UserProfile, inputs ...string) (models.UserProfile, []models.Reply) {
	t.Helper()
	var replies []models.Reply
	for _, in := range inputs {
		r := e.Respond(in, p)
		if r.Text == "" {
			t.Fatalf("empty reply for input %q", in)
		}
		p = p.Apply(r.Patch)
		replies = append(replies, r)
	}
	return p, replies
}

func TestEndToEndOnboarding(t *testing.T) {
	e := NewEngine(WithSeed(7))
	inputs := []string{"توكلنا على الله", "رجال", "25", "170", "70", "تنشيف", "متوسط", "متوازن"}
	p, replies := converse(t, e, models.UserProfile{}, inputs...)

	first := replies[0]
	if first.Text != steps[0].question || !cmp.Equal(first.Options, []string{"رجال", "بنت"}) || first.Patch != nil {
		t.Fatalf("start keyword should show the gender question, got %+v", first)
	}
	if replies[1].Text != steps[1].question || *replies[1].Patch.Gender != models.GenderMale {
		t.Errorf("after gender: %+v", replies[1])
	}
	if replies[2].Text != steps[2].question || *replies[2].Patch.Age != 25 {
		t.Errorf("after age: %+v", replies[2])
	}
	if replies[4].Text != steps[4].question || !cmp.Equal(replies[4].Options, GoalOptions) {
		t.Errorf("after weight: %+v", replies[4])
	}

	done := replies[len(replies)-1]
	if !strings.Contains(done.Text, "2594") {
		t.Errorf("completion should quote 2594 kcal for a moderate male, got %q", done.Text)
	}
	if done.Action != models.ActionSaveProfile || !cmp.Equal(done.Options, StarterOptions) {
		t.Errorf("unexpected completion reply: %+v", done)
	}

	want := models.UserProfile{
		Gender: models.GenderMale, Age: 25, Height: 170, Weight: 70,
		Goal: models.GoalWeightLoss, ActivityLevel: models.ActivityModerate, CoachTone: models.ToneBalanced,
		Points: 50, Level: 1, FoodXP: 0, UnlockedMeals: []string{},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("profile after onboarding (-want +got):\n%s", diff)
	}
}

func TestEndToEndOnboarding_SedentaryCalories(t *testing.T) {
	e := NewEngine(WithSeed(7))
	_, replies := converse(t, e, models.UserProfile{}, "يلا", "رجال", "25", "170", "70", "تنشيف", "خامل (ما أتحرك)", "متوازن")
	if done := replies[len(replies)-1]; !strings.Contains(done.Text, "2008") {
		t.Errorf("completion should quote 2008 kcal, got %q", done.Text)
	}
}

func TestOnboarding_ArabicIndicDigits(t *testing.T) {
	e := NewEngine(WithSeed(1))
	r := e.Respond("عمري ٢٥ سنة", models.UserProfile{Gender: models.GenderFemale})
	if r.Patch == nil || r.Patch.Age == nil || *r.Patch.Age != 25 {
		t.Fatalf("expected age 25 from Arabic-Indic digits, got %+v", r.Patch)
	}
}

func TestOnboarding_IdempotentReask(t *testing.T) {
	e := NewEngine(WithSeed(3))
	full := onboardedProfile()
	tests := []struct {
		name  string
		field models.ProfileField
		input string
	}{
		{"gender noise", models.FieldGender, "ما ادري"},
		{"start keyword at gender", models.FieldGender, "تمام"},
		{"age words", models.FieldAge, "خمسة وعشرين"},
		{"age on bound", models.FieldAge, "100"},
		{"age too small", models.FieldAge, "5"},
		{"height out of range", models.FieldHeight, "300"},
		{"weight on bound", models.FieldWeight, "20"},
		{"goal noise", models.FieldGoal, "ما عندي هدف"},
		{"activity noise", models.FieldActivityLevel, "يعتمد"},
		{"tone noise", models.FieldCoachTone, "أي شي"},
		{"start keyword at tone", models.FieldCoachTone, "يلا"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := truncateAt(full, tt.field)
			before := p.Clone()
			r1 := e.Respond(tt.input, p)
			r2 := e.Respond(tt.input, p)
			idx := stepIndex(tt.field)
			if r1.Text != steps[idx].question || r2.Text != r1.Text {
				t.Errorf("expected re-ask of %q, got %q then %q", steps[idx].question, r1.Text, r2.Text)
			}
			if r1.Patch != nil {
				t.Errorf("re-ask must not carry a patch, got %+v", r1.Patch)
			}
			if diff := cmp.Diff(before, p.Apply(r1.Patch)); diff != "" {
				t.Errorf("profile changed on re-ask (-before +after):\n%s", diff)
			}
		})
	}
}

// truncateAt clears field and every required field after it.
func truncateAt(p models.UserProfile, field models.ProfileField) models.UserProfile {
	clear := false
	for _, f := range models.OnboardingFields {
		if f == field {
			clear = true
		}
		if !clear {
			continue
		}
		switch f {
		case models.FieldGender:
			p.Gender = ""
		case models.FieldAge:
			p.Age = 0
		case models.FieldHeight:
			p.Height = 0
		case models.FieldWeight:
			p.Weight = 0
		case models.FieldGoal:
			p.Goal = ""
		case models.FieldActivityLevel:
			p.ActivityLevel = ""
		case models.FieldCoachTone:
			p.CoachTone = ""
		}
	}
	return p
}

func TestOnboarding_OrderInvariant(t *testing.T) {
	pool := []string{
		"رجال", "بنت", "25", "٣٠", "170", "70", "500", "تنشيف", "تضخيم", "خامل", "عالي", "صارم", "لطيف",
		"ذكاء", "وضع رمضان", "جدول", "كرش", "كم سعرات الكبسة", "يلا", "xyz", "", "ركبتي",
	}
	rng := rand.New(rand.NewPCG(42, 99))
	e := NewEngine(WithSeed(11))
	for run := 0; run < 200; run++ {
		p := models.UserProfile{}
		for turn := 0; turn < 30; turn++ {
			in := pool[rng.IntN(len(pool))]
			r := e.Respond(in, p)
			if r.Text == "" {
				t.Fatalf("empty reply for %q", in)
			}
			if !p.IsOnboarded() && r.Patch != nil {
				assertSingleNextField(t, p, r.Patch)
			}
			p = p.Apply(r.Patch)
			assertPrefixFilled(t, p)
		}
	}
}

// assertPrefixFilled fails if a required field is set while an earlier one is not.
func assertPrefixFilled(t *testing.T, p models.UserProfile) {
	t.Helper()
	gap := false
	for _, f := range models.OnboardingFields {
		if !p.IsSet(f) {
			gap = true
			continue
		}
		if gap {
			t.Fatalf("field %q set before an earlier field: %+v", f, p)
		}
	}
}

// assertSingleNextField checks an onboarding patch only touches the next missing field,
// plus the progress counters on completion.
func assertSingleNextField(t *testing.T, p models.UserProfile, patch *models.ProfilePatch) {
	t.Helper()
	next, _ := p.NextOnboardingField()
	after := p.Apply(patch)
	for _, f := range models.OnboardingFields {
		if f != next && p.IsSet(f) != after.IsSet(f) {
			t.Fatalf("patch for %q also changed %q", next, f)
		}
	}
	if patch.IsSmartMode != nil || patch.IsRamadan != nil || patch.IsVoiceEnabled != nil {
		t.Fatalf("toggle applied during onboarding: %+v", patch)
	}
}

func TestOnboarding_CompletionSideEffects(t *testing.T) {
	e := NewEngine(WithSeed(5))
	base := truncateAt(onboardedProfile(), models.FieldCoachTone)
	base.Points = 370
	base.FoodXP = 45
	base.UnlockedMeals = []string{"kitkat"}

	for _, in := range []string{"لطيف (شوي شوي)", "متوازن", "صارم (جلد 🔥)", "جلد", "بحدود"} {
		r := e.Respond(in, base)
		if r.Patch == nil || r.Patch.CoachTone == nil {
			t.Fatalf("%q: expected tone patch, got %+v", in, r)
		}
		got := base.Apply(r.Patch)
		if got.Points != 50 || got.Level != 1 || got.FoodXP != 0 || got.UnlockedMeals == nil || len(got.UnlockedMeals) != 0 {
			t.Errorf("%q: completion counters = points %d level %d xp %d meals %v", in, got.Points, got.Level, got.FoodXP, got.UnlockedMeals)
		}
		if r.Action != models.ActionSaveProfile {
			t.Errorf("%q: action = %q, want save_profile", in, r.Action)
		}
	}
}

func TestOnboarding_TakesPriorityOverToggles(t *testing.T) {
	e := NewEngine(WithSeed(1))
	p := models.UserProfile{Gender: models.GenderMale}
	r := e.Respond("فعل الذكاء", p)
	if r.Text != steps[1].question || r.Patch != nil {
		t.Errorf("expected age question, got %+v", r)
	}
}

func TestRespond_Intents(t *testing.T) {
	e := NewEngine(WithSeed(9))
	p := onboardedProfile()
	tests := []struct {
		input      string
		wantAction models.Action
		wantText   string
	}{
		{"ذكاء", models.ActionSaveProfile, "فعلنا وضع الذكاء"},
		{"غير الأسلوب", models.ActionChangeTone, "تبي تغير الأسلوب"},
		{"صارم", models.ActionSaveProfile, "أبشر بالشدة"},
		{"تضخيم (بناء عضل)", models.ActionSaveProfile, "غيرنا الهدف"},
		{"تغيير الهدف", "", "تبي تغير الهدف"},
		{"شغل الصوت", models.ActionSaveProfile, "شغلت لك الصوت"},
		{"وضع رمضان", models.ActionSaveProfile, "فعلنا وضع رمضان"},
		{"صوّر وجبتك", models.ActionShowMealScanner, "تحليل الوجبة"},
		{"تحليل وجبة", models.ActionShowMealScanner, "تحليل الوجبة"},
		{"ابي اصير vip", models.ActionShowProModal, "VIP"},
		{"مكافآتي الغذائية", models.ActionShowFoodRewards, "مكافآتك الغذائية"},
		{"تحدي الأسبوع", models.ActionShowGamification, "إحصائياتك"},
		{"توقعات الأسبوع", models.ActionShowInsights, "توقعات الأسبوع"},
		{"أنشئ جدول غذائي", models.ActionShowWeeklyPlan, "جدولك الأسبوعي"},
		{"قائمة المقاضي", models.ActionShowGrocery, "قائمة المقاضي"},
		{"ماء وخطوات", models.ActionShowTracker, "متابع النشاط"},
		{"تقييم اليوم", models.ActionCheckIn, "تقييم اليوم"},
		{"ركبتي تعورني", "", "للركبة"},
		{"عندي إصابة", "", "وين الألم"},
		{"عندي اصابه", "", "وين الألم"},
		{"عندي الم", "", "وين الألم"},
		{"وش اسوي عشان المشي", "", "عجز 500 سعرة"},
		{"وش آكل الحين؟", "", "وجبة سريعة"},
		{"كم سعراتي اليومية؟", "", "2594"},
		{"تحفيز", "", ""},
		{"وضعي", "", "24.2"},
		{"نصيحة سريعة", "", "عجز 500 سعرة"},
		{"كم سعرات الكبسة؟", "", "كبسة دجاج"},
		{"كم سعرات الجريش", "", "300 سعرة"},
		{"كم سعرات", "", "وش الأكل اللي تبي تعرف سعراته"},
		{"كم تمرين اسوي", "", "وش الأكل اللي تبي تعرف سعراته"},
		{"تمام فهمت", "", "وش تبي نسوي اليوم"},
		{"asdf", "", "ما فهمت عليك"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r := e.Respond(tt.input, p)
			if r.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", r.Action, tt.wantAction)
			}
			if !strings.Contains(r.Text, tt.wantText) {
				t.Errorf("text %q does not contain %q", r.Text, tt.wantText)
			}
		})
	}
}

func TestRespond_PriorityOrdering(t *testing.T) {
	e := NewEngine(WithSeed(2))
	p := onboardedProfile()

	if r := e.Respond("ابي اغير اسلوب الجدول", p); r.Action != models.ActionChangeTone {
		t.Errorf("tone change should beat the weekly plan panel, got %q", r.Action)
	}
	if r := e.Respond("كم سعرات عشان انزل الكرش", p); !strings.Contains(r.Text, "الكرش") || r.Options == nil {
		t.Errorf("belly-fat advice should beat calorie lookup, got %q", r.Text)
	}
	if r := e.Respond("وضع رمضان جدول", p); r.Action != models.ActionSaveProfile || r.Patch.IsRamadan == nil {
		t.Errorf("ramadan toggle should beat weekly plan, got %+v", r)
	}
}

func TestRespond_BellyFatBranches(t *testing.T) {
	e := NewEngine(WithSeed(4))
	p := onboardedProfile()
	r := e.Respond("عندي كرش", p)
	for _, want := range []string{"2094 سعرة", "140g بروتين", "8000 خطوة"} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("belly plan missing %q: %q", want, r.Text)
		}
	}
	if !cmp.Equal(r.Options, []string{"يلا أنشئ لي جدول", "وش آكل الحين؟", "تمام فهمت"}) {
		t.Errorf("unexpected options %v", r.Options)
	}

	// Handlers are pure functions of the turn, so the unknown-measurements branch is
	// exercised directly.
	r = bellyFat(Turn{Input: "كرش", Profile: models.UserProfile{}, rand: e.rand})
	if !strings.Contains(r.Text, "كم وزنك وطولك") {
		t.Errorf("expected request for weight and height, got %q", r.Text)
	}
}

func TestGeneralAdvice_WithoutGoal(t *testing.T) {
	r := generalAdvice(Turn{Input: "ساعدني", Profile: models.UserProfile{}})
	if !cmp.Equal(r.Options, GoalOptions) {
		t.Errorf("expected goal options, got %v", r.Options)
	}
}

func TestRespond_RamadanPlan(t *testing.T) {
	e := NewEngine(WithSeed(4))
	p := onboardedProfile()
	p.IsRamadan = true
	if r := e.Respond("جدول", p); !strings.Contains(r.Text, "الرمضاني") {
		t.Errorf("expected ramadan plan text, got %q", r.Text)
	}
}

func TestRespond_DeterministicWithSeed(t *testing.T) {
	p := onboardedProfile()
	inputs := []string{"جيعان", "تحفيز", "غير الأسلوب", "جيعان", "تحفيز", "تقييم اليوم"}
	a, b := NewEngine(WithSeed(1234)), NewEngine(WithSeed(1234))
	for _, in := range inputs {
		ra, rb := a.Respond(in, p), b.Respond(in, p)
		if diff := cmp.Diff(ra, rb); diff != "" {
			t.Fatalf("replies diverged for %q (-a +b):\n%s", in, diff)
		}
	}
}

func TestRespond_DoesNotMutateProfile(t *testing.T) {
	e := NewEngine(WithSeed(1))
	p := onboardedProfile()
	p.UnlockedMeals = []string{"kitkat"}
	before := p.Clone()
	for _, in := range []string{"ذكاء", "صارم", "وضع رمضان", "تضخيم", "جدول"} {
		e.Respond(in, p)
	}
	if diff := cmp.Diff(before, p); diff != "" {
		t.Errorf("Respond mutated the profile (-before +after):\n%s", diff)
	}
}

func TestPreempt(t *testing.T) {
	e := NewEngine(WithSeed(1))
	if _, ok := e.Preempt("جدول", onboardedProfile()); ok {
		t.Error("panel intents must not be preempted")
	}
	if r, ok := e.Preempt("وضع رمضان", onboardedProfile()); !ok || r.Patch == nil || r.Patch.IsRamadan == nil {
		t.Errorf("toggle should be preempted, got %+v, %v", r, ok)
	}
	if r, ok := e.Preempt("جدول", models.UserProfile{}); !ok || r.Text != steps[0].question {
		t.Errorf("pending onboarding should be preempted, got %+v, %v", r, ok)
	}
}

func TestWithRules_FallsBackWhenNothingMatches(t *testing.T) {
	e := NewEngine(WithSeed(1), WithRules([]Rule{
		{Name: "never", Group: GroupAdvice, Match: func(Turn) bool { return false }, Handle: fallback},
	}))
	if r := e.Respond("asdf", onboardedProfile()); !strings.Contains(r.Text, "ما فهمت عليك") {
		t.Errorf("expected fallback reply, got %q", r.Text)
	}
}

func TestIntro(t *testing.T) {
	r := NewEngine().Intro()
	if r.Text != IntroMessage || len(r.Options) != 1 {
		t.Errorf("unexpected intro %+v", r)
	}
}
