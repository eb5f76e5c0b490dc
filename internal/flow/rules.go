package flow

import (
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/tone"
)

// Turn is the read-only input every rule sees.
type Turn struct {
	Input   string // normalized text
	Profile models.UserProfile
	rand    tone.Rand
}

func (t Turn) name() string { return t.Profile.DisplayName() }

func (t Turn) prefix() string {
	return tone.Prefix(t.rand, t.Profile.EffectiveTone(), t.name())
}

// Group orders rules into the priority bands of the resolver.
type Group int

const (
	GroupOnboarding Group = iota
	GroupToggle
	GroupPanel
	GroupAdvice
	GroupFallback
)

// Rule pairs a predicate with the handler that owns the turn when it matches.
type Rule struct {
	Name   string
	Group  Group
	Match  func(t Turn) bool
	Handle func(t Turn) models.Reply
}

func keywords(kws ...string) func(Turn) bool {
	return func(t Turn) bool { return ContainsAny(t.Input, kws...) }
}

// Keyword sets shared between predicates and handlers.
var (
	bellyKeywords = []string{"كرش", "بطن", "تنحيف", "انحف", "أنحف", "خسارة وزن", "وزن زايد", "سمنة", "دهون"}
)

// isPain matches injury words. "ألم" normalizes to "الم", a prefix of "المشي", so it only
// counts as a whole word.
func isPain(t Turn) bool {
	return ContainsAny(t.Input, "إصابة", "يعورني", "عورني", "تعورني") || HasWord(t.Input, "ألم", "الألم")
}

// DefaultRules returns the resolver's ordered rule list. Earlier rules win; the last rule
// always matches.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "onboarding", Group: GroupOnboarding, Match: func(t Turn) bool { return !t.Profile.IsOnboarded() }, Handle: onboard},

		{Name: "smart_mode", Group: GroupToggle, Match: keywords("ذكاء", "smart"), Handle: toggleSmartMode},
		{Name: "tone_menu", Group: GroupToggle, Match: keywords("نبرة", "أسلوب", "اسلوب"), Handle: toneMenu},
		{Name: "tone_select", Group: GroupToggle, Match: func(t Turn) bool { _, ok := tone.FromLiteral(bare(t.Input)); return ok }, Handle: selectTone},
		{Name: "goal_select", Group: GroupToggle, Match: func(t Turn) bool { _, ok := goalFromOption(t.Input); return ok }, Handle: selectGoal},
		{Name: "goal_menu", Group: GroupToggle, Match: keywords("تغيير الهدف", "غير الهدف", "هدفي"), Handle: goalMenu},
		{Name: "voice", Group: GroupToggle, Match: keywords("صوت", "تكلم"), Handle: toggleVoice},
		{Name: "ramadan", Group: GroupToggle, Match: keywords("وضع رمضان", "صيام"), Handle: toggleRamadan},

		{Name: "meal_scanner", Group: GroupPanel, Match: keywords("صور", "صوّر", "كاميرا", "تحليل وجبة", "سجل وجبة"), Handle: mealScanner},
		{Name: "vip", Group: GroupPanel, Match: func(t Turn) bool { return ContainsAny(t.Input, "vip", "ترقية") || HasWord(t.Input, "pro") }, Handle: vip},
		{Name: "food_rewards", Group: GroupPanel, Match: keywords("مكافآتي", "مكافآت", "وجبات", "جوائز"), Handle: foodRewards},
		{Name: "gamification", Group: GroupPanel, Match: keywords("تحدي", "نقاط", "مستوى", "ملفي"), Handle: gamification},
		{Name: "insights", Group: GroupPanel, Match: keywords("توقعات", "تحليل"), Handle: insights},
		{Name: "weekly_plan", Group: GroupPanel, Match: keywords("جدول", "أسبوعي", "خطة"), Handle: weeklyPlan},
		{Name: "grocery", Group: GroupPanel, Match: keywords("مشتريات", "مقاضي"), Handle: grocery},
		{Name: "tracker", Group: GroupPanel, Match: keywords("ماء", "موية", "خطوات", "تتبع", "تابع"), Handle: tracker},
		{Name: "check_in", Group: GroupPanel, Match: keywords("تقييم اليوم", "تقييم يومي", "كيف يومي"), Handle: checkIn},

		{Name: "injury_location", Group: GroupAdvice, Match: isInjuryLocation, Handle: injuryLocation},
		{Name: "injury", Group: GroupAdvice, Match: isPain, Handle: injury},
		{Name: "belly_fat", Group: GroupAdvice, Match: keywords(bellyKeywords...), Handle: bellyFat},
		{Name: "hunger", Group: GroupAdvice, Match: keywords("جيعان", "جوعان", "وش آكل", "وش اكل", "اقترح وجبة"), Handle: hunger},
		{Name: "daily_calories", Group: GroupAdvice, Match: keywords("سعراتي", "احتياجي"), Handle: dailyCalories},
		{Name: "motivation", Group: GroupAdvice, Match: keywords("تحفيز", "حفزني"), Handle: motivation},
		{Name: "status_report", Group: GroupAdvice, Match: keywords("وضعي", "تقريري", "تقرير"), Handle: statusReport},
		{Name: "general_advice", Group: GroupAdvice, Match: keywords("وش اسوي", "وش أسوي", "ساعدني", "نصيحة"), Handle: generalAdvice},
		{Name: "calorie_lookup", Group: GroupAdvice, Match: keywords("سعرات", "كم"), Handle: calorieLookup},

		{Name: "fallback", Group: GroupFallback, Match: func(Turn) bool { return true }, Handle: fallback},
	}
}
