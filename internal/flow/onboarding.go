package flow

import (
	"fmt"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
	"github.com/BTreeMap/SehaCoach/internal/tone"
)

// IntroMessage greets a new or reset user.
const IntroMessage = "ارحب يا بطل! 👋 معك الكوتش.\n\nأنا هنا عشان أضبط وضعك الصحي والأكل، لا مجاملات ولا لف ودوران.\n\nتبي تنحف؟ تبي تعضل؟ ولا بس تبي صحة؟ علمني علومك خلنا نبدأ."

// IntroOptions are offered with the intro message.
var IntroOptions = []string{"توكلنا على الله"}

// StartKeywords are confirmations that carry no answer of their own.
var StartKeywords = []string{"توكلنا على الله", "يلا", "ابدأ", "جاهز", "تمام", "ابشر", "أبشر", "هلا", "مرحبا"}

// Quick replies used by more than one state or handler.
var (
	GoalOptions     = []string{"تنشيف (خسارة وزن)", "تضخيم (بناء عضل)", "محافظة (تعديل أكل)"}
	ActivityOptions = []string{"خامل (ما أتحرك)", "خفيف (مشي بسيط)", "متوسط (تمرين 3-4)", "عالي (تمرين يومي)", "عالي جداً (رياضي)"}
	ToneOptions     = []string{"لطيف (شوي شوي)", "متوازن (نصيحة بحدود)", "صارم (جلد 🔥)"}
	StarterOptions  = []string{"أنشئ جدول غذائي", "صوّر وجبتك", "ماء وخطوات", "مكافآتي الغذائية"}
)

// synonym maps a list of keywords onto one enum value. Lists are checked in order.
type synonym[T any] struct {
	value    T
	keywords []string
}

func matchSynonym[T any](input string, table []synonym[T]) (T, bool) {
	for _, s := range table {
		if ContainsAny(input, s.keywords...) {
			return s.value, true
		}
	}
	var zero T
	return zero, false
}

var genderSynonyms = []synonym[models.Gender]{
	{models.GenderMale, []string{"ذكر", "رجال", "رجل", "ولد"}},
	{models.GenderFemale, []string{"أنثى", "انثى", "بنت", "امرأة"}},
}

var goalSynonyms = []synonym[models.Goal]{
	{models.GoalWeightLoss, []string{"تنشيف", "تنحيف", "خسارة", "انحف", "أنحف"}},
	{models.GoalMuscleGain, []string{"تضخيم", "عضل", "بناء"}},
	{models.GoalMaintenance, []string{"محافظة", "تعديل", "توازن", "احافظ", "أحافظ"}},
}

// very_active is listed before active because "عالي" is a prefix of its phrases.
var activitySynonyms = []synonym[models.ActivityLevel]{
	{models.ActivityVeryActive, []string{"عالي جدا", "عالي جداً", "رياضي"}},
	{models.ActivitySedentary, []string{"خامل", "ما أتحرك", "ما اتحرك"}},
	{models.ActivityLight, []string{"خفيف", "مشي"}},
	{models.ActivityModerate, []string{"متوسط"}},
	{models.ActivityActive, []string{"عالي", "نشيط"}},
}

var toneSynonyms = []synonym[models.CoachTone]{
	{models.ToneKind, []string{"لطيف", "شوي"}},
	{models.ToneBalanced, []string{"متوازن", "بحدود"}},
	{models.ToneStrict, []string{"صارم", "جلد"}},
}

// step is one state of the onboarding machine.
type step struct {
	field    models.ProfileField
	question string
	options  []string
	parse    func(input string) (*models.ProfilePatch, bool)
}

// steps follows models.OnboardingFields order.
var steps = []step{
	{
		field:    models.FieldGender,
		question: "بالبداية، عشان الحسابات تكون دقيقة.. أنت رجال ولا بنت؟",
		options:  []string{"رجال", "بنت"},
		parse: func(in string) (*models.ProfilePatch, bool) {
			g, ok := matchSynonym(in, genderSynonyms)
			return &models.ProfilePatch{Gender: &g}, ok
		},
	},
	{
		field:    models.FieldAge,
		question: "عطني عمرك بالسنوات (رقم بس):",
		parse: func(in string) (*models.ProfilePatch, bool) {
			n, ok := parseInRange(in, models.MinAge, models.MaxAge)
			return &models.ProfilePatch{Age: &n}, ok
		},
	},
	{
		field:    models.FieldHeight,
		question: "كم الطول؟ (بالـ سم):",
		parse: func(in string) (*models.ProfilePatch, bool) {
			n, ok := parseInRange(in, models.MinHeight, models.MaxHeight)
			return &models.ProfilePatch{Height: models.Ptr(float64(n))}, ok
		},
	},
	{
		field:    models.FieldWeight,
		question: "وكم الوزن الحالي؟ (بالـ كجم):",
		parse: func(in string) (*models.ProfilePatch, bool) {
			n, ok := parseInRange(in, models.MinWeight, models.MaxWeight)
			return &models.ProfilePatch{Weight: models.Ptr(float64(n))}, ok
		},
	},
	{
		field:    models.FieldGoal,
		question: "وش الهدف اللي براسك؟",
		options:  GoalOptions,
		parse: func(in string) (*models.ProfilePatch, bool) {
			g, ok := matchSynonym(in, goalSynonyms)
			return &models.ProfilePatch{Goal: &g}, ok
		},
	},
	{
		field:    models.FieldActivityLevel,
		question: "كيف حركتك اليومية؟ كن صريح!",
		options:  ActivityOptions,
		parse: func(in string) (*models.ProfilePatch, bool) {
			a, ok := matchSynonym(in, activitySynonyms)
			return &models.ProfilePatch{ActivityLevel: &a}, ok
		},
	},
	{
		field:    models.FieldCoachTone,
		question: "كيف تبي أسلوبي معك؟",
		options:  ToneOptions,
		parse: func(in string) (*models.ProfilePatch, bool) {
			t, ok := matchSynonym(in, toneSynonyms)
			return &models.ProfilePatch{CoachTone: &t}, ok
		},
	},
}

// parseInRange returns the first integer in input if it lies strictly between lo and hi.
func parseInRange(input string, lo, hi int) (int, bool) {
	n, ok := firstInt(input)
	if !ok || n <= lo || n >= hi {
		return 0, false
	}
	return n, true
}

func stepIndex(f models.ProfileField) int {
	for i, s := range steps {
		if s.field == f {
			return i
		}
	}
	return -1
}

// prompt renders the question for a step with a fresh copy of its options.
func (s step) prompt() models.Reply {
	return models.Reply{Text: s.question, Options: append([]string(nil), s.options...)}
}

// onboard handles a turn while any required field is unset. The current state's question
// is repeated verbatim when the input cannot be parsed; start keywords fall through to the
// same re-ask and are never read as answers.
func onboard(t Turn) models.Reply {
	field, pending := t.Profile.NextOnboardingField()
	if !pending {
		return fallback(t)
	}
	i := stepIndex(field)
	cur := steps[i]

	patch, ok := cur.parse(t.Input)
	if !ok {
		return cur.prompt()
	}
	if i+1 < len(steps) {
		reply := steps[i+1].prompt()
		reply.Patch = patch
		return reply
	}
	return completeOnboarding(t, patch)
}

// completeOnboarding builds the reply for the last required field. The patch always
// initializes the progress counters.
func completeOnboarding(t Turn, patch *models.ProfilePatch) models.Reply {
	patch.Points = models.Ptr(50)
	patch.Level = models.Ptr(1)
	patch.FoodXP = models.Ptr(0)
	patch.UnlockedMeals = &[]string{}

	done := t.Profile.Apply(patch)
	name := done.DisplayName()
	prefix := tone.Prefix(t.rand, done.EffectiveTone(), name)
	return models.Reply{
		Text: fmt.Sprintf("%s يا بطل! 👏\n\nحسبت لك احتياجك اليومي وهو تقريباً **%d سعرة**.\n\nجاهزين يا %s؟ تقدر تطلب جدولك، أو تبدأ تصور وجباتك.",
			prefix, nutrition.CalculateCalories(done), name),
		Options: append([]string(nil), StarterOptions...),
		Action:  models.ActionSaveProfile,
		Patch:   patch,
	}
}
