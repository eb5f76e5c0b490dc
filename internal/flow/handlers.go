package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
	"github.com/BTreeMap/SehaCoach/internal/tone"
)

// ---- Mode toggles ----

func toggleSmartMode(t Turn) models.Reply {
	on := !t.Profile.IsSmartMode
	text := "🧠 **رجعنا للوضع المحلي.**\n\nسريع وبسيط."
	if on {
		text = "🤖 **فعلنا وضع الذكاء!**\n\nالحين مخي صار أكبر وأفهم عليك أكثر."
	}
	return models.Reply{Text: text, Action: models.ActionSaveProfile, Patch: &models.ProfilePatch{IsSmartMode: &on}}
}

func toneMenu(t Turn) models.Reply {
	return models.Reply{
		Text:    t.prefix() + "، تبي تغير الأسلوب؟ أبشر، اختر اللي يناسبك:",
		Options: []string{"لطيف", "متوازن", "صارم"},
		Action:  models.ActionChangeTone,
	}
}

func selectTone(t Turn) models.Reply {
	ct, _ := tone.FromLiteral(bare(t.Input))
	var text string
	switch ct {
	case models.ToneKind:
		text = fmt.Sprintf("خلاص يا %s، بكون معك هادي ولطيف. 🌸", t.name())
	case models.ToneStrict:
		text = fmt.Sprintf("أبشر بالشدة يا %s! ما فيه دلع بعد اليوم. 🔥", t.name())
	default:
		text = fmt.Sprintf("تمام يا %s، خير الأمور أوسطها. 👍", t.name())
	}
	return models.Reply{Text: text, Action: models.ActionSaveProfile, Patch: &models.ProfilePatch{CoachTone: &ct}}
}

// goalFromOption accepts a goal quick reply or its bare leading word.
func goalFromOption(input string) (models.Goal, bool) {
	in := bare(input)
	for i, opt := range GoalOptions {
		head, _, _ := strings.Cut(opt, " ")
		if in == Normalize(opt) || in == Normalize(head) {
			return []models.Goal{models.GoalWeightLoss, models.GoalMuscleGain, models.GoalMaintenance}[i], true
		}
	}
	return "", false
}

func selectGoal(t Turn) models.Reply {
	g, _ := goalFromOption(t.Input)
	updated := t.Profile
	updated.Goal = g
	return models.Reply{
		Text: fmt.Sprintf("%s، غيرنا الهدف. احتياجك الجديد تقريباً **%d سعرة** يومياً.",
			t.prefix(), nutrition.TargetCalories(updated)),
		Options: []string{"أنشئ جدول غذائي", "نصيحة سريعة"},
		Action:  models.ActionSaveProfile,
		Patch:   &models.ProfilePatch{Goal: &g},
	}
}

func goalMenu(t Turn) models.Reply {
	return models.Reply{
		Text:    fmt.Sprintf("تبي تغير الهدف يا %s؟ اختر:", t.name()),
		Options: append([]string(nil), GoalOptions...),
	}
}

func toggleVoice(t Turn) models.Reply {
	on := !t.Profile.IsVoiceEnabled
	text := "🔇 **كتمت الصوت.**\n\nنرجع للكتابة بس."
	if on {
		text = "🎙️ **شغلت لك الصوت!**\n\nالحين أرد عليك صوت وكتابة."
	}
	return models.Reply{Text: text, Action: models.ActionSaveProfile, Patch: &models.ProfilePatch{IsVoiceEnabled: &on}}
}

func toggleRamadan(t Turn) models.Reply {
	on := !t.Profile.IsRamadan
	text := "☀️ **رجعنا للوضع العادي.**\n\nفطور، غداء، عشاء. بالتوفيق!"
	if on {
		text = "🌙 **فعلنا وضع رمضان!**\n\nتقبل الله. الجداول صارت (فطور، غبقة، سحور). انتبه للموية!"
	}
	return models.Reply{Text: text, Action: models.ActionSaveProfile, Patch: &models.ProfilePatch{IsRamadan: &on}}
}

// ---- Feature panels ----

func mealScanner(t Turn) models.Reply {
	return models.Reply{
		Text:   fmt.Sprintf("📸 **تحليل الوجبة**\n\nصور أكلك يا %s خلني أشوف وش قاعد تاكل وأحسب لك السعرات.", t.name()),
		Action: models.ActionShowMealScanner,
	}
}

func vip(t Turn) models.Reply {
	text := fmt.Sprintf("🌟 **تبي تصير VIP يا %s؟**\n\nخطط دقيقة وتحليل إصابات عميق وتصدير ملفات. تستاهل الترقية.", t.name())
	if t.Profile.IsPro {
		text = fmt.Sprintf("💎 **أنت VIP يا %s!**\n\nماخذ كل المزايا، استمتع.", t.name())
	}
	return models.Reply{Text: text, Action: models.ActionShowProModal}
}

func foodRewards(t Turn) models.Reply {
	text := "🍔 **مكافآتك الغذائية**\n\nكل ما التزمت، فتحت لك وجبة صحية جديدة تبرد الخاطر!"
	if next, remaining, ok := nutrition.RewardProgress(t.Profile.FoodXP); ok {
		text += fmt.Sprintf("\n\nباقي لك %d نقطة وتفتح %s", remaining, next.LevelName)
	}
	return models.Reply{Text: text, Action: models.ActionShowFoodRewards}
}

func gamification(t Turn) models.Reply {
	lvl := nutrition.Level(t.Profile.Points)
	return models.Reply{
		Text: fmt.Sprintf("🏆 **إحصائياتك يا %s**\n\nشوف مستواك يا وحش!\n\n• النقاط: %d\n• المستوى: %d (%s)",
			t.name(), t.Profile.Points, lvl, nutrition.LevelTitle(lvl)),
		Action: models.ActionShowGamification,
	}
}

func insights(t Turn) models.Reply {
	return models.Reply{
		Text:   fmt.Sprintf("📊 **توقعات الأسبوع**\n\nخلنا نشوف وش وضعك هالأسبوع يا %s.", t.name()),
		Action: models.ActionShowInsights,
	}
}

func weeklyPlan(t Turn) models.Reply {
	text := "📅 **جدولك الأسبوعي جاهز!**\n\nاضغط تحت وشيك عليه."
	if t.Profile.IsRamadan {
		text = "🌙 **جدولك الرمضاني جاهز!**\n\nاضغط تحت وشيك عليه."
	}
	return models.Reply{Text: text, Action: models.ActionShowWeeklyPlan}
}

func grocery(Turn) models.Reply {
	return models.Reply{Text: "🛒 **قائمة المقاضي**\n\nهذي الأغراض اللي تحتاجها عشان تلتزم.", Action: models.ActionShowGrocery}
}

func tracker(t Turn) models.Reply {
	return models.Reply{
		Text:   fmt.Sprintf("💧 **متابع النشاط**\n\nبشرني يا %s، كيف همتك اليوم؟", t.name()),
		Action: models.ActionShowTracker,
	}
}

func checkIn(t Turn) models.Reply {
	return models.Reply{
		Text:   fmt.Sprintf("📝 **تقييم اليوم**\n\n%s، علمني وش أكلت اليوم وكم مشيت، وأعطيك تقييمك.", t.prefix()),
		Action: models.ActionCheckIn,
	}
}

// ---- Domain advice ----

type injuryAnswer struct {
	words []string
	text  string
}

var injuryAnswers = []injuryAnswer{
	{[]string{"ركبة", "ركبتي", "الركبة"}, "🩺 **للركبة:**\n• كمادات ثلج.\n• قوّ عضلة الفخذ.\n• لا تسوي سكوات عميق هالفترة."},
	{[]string{"ظهر", "ظهري", "الظهر"}, "🩺 **للظهر:**\n• لا تجلس واجد.\n• سوي إطالات.\n• نم على مرتبة زينة."},
	{[]string{"كتف", "كتفي", "الكتف"}, "🩺 **للكتف:**\n• ريّح الكتف من الأوزان فوق الراس.\n• ثلج أول 48 ساعة.\n• تمارين دوران خفيفة بالمطاط."},
	{[]string{"كاحل", "كاحلي", "الكاحل"}, "🩺 **للكاحل:**\n• ارفع رجلك وحط ثلج.\n• رباط ضاغط خفيف.\n• لا تركض لين يروح الورم."},
}

const doctorNote = "\n\nإذا استمر الألم أكثر من أسبوع، راجع دكتور."

func isInjuryLocation(t Turn) bool {
	for _, a := range injuryAnswers {
		if HasWord(t.Input, a.words...) {
			return true
		}
	}
	return false
}

func injuryLocation(t Turn) models.Reply {
	for _, a := range injuryAnswers {
		if HasWord(t.Input, a.words...) {
			return models.Reply{Text: a.text + doctorNote}
		}
	}
	return injury(t)
}

func injury(Turn) models.Reply {
	return models.Reply{Text: "سلامات ما تشوف شر! 🤕\nوين الألم بالضبط؟", Options: []string{"ركبة", "ظهر", "كتف", "كاحل"}}
}

func bellyFat(t Turn) models.Reply {
	p := t.Profile
	if p.Weight == 0 || p.Height == 0 {
		return models.Reply{
			Text: fmt.Sprintf("فهمتك يا %s! الكرش يطلع من السكر والنشويات الزايدة. خلنا نضبطها:\n\n• رز ربع كاس بس (أو بدله قرنبيط)\n• بروتين كف يدك كل وجبة (دجاج، سمك، لحم)\n• قص المشروبات السكرية 100%%\n• 8000 خطوة يومياً\n\nكم وزنك وطولك عشان أحسب لك السعرات بالضبط؟", t.name()),
		}
	}
	return models.Reply{
		Text: fmt.Sprintf("خلنا نتخلص من الكرش يا %s! 💪\n\n**خطتك:**\n• %d سعرة يومياً (عجز %d)\n• %dg بروتين\n• رز/خبز نص الكمية العادية\n• مشي %d خطوة\n• قص السكريات والمشروبات الغازية\n\n**مثال وجبة:**\nصدر دجاج مشوي (كف اليد) + 3 ملاعق رز + سلطة كبيرة\n\nتبي جدول كامل؟",
			t.name(), nutrition.CalculateCalories(p)-nutrition.WeightLossDeficit, nutrition.WeightLossDeficit,
			nutrition.ProteinTarget(p.Weight), nutrition.StepsTarget),
		Options: []string{"يلا أنشئ لي جدول", "وش آكل الحين؟", "تمام فهمت"},
	}
}

// mealExamples is the hunger suggestion pool.
var mealExamples = []string{
	"صدر دجاج مشوي (كف يدك) + 3 ملاعق رز + سلطة كبيرة (حوالي 450 سعرة)",
	"3 بيضات مسلوقة + توست بر + خيار وطماطم (300 سعرة)",
	"تونا بالماء + سلطة مشكلة + ملعقة زيت زيتون (280 سعرة)",
	"قطعة سمك مشوي + بطاطس مسلوقة نص كاس + خضار سوتيه (380 سعرة)",
}

func hunger(t Turn) models.Reply {
	return models.Reply{
		Text:    fmt.Sprintf("يا %s! تفضل وجبة سريعة وصحية:\n\n**%s**\n\nتبي أقترح لك شي ثاني؟", t.name(), tone.Pick(t.rand, mealExamples)),
		Options: []string{"اقترح وجبة ثانية", "كم سعراتي اليومية؟", "تمام شكراً"},
	}
}

func dailyCalories(t Turn) models.Reply {
	p := t.Profile
	return models.Reply{
		Text: fmt.Sprintf("%s، احتياجك اليومي للمحافظة تقريباً **%d سعرة**، ولهدفك الحالي **%d سعرة**.\n\n• البروتين: %dg يومياً",
			t.prefix(), nutrition.CalculateCalories(p), nutrition.TargetCalories(p), nutrition.ProteinTarget(p.Weight)),
		Options: []string{"أنشئ جدول غذائي", "وش آكل الحين؟"},
	}
}

func motivation(t Turn) models.Reply {
	return models.Reply{Text: tone.Pick(t.rand, tone.Quotes(t.Profile.EffectiveTone(), t.name()))}
}

var goalLabels = map[models.Goal]string{
	models.GoalWeightLoss:  "تنشيف",
	models.GoalMuscleGain:  "تضخيم",
	models.GoalMaintenance: "محافظة",
}

func statusReport(t Turn) models.Reply {
	p := t.Profile
	mode := "عادي ☀️"
	if p.IsRamadan {
		mode = "رمضان 🌙"
	}
	return models.Reply{
		Text: fmt.Sprintf("📋 **تقريرك:**\n\n• مؤشر الكتلة (BMI): **%.1f**\n• احتياجك: **%d** سعرة\n• الهدف: %s\n• الوضع: %s\n\n%s، الوضع يبشر بالخير!",
			nutrition.BMI(p.Weight, p.Height), nutrition.CalculateCalories(p), goalLabels[p.Goal], mode, t.prefix()),
	}
}

func generalAdvice(t Turn) models.Reply {
	p := t.Profile
	if p.Goal == "" {
		return models.Reply{
			Text:    fmt.Sprintf("علمني يا %s، وش هدفك بالضبط؟\n\n• تبي تنحف (خسارة وزن)\n• تبي تعضّل (بناء عضل)\n• ولا بس تحافظ على وضعك؟", t.name()),
			Options: append([]string(nil), GoalOptions...),
		}
	}
	food := fmt.Sprintf("حافظ على %d سعرة", nutrition.CalculateCalories(p))
	switch p.Goal {
	case models.GoalWeightLoss:
		food = fmt.Sprintf("عجز %d سعرة", nutrition.WeightLossDeficit)
	case models.GoalMuscleGain:
		food = fmt.Sprintf("زيادة %d سعرة", nutrition.MuscleGainSurplus)
	}
	protein := 150
	if p.Weight > 0 {
		protein = nutrition.ProteinTarget(p.Weight)
	}
	return models.Reply{
		Text: fmt.Sprintf("خلني أوجهك يا %s:\n\n• **الأكل:** %s\n• **البروتين:** %dg يومياً\n• **الخطوات:** %d خطوة على الأقل\n• **الماء:** 3 لتر (%d كاس)\n\nتبي جدول مفصل؟",
			t.name(), food, protein, nutrition.StepsTarget, nutrition.WaterTargetCups),
		Options: []string{"يلا أنشئ لي جدول", "كم سعرات الكبسة؟", "تمام فهمت"},
	}
}

// foodFacts are hand-written answers for the most asked dishes, checked before the table.
var foodFacts = []struct {
	words []string
	text  string
}{
	{[]string{"كبسة", "الكبسة", "كبسه"}, "**كبسة دجاج:** حوالي 550-650 سعرة للصحن الوسط (حسب الدهن والرز). نصيحة: شيل جلد الدجاج وقلل الرز!"},
	{[]string{"شاورما", "الشاورما"}, "**شاورما دجاج:** 480-550 سعرة. المايونيز هو المصيبة! احذفه أو خففه."},
	{[]string{"برقر", "البرقر"}, "**برقر لحم:** 600-750 سعرة (مع بطاطس). بدون بطاطس وجبن: حوالي 450 سعرة."},
	{[]string{"تمر", "التمر", "تمرة", "تمرات"}, "**التمر:** 23 سعرة للحبة. 3-5 تمرات يكفي، لا تخلص السكرية!"},
}

func calorieLookup(t Turn) models.Reply {
	for _, f := range foodFacts {
		if HasWord(t.Input, f.words...) {
			return models.Reply{Text: f.text}
		}
	}
	for _, f := range nutrition.SaudiFoods {
		if HasWord(t.Input, f.Keyword, "ال"+f.Keyword) {
			return models.Reply{Text: fmt.Sprintf("**%s:** حوالي %d سعرة لل%s.", f.Name, f.Calories, f.Unit)}
		}
	}
	return models.Reply{
		Text:    fmt.Sprintf("يا %s، سم وش الأكل اللي تبي تعرف سعراته؟\n\nأو صوّره وأنا أحسب لك!", t.name()),
		Options: []string{"كم سعرات الكبسة؟", "كم سعرات الشاورما؟", "صوّر وجبتك"},
	}
}

// ---- Fallback ----

func fallback(t Turn) models.Reply {
	if ContainsAny(t.Input, StartKeywords...) {
		return models.Reply{
			Text:    fmt.Sprintf("حياك الله يا %s! 👏\n\nوش تبي نسوي اليوم؟", t.name()),
			Options: []string{"أنشئ جدول غذائي", "صوّر وجبتك", "تحدي الأسبوع", "نصيحة سريعة"},
		}
	}
	return models.Reply{
		Text:    fmt.Sprintf("معليش يا %s، ما فهمت عليك زين 😅.\n\nعلمني وش تبي بالضبط؟", t.name()),
		Options: []string{"جدول غذائي", "تحليل وجبة", "تغيير الهدف", "وضع رمضان"},
	}
}
