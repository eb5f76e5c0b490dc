package nutrition

import (
	"slices"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// Daily activity targets shown by the tracker.
const (
	WaterTargetCups = 12
	StepsTarget     = 8000
	MaxWaterCups    = 20
	MaxSteps        = 20000
	StepsIncrement  = 500
)

// FoodReward is a healthier take on a craving, unlocked by food XP.
type FoodReward struct {
	ID                 string `json:"id"`
	LevelName          string `json:"levelName"`
	XPThreshold        int    `json:"xpThreshold"`
	HealthyAlternative string `json:"healthyAlternative"`
	Description        string `json:"description"`
	Calories           int    `json:"calories"`
	Emoji              string `json:"emoji"`
}

// FoodRewards is ordered by ascending XP threshold.
var FoodRewards = []FoodReward{
	{ID: "kitkat", LevelName: "راعي الكتكات 🍫", XPThreshold: 100, HealthyAlternative: "ويفر شوكولاتة داكنة",
		Description: "بدل الكتكات المليان سكر، خذ لك ويفر دارك شوكلت. طعم يفك الأزمة وسكر أقل بواجد.", Calories: 120, Emoji: "🍫"},
	{ID: "pizza", LevelName: "راعي البيتزا 🍕", XPThreshold: 300, HealthyAlternative: "بيتزا تورتيلا شغل بيت",
		Description: "تورتيلا بر، صلصة طماط، خضار، وشوي موزاريلا لايت. تشبعك وما تحس بتأنيب الضمير.", Calories: 350, Emoji: "🍕"},
	{ID: "burger", LevelName: "راعي البرقر 🍔", XPThreshold: 600, HealthyAlternative: "برقر دجاج مشوي",
		Description: "صدر دجاج مفروم ومشوي، خبز بر، خس وطماط، وبدل المايونيز حط زبادي وخردل. بروتين عالي!", Calories: 450, Emoji: "🍔"},
	{ID: "shawarma", LevelName: "راعي الشاورما 🌯", XPThreshold: 1000, HealthyAlternative: "شاورما صاج صحية",
		Description: "دجاج متبل بزبادي وبهارات، خبز صاج بر، وثومية خفيفة (زبادي يوناني).", Calories: 380, Emoji: "🌯"},
	{ID: "protein_meal", LevelName: "الوحش 🥩", XPThreshold: 1500, HealthyAlternative: "ستيك تندرلوين",
		Description: "قطعة ستيك نظيفة مشوية مع بطاطس مهروسة (بدون دسم زايد). وجبة ملوك!", Calories: 500, Emoji: "🥩"},
}

// NewlyUnlocked returns the IDs of rewards reachable with foodXP that are not yet unlocked.
func NewlyUnlocked(foodXP int, unlocked []string) []string {
	var ids []string
	for _, r := range FoodRewards {
		if foodXP >= r.XPThreshold && !slices.Contains(unlocked, r.ID) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// RewardProgress reports the XP still needed for the next locked reward.
// ok is false when every reward is reachable.
func RewardProgress(foodXP int) (next FoodReward, remaining int, ok bool) {
	for _, r := range FoodRewards {
		if foodXP < r.XPThreshold {
			return r, r.XPThreshold - foodXP, true
		}
	}
	return FoodReward{}, 0, false
}

// GroceryCategory is one section of the shopping list.
type GroceryCategory struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// GroceryList returns the shopping list for the current mode.
func GroceryList(isRamadan bool) []GroceryCategory {
	list := []GroceryCategory{
		{Name: "بروتينات", Items: []string{"بيض", "صدر دجاج", "لحم مفروم (قليل دسم)", "تونا", "سمك فيليه", "زبادي يوناني", "لبن"}},
		{Name: "نشويات", Items: []string{"توست بر", "رز مزة", "شوفان", "بطاطس", "قرصان بر"}},
		{Name: "خضار وفواكه", Items: []string{"خيار", "طماط", "خس", "ليمون", "بصل", "فواكه", "موز", "تمر"}},
		{Name: "أخرى", Items: []string{"زيت زيتون", "شاهي", "قهوة", "بهارات مشكلة", "ملح"}},
	}
	if isRamadan {
		list = append(list, GroceryCategory{Name: "رمضان", Items: []string{"شوربة شوفان", "لبن للسحور", "موية (كرتون)", "تمر سكري"}})
	}
	return list
}

// PlanMeal is one slot of a meal-plan template.
type PlanMeal struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// MealPlan is a one-day template the weekly plan panel repeats.
type MealPlan struct {
	Title    string     `json:"title"`
	Calories int        `json:"calories"`
	Meals    []PlanMeal `json:"meals"`
}

var standardPlans = map[models.Goal]MealPlan{
	models.GoalWeightLoss: {Title: "جدول التنشيف (حرق دهون)", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"3 بيضات مسلوقة", "توست بر", "خيارة وطماطم", "شاهي بدون سكر"}},
		{Name: "سناك 1", Items: []string{"تفاحة", "زبادي قليل الدسم"}},
		{Name: "الغداء", Items: []string{"صدر دجاج مشوي (كف اليد)", "5 ملاعق رز", "سلطة خضراء (كثر منها)"}},
		{Name: "سناك 2", Items: []string{"3 تمرات", "قهوة عربية"}},
		{Name: "العشاء", Items: []string{"تونا بالماء", "سلطة مشكلة", "ملعقة زيت زيتون"}},
	}},
	models.GoalMuscleGain: {Title: "جدول التضخيم", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"4 بيضات", "شوفان بالحليب وموز", "ملعقة زبدة فول سوداني"}},
		{Name: "سناك 1", Items: []string{"زبادي يوناني", "حفنة مكسرات"}},
		{Name: "الغداء", Items: []string{"لحم أو دجاج (كفين)", "كاسة رز", "سلطة"}},
		{Name: "بعد التمرين", Items: []string{"لبن", "5 تمرات"}},
		{Name: "العشاء", Items: []string{"سمك مشوي", "بطاطس مسلوقة", "خضار سوتيه"}},
	}},
	models.GoalMaintenance: {Title: "جدول المحافظة", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"بيضتين", "قرصان بر", "خيار وطماط"}},
		{Name: "الغداء", Items: []string{"كبسة دجاج (صحن وسط)", "سلطة"}},
		{Name: "سناك", Items: []string{"فاكهة", "قهوة عربية"}},
		{Name: "العشاء", Items: []string{"لبنة", "توست بر", "زيتون"}},
	}},
}

var ramadanPlans = map[models.Goal]MealPlan{
	models.GoalWeightLoss: {Title: "جدول رمضان (تنشيف)", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"3 تمرات", "موية", "شوربة شوفان", "سلطة"}},
		{Name: "الغبقة", Items: []string{"صدر دجاج مشوي", "خضار"}},
		{Name: "السحور", Items: []string{"بيضتين", "لبن", "خيار"}},
	}},
	models.GoalMuscleGain: {Title: "جدول رمضان (تضخيم)", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"5 تمرات", "شوربة عدس", "لحم مع رز"}},
		{Name: "الغبقة", Items: []string{"سمبوسة فرن", "زبادي يوناني"}},
		{Name: "السحور", Items: []string{"4 بيضات", "شوفان بالحليب", "موز"}},
	}},
	models.GoalMaintenance: {Title: "جدول رمضان (توازن)", Meals: []PlanMeal{
		{Name: "الفطور", Items: []string{"3 تمرات", "شوربة", "طبق رئيسي بنص رز"}},
		{Name: "الغبقة", Items: []string{"فاكهة", "قهوة عربية"}},
		{Name: "السحور", Items: []string{"فول", "خبز بر", "لبن"}},
	}},
}

// WeeklyPlanTemplate returns the meal template for the user's goal and mode, with the
// calorie target filled in. An unset goal is treated as maintenance.
func WeeklyPlanTemplate(p models.UserProfile) MealPlan {
	goal := p.Goal
	if !goal.IsValid() {
		goal = models.GoalMaintenance
	}
	plans := standardPlans
	if p.IsRamadan {
		plans = ramadanPlans
	}
	plan := plans[goal]
	plan.Meals = slices.Clone(plan.Meals)
	plan.Calories = TargetCalories(p)
	return plan
}

// InsightType classifies a predictive insight.
type InsightType string

const (
	InsightWarning InsightType = "warning"
	InsightTip     InsightType = "tip"
	InsightSuccess InsightType = "success"
)

// Insight is one line of the weekly outlook panel.
type Insight struct {
	Type InsightType `json:"type"`
	Text string      `json:"text"`
}

// Insights builds the weekly outlook for a profile. It always returns at least one entry.
func Insights(p models.UserProfile) []Insight {
	var out []Insight
	strict := p.EffectiveTone() == models.ToneStrict
	if p.ActivityLevel == models.ActivityActive && p.Goal == models.GoalWeightLoss {
		text := "يا بطل، نشاطك عالي ما شاء الله، تأكد إنك تاكل بروتين كفاية."
		if strict {
			text = "تنبيه! قاعد تهلك نفسك تمرين وأكلك قليل. ارفع البروتين ولا بيطيح عضلك!"
		}
		out = append(out, Insight{Type: InsightWarning, Text: text})
	}
	if p.IsRamadan {
		out = append(out, Insight{Type: InsightTip, Text: "توقعات الأسبوع: الجفاف عدوك في الصيام. اشرب موية صح وقت الغبقة."})
	}
	if len(out) == 0 {
		text := "أمورك طيبة وماشي صح. استمر يا وحش!"
		if strict {
			text = "وضعك بالسليم، بس لا ترخي! نبي التزام أقوى الأسبوع الجاي."
		}
		out = append(out, Insight{Type: InsightSuccess, Text: text})
	}
	return out
}

// FoodCalorie is one entry of the quick calorie table.
type FoodCalorie struct {
	Name     string `json:"name"`
	Keyword  string `json:"-"`
	Calories int    `json:"calories"`
	Unit     string `json:"unit"`
}

// SaudiFoods lists common local dishes with a typical serving's calories.
var SaudiFoods = []FoodCalorie{
	{Name: "كبسة دجاج", Keyword: "كبسة", Calories: 450, Unit: "صحن"},
	{Name: "جريش", Keyword: "جريش", Calories: 300, Unit: "صحن"},
	{Name: "قرصان", Keyword: "قرصان", Calories: 280, Unit: "صحن"},
	{Name: "تمر", Keyword: "تمر", Calories: 23, Unit: "حبة"},
	{Name: "سمبوسة فرن", Keyword: "سمبوسة", Calories: 90, Unit: "حبة"},
	{Name: "لقيمات", Keyword: "لقيمات", Calories: 45, Unit: "حبة"},
}
