package coach

import (
	"context"

	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
)

// RewardsPanel backs show_food_rewards.
type RewardsPanel struct {
	FoodXP    int                    `json:"foodXp"`
	Rewards   []nutrition.FoodReward `json:"rewards"`
	Unlocked  []string               `json:"unlocked"`
	Next      *nutrition.FoodReward  `json:"next,omitempty"`
	Remaining int                    `json:"remaining"`
}

// GamificationPanel backs show_gamification.
type GamificationPanel struct {
	Points      int    `json:"points"`
	Level       int    `json:"level"`
	Title       string `json:"title"`
	NextLevelAt int    `json:"nextLevelAt"`
}

// TrackerPanel backs show_tracker.
type TrackerPanel struct {
	Tracker     models.TrackerLog `json:"tracker"`
	WaterTarget int               `json:"waterTarget"`
	StepsTarget int               `json:"stepsTarget"`
}

// MealScannerPanel backs show_meal_scanner.
type MealScannerPanel struct {
	LoggedMeals    []models.LoggedMeal `json:"loggedMeals"`
	TodayCalories  int                 `json:"todayCalories"`
	TargetCalories int                 `json:"targetCalories"`
}

// TonePanel backs change_tone.
type TonePanel struct {
	Current models.CoachTone `json:"current"`
	Options []string         `json:"options"`
}

// ProPanel backs show_pro_modal.
type ProPanel struct {
	IsPro    bool     `json:"isPro"`
	Features []string `json:"features"`
}

var proFeatures = []string{
	"جدول أسبوعي ذكي يتغير حسب التزامك",
	"تحليل صور الأكل بدون حدود",
	"تقارير تقدم أسبوعية",
}

// Panel returns the data shown by the panel an action opens.
func (c *Coach) Panel(ctx context.Context, userID string, action models.Action) (any, error) {
	p, err := c.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch action {
	case models.ActionShowGrocery:
		return nutrition.GroceryList(p.IsRamadan), nil
	case models.ActionShowWeeklyPlan:
		return nutrition.WeeklyPlanTemplate(p), nil
	case models.ActionShowInsights:
		return nutrition.Insights(p), nil
	case models.ActionShowFoodRewards:
		panel := RewardsPanel{FoodXP: p.FoodXP, Rewards: nutrition.FoodRewards, Unlocked: p.UnlockedMeals}
		if panel.Unlocked == nil {
			panel.Unlocked = []string{}
		}
		if next, remaining, ok := nutrition.RewardProgress(p.FoodXP); ok {
			panel.Next = &next
			panel.Remaining = remaining
		}
		return panel, nil
	case models.ActionShowGamification:
		level := nutrition.Level(p.Points)
		return GamificationPanel{Points: p.Points, Level: level, Title: nutrition.LevelTitle(level), NextLevelAt: level * 100}, nil
	case models.ActionShowTracker:
		t, err := c.today(ctx, userID)
		if err != nil {
			return nil, err
		}
		return TrackerPanel{Tracker: t, WaterTarget: nutrition.WaterTargetCups, StepsTarget: nutrition.StepsTarget}, nil
	case models.ActionShowMealScanner:
		meals := p.LoggedMeals
		if meals == nil {
			meals = []models.LoggedMeal{}
		}
		return MealScannerPanel{LoggedMeals: meals, TodayCalories: c.caloriesToday(p), TargetCalories: nutrition.TargetCalories(p)}, nil
	case models.ActionChangeTone:
		return TonePanel{Current: p.EffectiveTone(), Options: flow.ToneOptions}, nil
	case models.ActionShowProModal:
		return ProPanel{IsPro: p.IsPro, Features: proFeatures}, nil
	}
	return nil, ErrNoPanel
}
