// Package nutrition holds the pure calorie and progress arithmetic used by the coach,
// plus the fixed data tables behind the reward, grocery, meal-plan and insight panels.
package nutrition

import (
	"math"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// DefaultCalories is returned when the profile lacks weight, height or age.
const DefaultCalories = 2000

// Adjustments applied on top of the maintenance estimate.
const (
	WeightLossDeficit = 500
	MuscleGainSurplus = 300
)

// activityMultipliers maps an activity level to its TDEE multiplier.
var activityMultipliers = map[models.ActivityLevel]float64{
	models.ActivitySedentary:  1.2,
	models.ActivityLight:      1.375,
	models.ActivityModerate:   1.55,
	models.ActivityActive:     1.725,
	models.ActivityVeryActive: 1.9,
}

// ActivityFactor returns the multiplier for a level; unset or unknown levels count as sedentary.
func ActivityFactor(level models.ActivityLevel) float64 {
	if f, ok := activityMultipliers[level]; ok {
		return f
	}
	return activityMultipliers[models.ActivitySedentary]
}

// CalculateCalories estimates daily energy needs with Mifflin-St Jeor and the activity multiplier.
func CalculateCalories(p models.UserProfile) int {
	if p.Weight == 0 || p.Height == 0 || p.Age == 0 {
		return DefaultCalories
	}
	bmr := 10*p.Weight + 6.25*p.Height - 5*float64(p.Age)
	if p.Gender == models.GenderFemale {
		bmr -= 161
	} else {
		bmr += 5
	}
	return int(math.Round(bmr * ActivityFactor(p.ActivityLevel)))
}

// TargetCalories adjusts the maintenance estimate for the user's goal.
func TargetCalories(p models.UserProfile) int {
	c := CalculateCalories(p)
	switch p.Goal {
	case models.GoalWeightLoss:
		return c - WeightLossDeficit
	case models.GoalMuscleGain:
		return c + MuscleGainSurplus
	}
	return c
}

// ProteinTarget returns the daily protein goal in grams (2 g per kg).
func ProteinTarget(weight float64) int {
	return int(math.Round(weight * 2))
}

// BMI returns weight / (height in m)^2 rounded to one decimal, or 0 when either is missing.
func BMI(weight, height float64) float64 {
	if weight == 0 || height == 0 {
		return 0
	}
	m := height / 100
	return math.Round(weight/(m*m)*10) / 10
}

// Level converts accumulated points to a level starting at 1.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/100 + 1
}

// LevelTitle returns the display title for a level.
func LevelTitle(level int) string {
	switch {
	case level < 3:
		return "مبتدئ نشيط 🌱"
	case level < 6:
		return "بطل واعد 🥉"
	case level < 10:
		return "رياضي محترف 🥈"
	default:
		return "أسطورة الصحة 🥇"
	}
}

// ScaleMeal multiplies a meal's macros by portion, rounding each to the nearest integer.
// A non-positive portion is treated as a full portion.
func ScaleMeal(m models.LoggedMeal, portion float64) models.LoggedMeal {
	if portion <= 0 {
		portion = 1
	}
	scale := func(v int) int { return int(math.Round(float64(v) * portion)) }
	m.Calories = scale(m.Calories)
	m.Protein = scale(m.Protein)
	m.Carbs = scale(m.Carbs)
	m.Fats = scale(m.Fats)
	m.Portion = portion
	return m
}
