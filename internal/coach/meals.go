package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
	"github.com/BTreeMap/SehaCoach/internal/store"
)

// MealLog is the outcome of logging a meal.
type MealLog struct {
	Meal    models.LoggedMeal  `json:"meal"`
	Message models.ChatMessage `json:"message"`
	Points  int                `json:"points"`
	FoodXP  int                `json:"foodXp"`
	Level   int                `json:"level"`
}

// AnalyzeMeal estimates the meal in a photo.
func (c *Coach) AnalyzeMeal(ctx context.Context, image []byte, mimeType string) (models.LoggedMeal, error) {
	if c.analyzer == nil {
		return models.LoggedMeal{}, ErrNoAnalyzer
	}
	return c.analyzer.Analyze(ctx, image, mimeType)
}

// LogMeal scales the meal by portion, appends it to the user's log and rewards the user.
func (c *Coach) LogMeal(ctx context.Context, userID string, meal models.LoggedMeal, portion float64) (MealLog, error) {
	if meal.Name == "" {
		return MealLog{}, fmt.Errorf("meal name is empty")
	}
	meal = nutrition.ScaleMeal(meal, portion)
	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.Timestamp.IsZero() {
		meal.Timestamp = c.now()
	}

	var msg models.ChatMessage
	p, err := c.mutate(ctx, userID, func(p models.UserProfile) (models.UserProfile, error) {
		out := p.Clone()
		out.LoggedMeals = append(out.LoggedMeals, meal)
		out.Points += MealPoints
		out.FoodXP += MealFoodXP
		out.Level = nutrition.Level(out.Points)
		msg = c.message(models.SenderBot, fmt.Sprintf("عافية! 😋 سجلت لك **%s** (%d سعرة).", meal.Name, meal.Calories), nil)
		if err := c.store.AppendMessage(ctx, userID, msg); err != nil {
			return p, err
		}
		return out, nil
	})
	if err != nil {
		slog.Error("Coach.LogMeal: failed", "userID", userID, "error", err)
		return MealLog{}, err
	}
	c.metrics.MealsLogged.Inc()
	slog.Debug("Coach.LogMeal: meal logged", "userID", userID, "meal", meal.Name, "calories", meal.Calories)
	return MealLog{Meal: meal, Message: msg, Points: p.Points, FoodXP: p.FoodXP, Level: p.Level}, nil
}

// Tracker returns today's tracker log. A log from an earlier day reads as empty.
func (c *Coach) Tracker(ctx context.Context, userID string) (models.TrackerLog, error) {
	return c.today(ctx, userID)
}

// LogWater adds delta cups to today's water count, clamped to [0, MaxWaterCups].
func (c *Coach) LogWater(ctx context.Context, userID string, delta int) (models.TrackerLog, error) {
	return c.updateTracker(ctx, userID, func(t *models.TrackerLog) {
		t.Water = clamp(t.Water+delta, 0, nutrition.MaxWaterCups)
	})
}

// LogSteps adds delta to today's steps, clamped to [0, MaxSteps].
func (c *Coach) LogSteps(ctx context.Context, userID string, delta int) (models.TrackerLog, error) {
	return c.updateTracker(ctx, userID, func(t *models.TrackerLog) {
		t.Steps = clamp(t.Steps+delta, 0, nutrition.MaxSteps)
	})
}

func (c *Coach) updateTracker(ctx context.Context, userID string, fn func(*models.TrackerLog)) (models.TrackerLog, error) {
	unlock := c.locks.lock(userID)
	defer unlock()

	t, err := c.today(ctx, userID)
	if err != nil {
		return t, err
	}
	fn(&t)
	if err := c.store.SaveTracker(ctx, userID, t); err != nil {
		return t, err
	}
	return t, nil
}

// today loads the tracker, resetting it when the stored date is not today.
func (c *Coach) today(ctx context.Context, userID string) (models.TrackerLog, error) {
	date := c.now().Format(dateLayout)
	t, err := c.store.LoadTracker(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.TrackerLog{Date: date}, err
	}
	if t.Date != date {
		return models.TrackerLog{Date: date}, nil
	}
	return t, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
