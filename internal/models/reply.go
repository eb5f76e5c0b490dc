package models

import (
	"encoding/json"
	"time"
)

// Action names a UI panel the consumer should open after a reply.
type Action string

const (
	ActionSaveProfile      Action = "save_profile"
	ActionGeneratePlan     Action = "generate_plan" // legacy, never emitted
	ActionCheckIn          Action = "check_in"
	ActionShowTracker      Action = "show_tracker"
	ActionShowGrocery      Action = "show_grocery"
	ActionShowWeeklyPlan   Action = "show_weekly_plan"
	ActionShowInsights     Action = "show_insights"
	ActionShowGamification Action = "show_gamification"
	ActionShowProModal     Action = "show_pro_modal"
	ActionShowFoodRewards  Action = "show_food_rewards"
	ActionShowMealScanner  Action = "show_meal_scanner"
	ActionChangeTone       Action = "change_tone"
)

// IsValid reports whether a is part of the closed action set.
func (a Action) IsValid() bool {
	switch a {
	case ActionSaveProfile, ActionGeneratePlan, ActionCheckIn, ActionShowTracker, ActionShowGrocery,
		ActionShowWeeklyPlan, ActionShowInsights, ActionShowGamification, ActionShowProModal,
		ActionShowFoodRewards, ActionShowMealScanner, ActionChangeTone:
		return true
	}
	return false
}

// Reply is the single output unit of a conversation turn.
type Reply struct {
	Text     string        `json:"text"`
	Options  []string      `json:"options,omitempty"`
	Action   Action        `json:"action,omitempty"`
	Patch    *ProfilePatch `json:"profilePatch,omitempty"`
	Plan     *WeeklyPlan   `json:"plan,omitempty"`
	Feedback *Feedback     `json:"feedback,omitempty"`
	Injury   *InjuryAdvice `json:"injury,omitempty"`
}

// PlanMeal is one meal inside a generated weekly plan.
type PlanMeal struct {
	Name     string  `json:"name"`
	Portion  string  `json:"portion"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Type     string  `json:"type"` // breakfast, lunch, dinner, snack
}

// PlanDay is one day of a generated weekly plan.
type PlanDay struct {
	Day           string     `json:"day"`
	Meals         []PlanMeal `json:"meals"`
	TotalCalories float64    `json:"totalCalories"`
	Note          string     `json:"note,omitempty"`
}

// WeeklyPlan is the structured plan returned by the dialogue service.
type WeeklyPlan struct {
	WeekSummary string    `json:"weekSummary"`
	Days        []PlanDay `json:"days"`
}

// Feedback is a daily check-in summary returned by the dialogue service.
type Feedback struct {
	Score       float64  `json:"score"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"actionItems"`
	Tone        string   `json:"tone"` // praise, warning, strict
}

// InjuryAdvice is structured injury guidance returned by the dialogue service.
type InjuryAdvice struct {
	InjuryType      string   `json:"injuryType"`
	ImmediateAction []string `json:"immediateAction"`
	Avoid           []string `json:"avoid"`
	RecoveryTime    string   `json:"recoveryTime"`
	SeeDoctor       bool     `json:"seeDoctor"`
}

// TextResult is the payload of a plain text dialogue result.
type TextResult struct {
	Text string `json:"text"`
}

// ResultType tags the payload of a dialogue service response.
type ResultType string

const (
	ResultText       ResultType = "text"
	ResultWeeklyPlan ResultType = "weekly_plan"
	ResultFeedback   ResultType = "feedback"
	ResultInjury     ResultType = "injury"
)

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Options   []string  `json:"options,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is the trimmed history shape sent to the dialogue service.
type HistoryEntry struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// DailyStats summarises today's activity for the dialogue service.
type DailyStats struct {
	Steps    int `json:"steps"`
	Water    int `json:"water"`
	Calories int `json:"calories"`
}

// DialogueContext carries everything the dialogue service may personalise on.
type DialogueContext struct {
	Profile UserProfile    `json:"profile"`
	History []HistoryEntry `json:"history"`
	Stats   DailyStats     `json:"stats"`
}

// DialogueRequest is the body of POST /chat.
type DialogueRequest struct {
	Message string          `json:"message"`
	Context DialogueContext `json:"context"`
}

// DialogueResult is the typed response of POST /chat.
type DialogueResult struct {
	Type ResultType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LoggedMeal is a meal the user has recorded, usually from a photo.
type LoggedMeal struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Calories   int       `json:"calories" yaml:"calories"`
	Protein    int       `json:"protein" yaml:"protein"`
	Carbs      int       `json:"carbs" yaml:"carbs"`
	Fats       int       `json:"fats" yaml:"fats"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Confidence float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	IsSaudi    bool      `json:"isSaudi,omitempty" yaml:"isSaudi,omitempty"`
	HealthTip  string    `json:"healthTip,omitempty" yaml:"healthTip,omitempty"`
	Portion    float64   `json:"portion,omitempty" yaml:"portion,omitempty"`
}

// TrackerLog holds today's water cups and step count.
type TrackerLog struct {
	Date  string `json:"date"` // YYYY-MM-DD in the server's local time
	Water int    `json:"water"`
	Steps int    `json:"steps"`
}
