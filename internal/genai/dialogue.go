package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
	"github.com/BTreeMap/SehaCoach/internal/tone"
)

// HistoryWindow is how many recent messages are replayed to the model.
const HistoryWindow = 5

// ErrMalformedOutput is returned when a structured completion is not valid JSON.
var ErrMalformedOutput = errors.New("model returned malformed structured output")

// generator is the subset of Client the dialogue service needs.
type generator interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GenerateStructured(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, name string, schema map[string]any) (string, error)
}

// intent selects how one chat turn is generated.
type intent int

const (
	intentText intent = iota
	intentBelly
	intentPlan
	intentFeedback
	intentInjury
)

var (
	bellyWords    = []string{"كرش", "بطن", "تنحيف", "انحف", "خسارة وزن", "وزن زايد", "سمنة", "دهون"}
	planWords     = []string{"جدول", "خطة", "أسبوعي"}
	feedbackWords = []string{"تحليل", "وضعي", "بشر"}
	injuryWords   = []string{"إصابة", "عورني", "يعورني"}
)

func detectIntent(message string) intent {
	msg := flow.Normalize(message)
	switch {
	case flow.ContainsAny(msg, bellyWords...):
		return intentBelly
	case flow.ContainsAny(msg, planWords...):
		return intentPlan
	case flow.ContainsAny(msg, feedbackWords...):
		return intentFeedback
	case flow.ContainsAny(msg, injuryWords...) || flow.HasWord(msg, "ألم", "الألم"):
		return intentInjury
	}
	return intentText
}

// DialogueService answers POST /chat requests with OpenAI completions.
type DialogueService struct {
	gen generator
}

// NewDialogueService creates a DialogueService. A nil client makes every Chat call fail
// with ErrMissingAPIKey.
func NewDialogueService(c *Client) *DialogueService {
	if c == nil {
		return &DialogueService{}
	}
	return &DialogueService{gen: c}
}

// Chat routes one message to a free-text or structured completion.
func (s *DialogueService) Chat(ctx context.Context, req models.DialogueRequest) (models.DialogueResult, error) {
	if s == nil || s.gen == nil {
		return models.DialogueResult{}, ErrMissingAPIKey
	}
	messages := buildMessages(req)

	switch detectIntent(req.Message) {
	case intentBelly:
		return s.text(ctx, append(messages, openai.SystemMessage(bellyGuard)))
	case intentPlan:
		return s.structured(ctx, messages, models.ResultWeeklyPlan, "weekly_plan", weeklyPlanSchema)
	case intentFeedback:
		return s.structured(ctx, messages, models.ResultFeedback, "daily_feedback", feedbackSchema)
	case intentInjury:
		return s.structured(ctx, messages, models.ResultInjury, "injury_advice", injuryAdviceSchema)
	}
	if len(req.Context.History) > 0 {
		messages = append(messages, openai.SystemMessage(antiRepetitionNote))
	}
	return s.text(ctx, messages)
}

func (s *DialogueService) text(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (models.DialogueResult, error) {
	out, err := s.gen.GenerateWithMessages(ctx, messages)
	if err != nil {
		return models.DialogueResult{}, err
	}
	data, err := json.Marshal(models.TextResult{Text: out})
	if err != nil {
		return models.DialogueResult{}, fmt.Errorf("failed to marshal text result: %w", err)
	}
	return models.DialogueResult{Type: models.ResultText, Data: data}, nil
}

func (s *DialogueService) structured(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, typ models.ResultType, name string, schema map[string]any) (models.DialogueResult, error) {
	out, err := s.gen.GenerateStructured(ctx, messages, name, schema)
	if err != nil {
		return models.DialogueResult{}, err
	}
	out = strings.TrimSpace(out)
	if !json.Valid([]byte(out)) {
		slog.Warn("DialogueService.structured: invalid JSON from model", "schema", name, "length", len(out))
		return models.DialogueResult{}, fmt.Errorf("%w: %s", ErrMalformedOutput, name)
	}
	return models.DialogueResult{Type: typ, Data: json.RawMessage(out)}, nil
}

// buildMessages assembles persona, tone policy, user context, recent history and the new message.
func buildMessages(req models.DialogueRequest) []openai.ChatCompletionMessageParamUnion {
	p := req.Context.Profile
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt + tone.BuildToneGuide(p.EffectiveTone())),
		openai.SystemMessage("Context:\n" + userContext(req.Context)),
	}
	history := req.Context.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	for _, h := range history {
		if h.Sender == models.SenderUser {
			messages = append(messages, openai.UserMessage(h.Text))
		} else {
			messages = append(messages, openai.AssistantMessage(h.Text))
		}
	}
	return append(messages, openai.UserMessage(req.Message))
}

const unknown = "غير معروف"

func orUnknown[T comparable](v T) string {
	var zero T
	if v == zero {
		return unknown
	}
	return fmt.Sprint(v)
}

func userContext(c models.DialogueContext) string {
	p := c.Profile
	injuries := "None"
	if len(p.Injuries) > 0 {
		injuries = strings.Join(p.Injuries, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "User Profile:\n")
	fmt.Fprintf(&b, "Name: %s\n", orUnknown(p.Name))
	fmt.Fprintf(&b, "Gender: %s\n", orUnknown(p.Gender))
	fmt.Fprintf(&b, "Age: %s\n", orUnknown(p.Age))
	fmt.Fprintf(&b, "Weight: %s kg\n", orUnknown(p.Weight))
	fmt.Fprintf(&b, "Height: %s cm\n", orUnknown(p.Height))
	fmt.Fprintf(&b, "Goal: %s\n", orUnknown(p.Goal))
	fmt.Fprintf(&b, "Activity Level: %s\n", orUnknown(p.ActivityLevel))
	fmt.Fprintf(&b, "Injuries: %s\n", injuries)
	fmt.Fprintf(&b, "Coach Tone: %s\n", p.EffectiveTone())
	if p.IsOnboarded() {
		fmt.Fprintf(&b, "Daily Calories: %d\n", nutrition.CalculateCalories(p))
	}
	fmt.Fprintf(&b, "\nCurrent Stats (Today):\n")
	fmt.Fprintf(&b, "Steps: %d / %d\n", c.Stats.Steps, nutrition.StepsTarget)
	fmt.Fprintf(&b, "Water: %d / %d cups\n", c.Stats.Water, nutrition.WaterTargetCups)
	fmt.Fprintf(&b, "Calories: %d\n", c.Stats.Calories)
	fmt.Fprintf(&b, "\nPrevious Response Count: %d\n", len(c.History))
	return b.String()
}
