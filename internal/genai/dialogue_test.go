package genai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// fakeGenerator records the last call made by the dialogue service.
type fakeGenerator struct {
	out      string
	err      error
	method   string
	schema   string
	messages int
}

func (f *fakeGenerator) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	f.method, f.messages = "text", len(messages)
	return f.out, f.err
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, name string, schema map[string]any) (string, error) {
	f.method, f.schema, f.messages = "structured", name, len(messages)
	return f.out, f.err
}

func history(n int) []models.HistoryEntry {
	h := make([]models.HistoryEntry, n)
	for i := range h {
		h[i] = models.HistoryEntry{Sender: models.SenderUser, Text: "هلا"}
		if i%2 == 1 {
			h[i].Sender = models.SenderBot
		}
	}
	return h
}

func TestDialogueService_Routing(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		history      int
		out          string
		wantType     models.ResultType
		wantMethod   string
		wantSchema   string
		wantMessages int
	}{
		{"belly guard", "عندي كرش", 0, "خلنا نضبطها", models.ResultText, "text", "", 4},
		{"weekly plan", "سو لي جدول", 0, `{"weekSummary":"x","days":[]}`, models.ResultWeeklyPlan, "structured", "weekly_plan", 3},
		{"feedback", "وش وضعي اليوم", 0, `{"score":7,"summary":"زين","actionItems":[],"tone":"praise"}`, models.ResultFeedback, "structured", "daily_feedback", 3},
		{"injury", "ظهري يعورني", 0, `{"injuryType":"شد"}`, models.ResultInjury, "structured", "injury_advice", 3},
		{"pain without hamza", "عندي الم بالركبة", 0, `{"injuryType":"التواء"}`, models.ResultInjury, "structured", "injury_advice", 3},
		{"walking is not pain", "كيف المشي", 0, "امش كل يوم", models.ResultText, "text", "", 3},
		{"plain text", "هلا والله", 0, "هلا فيك", models.ResultText, "text", "", 3},
		{"anti repetition", "هلا والله", 2, "هلا فيك", models.ResultText, "text", "", 6},
		{"history window", "هلا", 9, "هلا", models.ResultText, "text", "", 2 + HistoryWindow + 1 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{out: tt.out}
			svc := &DialogueService{gen: gen}
			res, err := svc.Chat(context.Background(), models.DialogueRequest{
				Message: tt.message,
				Context: models.DialogueContext{History: history(tt.history)},
			})
			if err != nil {
				t.Fatalf("Chat: %v", err)
			}
			if res.Type != tt.wantType || gen.method != tt.wantMethod || gen.schema != tt.wantSchema {
				t.Errorf("got type %q via %s/%q", res.Type, gen.method, gen.schema)
			}
			if gen.messages != tt.wantMessages {
				t.Errorf("messages = %d, want %d", gen.messages, tt.wantMessages)
			}
			if !json.Valid(res.Data) {
				t.Errorf("result data is not JSON: %s", res.Data)
			}
		})
	}
}

func TestDialogueService_TextResultShape(t *testing.T) {
	svc := &DialogueService{gen: &fakeGenerator{out: "أبشر"}}
	res, err := svc.Chat(context.Background(), models.DialogueRequest{Message: "هلا"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var tr models.TextResult
	if err := json.Unmarshal(res.Data, &tr); err != nil || tr.Text != "أبشر" {
		t.Errorf("text result = %s (%v)", res.Data, err)
	}
}

func TestDialogueService_MalformedStructuredOutput(t *testing.T) {
	svc := &DialogueService{gen: &fakeGenerator{out: "not json"}}
	_, err := svc.Chat(context.Background(), models.DialogueRequest{Message: "جدول"})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestDialogueService_MissingKey(t *testing.T) {
	svc := NewDialogueService(nil)
	if _, err := svc.Chat(context.Background(), models.DialogueRequest{Message: "هلا"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestDialogueService_GeneratorError(t *testing.T) {
	svc := &DialogueService{gen: &fakeGenerator{err: errors.New("rate limited")}}
	if _, err := svc.Chat(context.Background(), models.DialogueRequest{Message: "هلا"}); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected generator error, got %v", err)
	}
}

func TestUserContext(t *testing.T) {
	c := models.DialogueContext{
		Profile: models.UserProfile{Gender: models.GenderMale, Age: 25, Injuries: []string{"ركبة"}},
		Stats:   models.DailyStats{Steps: 4000, Water: 6},
		History: history(3),
	}
	got := userContext(c)
	for _, want := range []string{"Name: غير معروف", "Gender: male", "Age: 25", "Injuries: ركبة", "Steps: 4000 / 8000", "Water: 6 / 12 cups", "Previous Response Count: 3", "Coach Tone: balanced"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Daily Calories") {
		t.Error("daily calories must only appear for onboarded profiles")
	}
}
