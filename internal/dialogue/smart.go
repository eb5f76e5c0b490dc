package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// CredentialReply is shown when the dialogue service has no API key. The local engine is
// not consulted in that case.
const CredentialReply = "⚠️ **الذكاء يحتاج تفعيل!**\n\nروح للإعدادات ⚙️ وحط مفتاح OpenAI عشان الكوتش يصير أذكى. أو استمر بالوضع السريع الحالي."

// FallbackSuffix is appended to local replies produced because the service failed.
const FallbackSuffix = "\n\n(ملاحظة: شغالين بالوضع السريع ⚡️)"

// Remote is the dialogue service.
type Remote interface {
	Chat(ctx context.Context, req models.DialogueRequest) (models.DialogueResult, error)
}

// Local is the on-device responder used as fallback.
type Local interface {
	Respond(input string, profile models.UserProfile) models.Reply
}

// Outcome records which path produced a smart reply.
type Outcome string

const (
	OutcomeRemote     Outcome = "remote"
	OutcomeFallback   Outcome = "fallback"
	OutcomeCredential Outcome = "missing_credential"
)

// SmartResponder answers through the remote service and degrades to the local engine.
type SmartResponder struct {
	remote Remote
	local  Local
}

// NewSmartResponder creates a SmartResponder.
func NewSmartResponder(remote Remote, local Local) *SmartResponder {
	return &SmartResponder{remote: remote, local: local}
}

// Respond always yields exactly one reply.
func (s *SmartResponder) Respond(ctx context.Context, input string, dctx models.DialogueContext) (models.Reply, Outcome) {
	result, err := s.remote.Chat(ctx, models.DialogueRequest{Message: input, Context: dctx})
	if err == nil {
		var reply models.Reply
		reply, err = Translate(result)
		if err == nil {
			return reply, OutcomeRemote
		}
	}
	if errors.Is(err, ErrMissingCredential) {
		slog.Warn("SmartResponder.Respond: dialogue service has no credential")
		return models.Reply{Text: CredentialReply}, OutcomeCredential
	}

	slog.Warn("SmartResponder.Respond: falling back to local engine", "error", err)
	reply := s.local.Respond(input, dctx.Profile)
	reply.Text += FallbackSuffix
	return reply, OutcomeFallback
}

// Translate maps a service result onto a reply.
func Translate(result models.DialogueResult) (models.Reply, error) {
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return models.Reply{}, fmt.Errorf("%w: empty %q payload", ErrMalformedResult, result.Type)
	}
	switch result.Type {
	case models.ResultWeeklyPlan:
		var plan models.WeeklyPlan
		if err := decode(result.Data, &plan); err != nil {
			return models.Reply{}, err
		}
		text := "📅 **جدولك الذكي جاهز!**"
		if plan.WeekSummary != "" {
			text += "\n\n" + plan.WeekSummary
		}
		return models.Reply{Text: text, Action: models.ActionShowWeeklyPlan, Plan: &plan}, nil

	case models.ResultFeedback:
		var fb models.Feedback
		if err := decode(result.Data, &fb); err != nil {
			return models.Reply{}, err
		}
		if fb.Summary == "" {
			return models.Reply{}, fmt.Errorf("%w: feedback without summary", ErrMalformedResult)
		}
		return models.Reply{Text: fb.Summary, Action: models.ActionShowInsights, Feedback: &fb}, nil

	case models.ResultInjury:
		var advice models.InjuryAdvice
		if err := decode(result.Data, &advice); err != nil {
			return models.Reply{}, err
		}
		text := "🩹 **تحليل الإصابة**"
		if advice.InjuryType != "" {
			text += "\n\n" + advice.InjuryType
		}
		return models.Reply{Text: text, Injury: &advice}, nil

	case models.ResultText:
		var tr models.TextResult
		if err := decode(result.Data, &tr); err != nil {
			return models.Reply{}, err
		}
		if tr.Text == "" {
			tr.Text = "تم!"
		}
		return models.Reply{Text: tr.Text}, nil
	}
	return models.Reply{}, fmt.Errorf("%w: unknown result type %q", ErrMalformedResult, result.Type)
}

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	return nil
}
