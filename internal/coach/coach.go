// Package coach orchestrates conversations: it owns history and profile persistence,
// routes each turn to the local engine or the smart responder, and applies the resulting
// profile patches and gamification counters.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/SehaCoach/internal/dialogue"
	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/mealscan"
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/nutrition"
	"github.com/BTreeMap/SehaCoach/internal/store"
)

// Gamification rewards.
const (
	TurnPoints = 10
	TurnFoodXP = 5
	MealPoints = 50
	MealFoodXP = 100
)

// HistoryWindow is how many prior messages the smart responder sees.
const HistoryWindow = 5

// ErrorReplyText is returned when a turn cannot be processed at all.
const ErrorReplyText = "آسف، صار خطأ بسيط. حاول مرة ثانية."

const dateLayout = "2006-01-02"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoAnalyzer   = errors.New("meal analyzer not configured")
	ErrNoPanel      = errors.New("action has no panel")
)

// Opts holds configuration for the Coach.
type Opts struct {
	Remote   dialogue.Remote
	Analyzer mealscan.Analyzer
	Metrics  *Metrics
	Now      func() time.Time
}

// Option configures the Coach.
type Option func(*Opts)

// WithRemote enables smart mode through the given dialogue service.
func WithRemote(r dialogue.Remote) Option {
	return func(o *Opts) { o.Remote = r }
}

// WithAnalyzer sets the meal photo analyzer.
func WithAnalyzer(a mealscan.Analyzer) Option {
	return func(o *Opts) { o.Analyzer = a }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Coach is safe for concurrent use. Turns of one user are serialized.
type Coach struct {
	store    store.Store
	engine   *flow.Engine
	smart    *dialogue.SmartResponder
	analyzer mealscan.Analyzer
	metrics  *Metrics
	now      func() time.Time
	locks    *userLocks
}

// New creates a Coach over the given store and engine.
func New(st store.Store, engine *flow.Engine, opts ...Option) *Coach {
	cfg := Opts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Coach{
		store:    st,
		engine:   engine,
		analyzer: cfg.Analyzer,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		locks:    newUserLocks(),
	}
	if c.engine == nil {
		c.engine = flow.NewEngine()
	}
	if cfg.Remote != nil {
		c.smart = dialogue.NewSmartResponder(cfg.Remote, c.engine)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.now == nil {
		c.now = time.Now
	}
	slog.Debug("Coach.New: created", "smart", c.smart != nil, "analyzer", c.analyzer != nil)
	return c
}

// HandleMessage runs one user turn and returns the bot reply. A storage failure is returned
// together with the reply that was produced.
func (c *Coach) HandleMessage(ctx context.Context, userID, text string) (models.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Reply{}, ErrEmptyMessage
	}
	start := c.now()
	unlock := c.locks.lock(userID)
	defer unlock()

	profile, err := c.loadProfile(ctx, userID)
	if err != nil {
		slog.Error("Coach.HandleMessage: load profile failed", "userID", userID, "error", err)
		return models.Reply{Text: ErrorReplyText}, err
	}
	history, err := c.store.RecentMessages(ctx, userID, HistoryWindow)
	if err != nil {
		slog.Error("Coach.HandleMessage: load history failed", "userID", userID, "error", err)
		return models.Reply{Text: ErrorReplyText}, err
	}
	text = selectFromLastOptions(text, history)

	profile.Points += TurnPoints
	profile.FoodXP += TurnFoodXP

	var errs []error
	if err := c.store.AppendMessage(ctx, userID, c.message(models.SenderUser, text, nil)); err != nil {
		errs = append(errs, err)
	}

	reply, route := c.respond(ctx, userID, text, profile, history)
	profile = profile.Apply(reply.Patch)
	profile.Level = nutrition.Level(profile.Points)

	if err := c.store.AppendMessage(ctx, userID, c.message(models.SenderBot, reply.Text, reply.Options)); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.SaveProfile(ctx, userID, profile); err != nil {
		errs = append(errs, err)
	}

	c.metrics.Turns.WithLabelValues(route).Inc()
	if reply.Action != "" {
		c.metrics.Actions.WithLabelValues(string(reply.Action)).Inc()
	}
	c.metrics.TurnDuration.Observe(c.now().Sub(start).Seconds())
	slog.Debug("Coach.HandleMessage: turn complete", "userID", userID, "route", route, "action", reply.Action, "points", profile.Points)

	if err := errors.Join(errs...); err != nil {
		slog.Error("Coach.HandleMessage: persisting turn failed", "userID", userID, "error", err)
		return reply, fmt.Errorf("failed to persist turn for %s: %w", userID, err)
	}
	return reply, nil
}

// respond picks the path for the turn. Onboarding and mode toggles stay local in smart mode.
func (c *Coach) respond(ctx context.Context, userID, text string, profile models.UserProfile, history []models.ChatMessage) (models.Reply, string) {
	if !profile.IsSmartMode || c.smart == nil {
		return c.engine.Respond(text, profile), RouteLocal
	}
	if reply, ok := c.engine.Preempt(text, profile); ok {
		return reply, RoutePreempt
	}
	dctx := models.DialogueContext{
		Profile: profile,
		History: toHistory(history),
		Stats:   c.dailyStats(ctx, userID, profile),
	}
	reply, outcome := c.smart.Respond(ctx, text, dctx)
	return reply, string(outcome)
}

// selectFromLastOptions maps a bare number onto the latest bot message's options.
func selectFromLastOptions(text string, history []models.ChatMessage) string {
	if len(history) == 0 {
		return text
	}
	last := history[len(history)-1]
	if last.Sender != models.SenderBot || len(last.Options) == 0 {
		return text
	}
	return flow.SelectOption(text, last.Options)
}

func toHistory(msgs []models.ChatMessage) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.HistoryEntry{Sender: m.Sender, Text: m.Text})
	}
	return out
}

func (c *Coach) dailyStats(ctx context.Context, userID string, p models.UserProfile) models.DailyStats {
	t, err := c.today(ctx, userID)
	if err != nil {
		slog.Warn("Coach.dailyStats: tracker unavailable", "userID", userID, "error", err)
	}
	return models.DailyStats{Steps: t.Steps, Water: t.Water, Calories: c.caloriesToday(p)}
}

func (c *Coach) caloriesToday(p models.UserProfile) int {
	now := c.now()
	today := now.Format(dateLayout)
	total := 0
	for _, m := range p.LoggedMeals {
		if m.Timestamp.In(now.Location()).Format(dateLayout) == today {
			total += m.Calories
		}
	}
	return total
}

func (c *Coach) message(sender models.Sender, text string, options []string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Options:   options,
		Timestamp: c.now(),
	}
}

// loadProfile returns the stored profile or a fresh one for first-time users.
func (c *Coach) loadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	p, err := c.store.LoadProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewUserProfile(), nil
	}
	return p, err
}

// Profile returns the user's profile, or the starting profile if none is stored.
func (c *Coach) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	return c.loadProfile(ctx, userID)
}

// History returns up to limit messages, oldest first. A user without history sees the intro.
func (c *Coach) History(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	msgs, err := c.store.RecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		intro := c.engine.Intro()
		return []models.ChatMessage{{ID: "intro", Sender: models.SenderBot, Text: intro.Text, Options: intro.Options, Timestamp: c.now()}}, nil
	}
	return msgs, nil
}

// Reset deletes everything stored for the user and starts a new conversation with the intro.
func (c *Coach) Reset(ctx context.Context, userID string) (models.Reply, error) {
	unlock := c.locks.lock(userID)
	defer unlock()

	if err := c.store.DeleteUser(ctx, userID); err != nil {
		return models.Reply{}, fmt.Errorf("failed to reset %s: %w", userID, err)
	}
	intro := c.engine.Intro()
	if err := c.store.AppendMessage(ctx, userID, c.message(models.SenderBot, intro.Text, intro.Options)); err != nil {
		return intro, fmt.Errorf("failed to store intro for %s: %w", userID, err)
	}
	slog.Info("Coach.Reset: user reset", "userID", userID)
	return intro, nil
}

// UpdateSettings merges an explicit settings edit into the profile. Points, level, food XP
// and unlocks are refused, and required fields can only be set in onboarding order.
func (c *Coach) UpdateSettings(ctx context.Context, userID string, patch *models.ProfilePatch) (models.UserProfile, error) {
	if patch.TouchesProgress() {
		return models.UserProfile{}, models.ErrProgressReadOnly
	}
	return c.mutate(ctx, userID, func(p models.UserProfile) (models.UserProfile, error) {
		out := p.Apply(patch)
		if err := out.Validate(); err != nil {
			return p, err
		}
		if err := out.CheckOnboardingOrder(patch); err != nil {
			return p, err
		}
		out.Level = nutrition.Level(out.Points)
		return out, nil
	})
}

// ToggleTag adds or removes an injury, medical condition or allergy.
func (c *Coach) ToggleTag(ctx context.Context, userID string, kind models.TagKind, tag string) (models.UserProfile, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return models.UserProfile{}, fmt.Errorf("tag is empty")
	}
	return c.mutate(ctx, userID, func(p models.UserProfile) (models.UserProfile, error) {
		return p.ToggleTag(kind, tag)
	})
}

// UnlockRewards appends every food reward the user's XP has reached and returns the new IDs.
func (c *Coach) UnlockRewards(ctx context.Context, userID string) ([]string, error) {
	var unlocked []string
	_, err := c.mutate(ctx, userID, func(p models.UserProfile) (models.UserProfile, error) {
		unlocked = nutrition.NewlyUnlocked(p.FoodXP, p.UnlockedMeals)
		out := p.Clone()
		out.UnlockedMeals = append(out.UnlockedMeals, unlocked...)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// mutate applies fn to the stored profile under the user's lock and saves the result.
func (c *Coach) mutate(ctx context.Context, userID string, fn func(models.UserProfile) (models.UserProfile, error)) (models.UserProfile, error) {
	unlock := c.locks.lock(userID)
	defer unlock()

	p, err := c.loadProfile(ctx, userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	out, err := fn(p)
	if err != nil {
		return p, err
	}
	if err := c.store.SaveProfile(ctx, userID, out); err != nil {
		return p, err
	}
	return out, nil
}
