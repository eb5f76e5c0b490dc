package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BTreeMap/SehaCoach/internal/dialogue"
	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/mealscan"
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/store"
)

// fakeRemote records requests and answers with a fixed result or error.
type fakeRemote struct {
	mu       sync.Mutex
	requests []models.DialogueRequest
	result   models.DialogueResult
	err      error
}

func (f *fakeRemote) Chat(_ context.Context, req models.DialogueRequest) (models.DialogueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func textResult(text string) models.DialogueResult {
	data, _ := json.Marshal(models.TextResult{Text: text})
	return models.DialogueResult{Type: models.ResultText, Data: data}
}

// failingStore fails SaveProfile and delegates everything else.
type failingStore struct {
	store.Store
}

func (failingStore) SaveProfile(context.Context, string, models.UserProfile) error {
	return errors.New("disk full")
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func fixedClock() time.Time { return fixedNow }

func onboarded() models.UserProfile {
	return models.UserProfile{
		Gender:        models.GenderMale,
		Age:           25,
		Height:        170,
		Weight:        70,
		Goal:          models.GoalWeightLoss,
		ActivityLevel: models.ActivityModerate,
		CoachTone:     models.ToneBalanced,
		Points:        120,
		Level:         2,
		FoodXP:        40,
	}
}

func newTestCoach(t *testing.T, opts ...Option) (*Coach, *store.InMemoryStore, *Metrics) {
	t.Helper()
	st := store.NewInMemoryStore()
	m := NewMetrics(nil)
	opts = append([]Option{WithMetrics(m), WithClock(fixedClock)}, opts...)
	return New(st, flow.NewEngine(flow.WithSeed(7)), opts...), st, m
}

func seed(t *testing.T, st store.Store, userID string, p models.UserProfile) {
	t.Helper()
	if err := st.SaveProfile(context.Background(), userID, p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func send(t *testing.T, c *Coach, userID string, inputs ...string) []models.Reply {
	t.Helper()
	var replies []models.Reply
	for _, in := range inputs {
		r, err := c.HandleMessage(context.Background(), userID, in)
		if err != nil {
			t.Fatalf("HandleMessage(%q) error: %v", in, err)
		}
		replies = append(replies, r)
	}
	return replies
}

func TestHandleMessage_OnboardingEndToEnd(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()

	replies := send(t, c, "u1", "توكلنا على الله", "رجال", "25", "170", "70", "تنشيف", "متوسط", "متوازن")
	done := replies[len(replies)-1]
	if !strings.Contains(done.Text, "2594") || done.Action != models.ActionSaveProfile {
		t.Fatalf("unexpected completion reply: %+v", done)
	}

	p, err := st.LoadProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	want := models.UserProfile{
		Gender: models.GenderMale, Age: 25, Height: 170, Weight: 70,
		Goal: models.GoalWeightLoss, ActivityLevel: models.ActivityModerate, CoachTone: models.ToneBalanced,
		IsSmartMode: true, Points: 50, Level: 1, FoodXP: 0, UnlockedMeals: []string{},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("profile after onboarding (-want +got):\n%s", diff)
	}

	send(t, c, "u1", "نصيحة")
	p, _ = st.LoadProfile(ctx, "u1")
	if p.Points != 60 || p.FoodXP != 5 || p.Level != 1 {
		t.Errorf("turn credit after onboarding: points=%d foodXp=%d level=%d", p.Points, p.FoodXP, p.Level)
	}

	msgs, _ := st.RecentMessages(ctx, "u1", 0)
	if len(msgs) != 18 {
		t.Fatalf("expected 18 stored messages, got %d", len(msgs))
	}
	if msgs[0].Sender != models.SenderUser || msgs[1].Sender != models.SenderBot {
		t.Errorf("messages should alternate user/bot, got %s then %s", msgs[0].Sender, msgs[1].Sender)
	}
	if !cmp.Equal(msgs[1].Options, []string{"رجال", "بنت"}) {
		t.Errorf("bot message should keep its options, got %v", msgs[1].Options)
	}
}

func TestHandleMessage_NumberSelectsLastOption(t *testing.T) {
	c, st, _ := newTestCoach(t)
	send(t, c, "u1", "يلا", "2")

	p, _ := st.LoadProfile(context.Background(), "u1")
	if p.Gender != models.GenderFemale {
		t.Fatalf("option 2 of the gender question should select female, got %q", p.Gender)
	}
	msgs, _ := st.RecentMessages(context.Background(), "u1", 0)
	if msgs[2].Text != "بنت" {
		t.Errorf("stored user message should be the selected option, got %q", msgs[2].Text)
	}
}

func TestHandleMessage_LevelFollowsPoints(t *testing.T) {
	c, st, _ := newTestCoach(t)
	p := onboarded()
	p.Points = 195
	p.Level = 2
	seed(t, st, "u1", p)

	send(t, c, "u1", "نصيحة")
	got, _ := st.LoadProfile(context.Background(), "u1")
	if got.Points != 205 || got.Level != 3 {
		t.Errorf("expected points 205 at level 3, got %d at level %d", got.Points, got.Level)
	}
}

func TestHandleMessage_SmartRemote(t *testing.T) {
	remote := &fakeRemote{result: textResult("هلا والله! خلنا نبدأ بالمشي.")}
	c, st, m := newTestCoach(t, WithRemote(remote))
	p := onboarded()
	p.IsSmartMode = true
	p.LoggedMeals = []models.LoggedMeal{
		{ID: "m1", Name: "كبسة", Calories: 650, Timestamp: fixedNow.Add(-time.Hour)},
		{ID: "m0", Name: "برقر", Calories: 900, Timestamp: fixedNow.Add(-48 * time.Hour)},
	}
	seed(t, st, "u1", p)
	ctx := context.Background()
	if err := st.SaveTracker(ctx, "u1", models.TrackerLog{Date: fixedNow.Format("2006-01-02"), Water: 4, Steps: 3000}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		st.AppendMessage(ctx, "u1", models.ChatMessage{ID: fmt.Sprint(i), Sender: models.SenderUser, Text: fmt.Sprintf("قديم %d", i), Timestamp: fixedNow})
		st.AppendMessage(ctx, "u1", models.ChatMessage{ID: fmt.Sprint(i), Sender: models.SenderBot, Text: fmt.Sprintf("رد %d", i), Timestamp: fixedNow})
	}

	r := send(t, c, "u1", "وش رايك أمشي اليوم؟")[0]
	if r.Text != "هلا والله! خلنا نبدأ بالمشي." {
		t.Fatalf("unexpected reply %q", r.Text)
	}
	if remote.calls() != 1 {
		t.Fatalf("expected one remote call, got %d", remote.calls())
	}
	req := remote.requests[0]
	if len(req.Context.History) != HistoryWindow {
		t.Errorf("expected %d history entries, got %d", HistoryWindow, len(req.Context.History))
	}
	if last := req.Context.History[HistoryWindow-1]; last.Text != "رد 3" || last.Sender != models.SenderBot {
		t.Errorf("history should end with the latest prior message, got %+v", last)
	}
	wantStats := models.DailyStats{Steps: 3000, Water: 4, Calories: 650}
	if diff := cmp.Diff(wantStats, req.Context.Stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if req.Context.Profile.Points != 130 {
		t.Errorf("remote should see the credited profile, got points %d", req.Context.Profile.Points)
	}
	if got := promtest.ToFloat64(m.Turns.WithLabelValues(string(dialogue.OutcomeRemote))); got != 1 {
		t.Errorf("remote turns counter = %v, want 1", got)
	}
}

func TestHandleMessage_SmartPreemptsOnboardingAndToggles(t *testing.T) {
	remote := &fakeRemote{result: textResult("لا يفترض")}
	c, st, m := newTestCoach(t, WithRemote(remote))

	r := send(t, c, "new", "يلا")[0]
	if !strings.Contains(r.Text, "رجال ولا بنت") {
		t.Errorf("onboarding should stay local, got %q", r.Text)
	}

	p := onboarded()
	p.IsSmartMode = true
	seed(t, st, "u2", p)
	r = send(t, c, "u2", "طفي الذكاء")[0]
	if r.Patch == nil || r.Patch.IsSmartMode == nil || *r.Patch.IsSmartMode {
		t.Errorf("smart toggle should switch smart mode off, got %+v", r.Patch)
	}
	got, _ := st.LoadProfile(context.Background(), "u2")
	if got.IsSmartMode {
		t.Error("smart mode should be off after the toggle")
	}

	if remote.calls() != 0 {
		t.Errorf("remote must not be called for preempted turns, got %d calls", remote.calls())
	}
	if got := promtest.ToFloat64(m.Turns.WithLabelValues(RoutePreempt)); got != 2 {
		t.Errorf("preempt counter = %v, want 2", got)
	}
}

func TestHandleMessage_SmartFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantText   string
		wantSuffix bool
	}{
		{"missing credential", dialogue.ErrMissingCredential, dialogue.CredentialReply, false},
		{"service down", errors.New("connection refused"), "", true},
		{"timeout", context.DeadlineExceeded, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{err: tt.err}
			c, st, _ := newTestCoach(t, WithRemote(remote))
			p := onboarded()
			p.IsSmartMode = true
			seed(t, st, "u1", p)

			r := send(t, c, "u1", "جدول")[0]
			if tt.wantText != "" && r.Text != tt.wantText {
				t.Errorf("text = %q, want %q", r.Text, tt.wantText)
			}
			if got := strings.HasSuffix(r.Text, dialogue.FallbackSuffix); got != tt.wantSuffix {
				t.Errorf("fallback suffix present = %v, want %v (text %q)", got, tt.wantSuffix, r.Text)
			}
			if tt.wantSuffix && r.Action != models.ActionShowWeeklyPlan {
				t.Errorf("fallback should keep the local action, got %q", r.Action)
			}
		})
	}
}

func TestHandleMessage_LocalWhenSmartOff(t *testing.T) {
	remote := &fakeRemote{result: textResult("remote")}
	c, st, m := newTestCoach(t, WithRemote(remote))
	seed(t, st, "u1", onboarded())

	r := send(t, c, "u1", "مقاضي")[0]
	if r.Action != models.ActionShowGrocery {
		t.Errorf("expected grocery action, got %q", r.Action)
	}
	if remote.calls() != 0 {
		t.Error("remote must not be called with smart mode off")
	}
	if got := promtest.ToFloat64(m.Actions.WithLabelValues(string(models.ActionShowGrocery))); got != 1 {
		t.Errorf("actions counter = %v, want 1", got)
	}
}

func TestHandleMessage_EmptyInput(t *testing.T) {
	c, _, _ := newTestCoach(t)
	if _, err := c.HandleMessage(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestHandleMessage_StorageFailureStillReplies(t *testing.T) {
	c := New(failingStore{store.NewInMemoryStore()}, flow.NewEngine(flow.WithSeed(1)), WithClock(fixedClock))
	r, err := c.HandleMessage(context.Background(), "u1", "يلا")
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if r.Text == "" {
		t.Error("a reply must be produced even when persisting fails")
	}
}

func TestHandleMessage_SerializesTurnsPerUser(t *testing.T) {
	c, st, _ := newTestCoach(t)
	seed(t, st, "u1", onboarded())

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.HandleMessage(context.Background(), "u1", "نصيحة"); err != nil {
				t.Errorf("HandleMessage: %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := st.LoadProfile(context.Background(), "u1")
	if want := onboarded().Points + n*TurnPoints; p.Points != want {
		t.Errorf("lost updates: points = %d, want %d", p.Points, want)
	}
	msgs, _ := st.RecentMessages(context.Background(), "u1", 0)
	if len(msgs) != 2*n {
		t.Errorf("expected %d messages, got %d", 2*n, len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Sender != models.SenderUser || msgs[i+1].Sender != models.SenderBot {
			t.Fatalf("turns interleaved at message %d", i)
		}
	}
	if c.locks.len() != 0 {
		t.Errorf("user locks should be released, %d left", c.locks.len())
	}
}

func TestReset(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()
	seed(t, st, "u1", onboarded())
	send(t, c, "u1", "نصيحة")
	c.LogWater(ctx, "u1", 3)

	r, err := c.Reset(ctx, "u1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.Text != flow.IntroMessage {
		t.Errorf("reset should return the intro, got %q", r.Text)
	}
	if _, err := st.LoadProfile(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("profile should be deleted, got %v", err)
	}
	msgs, _ := c.History(ctx, "u1", 0)
	if len(msgs) != 1 || msgs[0].Text != flow.IntroMessage {
		t.Errorf("history should hold only the intro, got %+v", msgs)
	}
	tr, _ := c.Tracker(ctx, "u1")
	if tr.Water != 0 {
		t.Errorf("tracker should be cleared, got %+v", tr)
	}
	p, _ := c.Profile(ctx, "u1")
	if p.IsOnboarded() || !p.IsSmartMode {
		t.Errorf("reset user should start fresh with smart mode on, got %+v", p)
	}
}

func TestHistory_NewUserSeesIntro(t *testing.T) {
	c, _, _ := newTestCoach(t)
	msgs, err := c.History(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Sender != models.SenderBot || !cmp.Equal(msgs[0].Options, flow.IntroOptions) {
		t.Errorf("unexpected history for a new user: %+v", msgs)
	}
}

func TestUpdateSettings(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()
	seed(t, st, "u1", onboarded())

	p, err := c.UpdateSettings(ctx, "u1", &models.ProfilePatch{Name: models.Ptr("فهد"), IsRamadan: models.Ptr(true), Weight: models.Ptr(68.5)})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if p.Name != "فهد" || !p.IsRamadan || p.Weight != 68.5 || p.Age != 25 {
		t.Errorf("patch not merged: %+v", p)
	}

	_, err = c.UpdateSettings(ctx, "u1", &models.ProfilePatch{Age: models.Ptr(150)})
	if !errors.Is(err, models.ErrAgeOutOfRange) {
		t.Fatalf("expected ErrAgeOutOfRange, got %v", err)
	}
	stored, _ := st.LoadProfile(ctx, "u1")
	if stored.Age != 25 {
		t.Errorf("invalid settings must not be saved, age = %d", stored.Age)
	}
}

func TestUpdateSettings_RefusesProgressFields(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()
	p := onboarded()
	p.Points, p.FoodXP, p.Level = 900, 700, 3
	p.UnlockedMeals = []string{"m1", "m2", "m3"}
	seed(t, st, "u1", p)

	patches := map[string]*models.ProfilePatch{
		"points":   {Points: models.Ptr(0)},
		"foodXp":   {FoodXP: models.Ptr(0), Name: models.Ptr("فهد")},
		"level":    {Level: models.Ptr(9)},
		"unlocked": {UnlockedMeals: &[]string{}},
	}
	for name, patch := range patches {
		if _, err := c.UpdateSettings(ctx, "u1", patch); !errors.Is(err, models.ErrProgressReadOnly) {
			t.Errorf("%s: expected ErrProgressReadOnly, got %v", name, err)
		}
	}
	stored, _ := st.LoadProfile(ctx, "u1")
	if diff := cmp.Diff(p, stored); diff != "" {
		t.Errorf("profile changed (-want +got):\n%s", diff)
	}
}

func TestUpdateSettings_OnboardingOrder(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()

	if _, err := c.UpdateSettings(ctx, "u2", &models.ProfilePatch{Weight: models.Ptr(80.0)}); !errors.Is(err, models.ErrOnboardingOrder) {
		t.Fatalf("weight before gender: expected ErrOnboardingOrder, got %v", err)
	}
	if _, err := st.LoadProfile(ctx, "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected patch must not create a profile, got %v", err)
	}

	p, err := c.UpdateSettings(ctx, "u2", &models.ProfilePatch{Gender: models.Ptr(models.GenderFemale), Age: models.Ptr(30), Name: models.Ptr("سارة")})
	if err != nil {
		t.Fatalf("in-order fields: %v", err)
	}
	if next, _ := p.NextOnboardingField(); next != models.FieldHeight {
		t.Errorf("next field = %q, want height", next)
	}

	seed(t, st, "u1", onboarded())
	if _, err := c.UpdateSettings(ctx, "u1", &models.ProfilePatch{Age: models.Ptr(0)}); !errors.Is(err, models.ErrOnboardingOrder) {
		t.Errorf("clearing age: expected ErrOnboardingOrder, got %v", err)
	}
}

func TestCaloriesToday_UsesClockLocation(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, riyadh)
	c, _, _ := newTestCoach(t, WithClock(func() time.Time { return now }))

	p := onboarded()
	p.LoggedMeals = []models.LoggedMeal{
		{Name: "كبسة", Calories: 650, Timestamp: time.Date(2025, 3, 9, 22, 30, 0, 0, time.UTC)},
		{Name: "شاورما", Calories: 400, Timestamp: time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)},
	}
	if got := c.caloriesToday(p); got != 650 {
		t.Errorf("caloriesToday = %d, want 650 (01:30 local counts, 23:00 the day before does not)", got)
	}
}

func TestToggleTag(t *testing.T) {
	c, _, _ := newTestCoach(t)
	ctx := context.Background()

	p, err := c.ToggleTag(ctx, "u1", models.TagInjury, "ركبة")
	if err != nil || !cmp.Equal(p.Injuries, []string{"ركبة"}) {
		t.Fatalf("add injury: %v %v", p.Injuries, err)
	}
	p, err = c.ToggleTag(ctx, "u1", models.TagInjury, "ركبة")
	if err != nil || len(p.Injuries) != 0 {
		t.Fatalf("remove injury: %v %v", p.Injuries, err)
	}
	if _, err := c.ToggleTag(ctx, "u1", "hobby", "قراءة"); !errors.Is(err, models.ErrUnknownTagKind) {
		t.Errorf("expected ErrUnknownTagKind, got %v", err)
	}
	if _, err := c.ToggleTag(ctx, "u1", models.TagAllergy, " "); err == nil {
		t.Error("expected error for empty tag")
	}
}

func TestLogMeal(t *testing.T) {
	c, st, m := newTestCoach(t)
	ctx := context.Background()
	seed(t, st, "u1", onboarded())

	meal := models.LoggedMeal{Name: "كبسة دجاج", Calories: 650, Protein: 35, Carbs: 80, Fats: 21}
	res, err := c.LogMeal(ctx, "u1", meal, 1.5)
	if err != nil {
		t.Fatalf("LogMeal: %v", err)
	}
	if res.Meal.Calories != 975 || res.Meal.Protein != 53 || res.Meal.Carbs != 120 || res.Meal.Fats != 32 {
		t.Errorf("portion scaling wrong: %+v", res.Meal)
	}
	if res.Meal.ID == "" || !res.Meal.Timestamp.Equal(fixedNow) {
		t.Errorf("meal should get an ID and timestamp: %+v", res.Meal)
	}
	if res.Points != 170 || res.FoodXP != 140 || res.Level != 2 {
		t.Errorf("rewards: points=%d foodXp=%d level=%d", res.Points, res.FoodXP, res.Level)
	}
	if res.Message.Text != "عافية! 😋 سجلت لك **كبسة دجاج** (975 سعرة)." {
		t.Errorf("unexpected confirmation %q", res.Message.Text)
	}

	p, _ := st.LoadProfile(ctx, "u1")
	if len(p.LoggedMeals) != 1 || p.LoggedMeals[0].Calories != 975 {
		t.Errorf("meal not stored: %+v", p.LoggedMeals)
	}
	msgs, _ := st.RecentMessages(ctx, "u1", 1)
	if len(msgs) != 1 || msgs[0].Text != res.Message.Text {
		t.Errorf("confirmation not in history: %+v", msgs)
	}
	if got := promtest.ToFloat64(m.MealsLogged); got != 1 {
		t.Errorf("meals counter = %v, want 1", got)
	}

	if _, err := c.LogMeal(ctx, "u1", models.LoggedMeal{}, 1); err == nil {
		t.Error("expected error for a meal without a name")
	}
}

func TestUnlockRewards(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()
	p := onboarded()
	p.FoodXP = 320
	p.UnlockedMeals = []string{"kitkat"}
	seed(t, st, "u1", p)

	ids, err := c.UnlockRewards(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(ids, []string{"pizza"}) {
		t.Errorf("newly unlocked = %v, want [pizza]", ids)
	}
	again, _ := c.UnlockRewards(ctx, "u1")
	if len(again) != 0 {
		t.Errorf("second unlock should add nothing, got %v", again)
	}
	stored, _ := st.LoadProfile(ctx, "u1")
	if !cmp.Equal(stored.UnlockedMeals, []string{"kitkat", "pizza"}) {
		t.Errorf("unlocked meals = %v", stored.UnlockedMeals)
	}
}

func TestTracker(t *testing.T) {
	now := fixedNow
	c, _, _ := newTestCoach(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	tr, _ := c.LogWater(ctx, "u1", 3)
	if tr.Water != 3 || tr.Date != "2026-03-01" {
		t.Errorf("after 3 cups: %+v", tr)
	}
	tr, _ = c.LogWater(ctx, "u1", 50)
	if tr.Water != 20 {
		t.Errorf("water should clamp at 20, got %d", tr.Water)
	}
	tr, _ = c.LogWater(ctx, "u1", -100)
	if tr.Water != 0 {
		t.Errorf("water should clamp at 0, got %d", tr.Water)
	}
	tr, _ = c.LogSteps(ctx, "u1", 25000)
	if tr.Steps != 20000 {
		t.Errorf("steps should clamp at 20000, got %d", tr.Steps)
	}

	now = fixedNow.Add(24 * time.Hour)
	tr, _ = c.Tracker(ctx, "u1")
	if tr.Steps != 0 || tr.Water != 0 || tr.Date != "2026-03-02" {
		t.Errorf("tracker should reset on a new day, got %+v", tr)
	}
	tr, _ = c.LogSteps(ctx, "u1", 500)
	if tr.Steps != 500 {
		t.Errorf("new day steps = %d, want 500", tr.Steps)
	}
}

func TestPanel(t *testing.T) {
	c, st, _ := newTestCoach(t)
	ctx := context.Background()
	p := onboarded()
	p.FoodXP = 150
	seed(t, st, "u1", p)

	for _, action := range []models.Action{
		models.ActionShowGrocery, models.ActionShowWeeklyPlan, models.ActionShowInsights,
		models.ActionShowFoodRewards, models.ActionShowGamification, models.ActionShowTracker,
		models.ActionShowMealScanner, models.ActionChangeTone, models.ActionShowProModal,
	} {
		data, err := c.Panel(ctx, "u1", action)
		if err != nil || data == nil {
			t.Errorf("Panel(%s) = %v, %v", action, data, err)
		}
	}

	data, _ := c.Panel(ctx, "u1", models.ActionShowFoodRewards)
	rewards := data.(RewardsPanel)
	if rewards.Next == nil || rewards.Next.ID != "pizza" || rewards.Remaining != 150 {
		t.Errorf("unexpected reward progress: %+v", rewards)
	}
	data, _ = c.Panel(ctx, "u1", models.ActionShowGamification)
	if g := data.(GamificationPanel); g.Level != 2 || g.NextLevelAt != 200 {
		t.Errorf("unexpected gamification panel: %+v", g)
	}

	for _, action := range []models.Action{models.ActionCheckIn, models.ActionSaveProfile, "bogus"} {
		if _, err := c.Panel(ctx, "u1", action); !errors.Is(err, ErrNoPanel) {
			t.Errorf("Panel(%s) error = %v, want ErrNoPanel", action, err)
		}
	}
}

func TestAnalyzeMeal(t *testing.T) {
	c, _, _ := newTestCoach(t)
	if _, err := c.AnalyzeMeal(context.Background(), []byte("x"), "image/png"); !errors.Is(err, ErrNoAnalyzer) {
		t.Errorf("expected ErrNoAnalyzer, got %v", err)
	}

	c, _, _ = newTestCoach(t, WithAnalyzer(mealscan.NewSampleAnalyzer(1)))
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	meal, err := c.AnalyzeMeal(context.Background(), png, "image/png")
	if err != nil {
		t.Fatalf("AnalyzeMeal: %v", err)
	}
	if meal.Name == "" || meal.Calories <= 0 {
		t.Errorf("unexpected meal %+v", meal)
	}
}
