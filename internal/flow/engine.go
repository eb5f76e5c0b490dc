// Package flow implements the local dialogue engine: input normalization, the onboarding
// state machine, and the ordered intent rules that turn one user message into one reply.
package flow

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/tone"
)

// Responder produces a reply for one user turn.
type Responder interface {
	Respond(input string, profile models.UserProfile) models.Reply
}

// Opts holds configuration for the Engine.
type Opts struct {
	Seed  uint64
	Rand  tone.Rand
	Rules []Rule
}

// Option configures the Engine.
type Option func(*Opts)

// WithSeed makes copy selection deterministic.
func WithSeed(seed uint64) Option {
	return func(o *Opts) { o.Seed = seed }
}

// WithRand injects a custom random source. It takes precedence over WithSeed.
func WithRand(r tone.Rand) Option {
	return func(o *Opts) { o.Rand = r }
}

// WithRules replaces the default rule list. Rules must be sorted by Group.
func WithRules(rules []Rule) Option {
	return func(o *Opts) { o.Rules = rules }
}

// Engine resolves user input against the ordered rules. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	rand  tone.Rand
	rules []Rule
}

// NewEngine creates an Engine. Without a seed the random source is seeded from the clock.
func NewEngine(opts ...Option) *Engine {
	cfg := Opts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := cfg.Rand
	if r == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		r = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rand: r, rules: rules}
}

// Respond returns the reply of the first rule matching the input.
func (e *Engine) Respond(input string, profile models.UserProfile) models.Reply {
	reply, _ := e.resolve(input, profile, GroupFallback)
	return reply
}

// Preempt resolves the turn only if onboarding is pending or a mode toggle matches.
// Those turns stay local even when a remote responder is configured.
func (e *Engine) Preempt(input string, profile models.UserProfile) (models.Reply, bool) {
	return e.resolve(input, profile, GroupToggle)
}

// Intro returns the greeting shown to new or reset users.
func (e *Engine) Intro() models.Reply {
	return models.Reply{Text: IntroMessage, Options: append([]string(nil), IntroOptions...)}
}

// resolve evaluates rules whose group is at most maxGroup.
func (e *Engine) resolve(input string, profile models.UserProfile, maxGroup Group) (models.Reply, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := Turn{Input: Normalize(input), Profile: profile, rand: e.rand}
	for _, r := range e.rules {
		if r.Group > maxGroup {
			break
		}
		if !r.Match(t) {
			continue
		}
		reply := r.Handle(t)
		slog.Debug("Engine.resolve: rule matched", "rule", r.Name, "action", reply.Action, "patch", !reply.Patch.IsEmpty())
		return reply, true
	}
	if maxGroup == GroupFallback {
		return fallback(t), true
	}
	return models.Reply{}, false
}
