// Package models defines the core data structures for SehaCoach.
//
// It includes the user profile, the profile patch emitted by the dialogue engine,
// the reply shape shared by the local engine and the remote dialogue service, and
// the JSON envelope used by the HTTP API.
package models

import (
	"errors"
	"fmt"
	"slices"
)

// Gender of the user, used by the calorie formula.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Goal is the user's body-composition goal.
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
)

// ActivityLevel describes how much the user moves on a typical day.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// CoachTone selects the coach's register.
type CoachTone string

const (
	ToneKind     CoachTone = "kind"
	ToneBalanced CoachTone = "balanced"
	ToneStrict   CoachTone = "strict"
)

// DefaultTone is used whenever the profile has no tone yet.
const DefaultTone = ToneBalanced

// PlaceholderName is used in copy when the user has not given a name.
const PlaceholderName = "بطل"

// Exclusive numeric ranges accepted during onboarding.
const (
	MinAge    = 10
	MaxAge    = 100
	MinHeight = 50
	MaxHeight = 250
	MinWeight = 20
	MaxWeight = 300
)

// Error variables for profile validation.
var (
	ErrInvalidGender    = errors.New("invalid gender")
	ErrInvalidGoal      = errors.New("invalid goal")
	ErrInvalidActivity  = errors.New("invalid activity level")
	ErrInvalidTone      = errors.New("invalid coach tone")
	ErrAgeOutOfRange    = errors.New("age out of range")
	ErrHeightOutOfRng   = errors.New("height out of range")
	ErrWeightOutOfRng   = errors.New("weight out of range")
	ErrNegativeCounter  = errors.New("counters cannot be negative")
	ErrProgressReadOnly = errors.New("points, level, foodXp and unlockedMeals are earned, not edited")
	ErrOnboardingOrder  = errors.New("onboarding fields must be answered in order")
)

// IsValid reports whether g is a known gender.
func (g Gender) IsValid() bool { return g == GenderMale || g == GenderFemale }

// IsValid reports whether g is a known goal.
func (g Goal) IsValid() bool {
	switch g {
	case GoalWeightLoss, GoalMuscleGain, GoalMaintenance:
		return true
	}
	return false
}

// IsValid reports whether a is a known activity level.
func (a ActivityLevel) IsValid() bool {
	switch a {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
		return true
	}
	return false
}

// IsValid reports whether t is a known coach tone.
func (t CoachTone) IsValid() bool {
	switch t {
	case ToneKind, ToneBalanced, ToneStrict:
		return true
	}
	return false
}

// ProfileField names one of the fields collected during onboarding.
type ProfileField string

const (
	FieldGender        ProfileField = "gender"
	FieldAge           ProfileField = "age"
	FieldHeight        ProfileField = "height"
	FieldWeight        ProfileField = "weight"
	FieldGoal          ProfileField = "goal"
	FieldActivityLevel ProfileField = "activityLevel"
	FieldCoachTone     ProfileField = "coachTone"
)

// OnboardingFields is the fixed order in which required fields are collected.
var OnboardingFields = []ProfileField{
	FieldGender, FieldAge, FieldHeight, FieldWeight, FieldGoal, FieldActivityLevel, FieldCoachTone,
}

// UserProfile is the single record describing a user. The zero value of a field means unset.
type UserProfile struct {
	Name              string        `json:"name,omitempty" yaml:"name,omitempty"`
	Gender            Gender        `json:"gender,omitempty" yaml:"gender,omitempty"`
	Age               int           `json:"age,omitempty" yaml:"age,omitempty"`
	Height            float64       `json:"height,omitempty" yaml:"height,omitempty"`
	Weight            float64       `json:"weight,omitempty" yaml:"weight,omitempty"`
	Goal              Goal          `json:"goal,omitempty" yaml:"goal,omitempty"`
	ActivityLevel     ActivityLevel `json:"activityLevel,omitempty" yaml:"activityLevel,omitempty"`
	CoachTone         CoachTone     `json:"coachTone,omitempty" yaml:"coachTone,omitempty"`
	IsRamadan         bool          `json:"isRamadan" yaml:"isRamadan"`
	IsPro             bool          `json:"isPro" yaml:"isPro"`
	IsVoiceEnabled    bool          `json:"isVoiceEnabled" yaml:"isVoiceEnabled"`
	IsSmartMode       bool          `json:"isSmartMode" yaml:"isSmartMode"`
	Points            int           `json:"points" yaml:"points"`
	Level             int           `json:"level" yaml:"level"`
	FoodXP            int           `json:"foodXp" yaml:"foodXp"`
	UnlockedMeals     []string      `json:"unlockedMeals,omitempty" yaml:"unlockedMeals,omitempty"`
	LoggedMeals       []LoggedMeal  `json:"loggedMeals,omitempty" yaml:"loggedMeals,omitempty"`
	Injuries          []string      `json:"injuries,omitempty" yaml:"injuries,omitempty"`
	MedicalConditions []string      `json:"medicalConditions,omitempty" yaml:"medicalConditions,omitempty"`
	Allergies         []string      `json:"allergies,omitempty" yaml:"allergies,omitempty"`
}

// NewUserProfile returns the profile a first-time user starts with.
func NewUserProfile() UserProfile {
	return UserProfile{IsSmartMode: true}
}

// IsSet reports whether the given onboarding field has a value.
func (p UserProfile) IsSet(f ProfileField) bool {
	switch f {
	case FieldGender:
		return p.Gender != ""
	case FieldAge:
		return p.Age != 0
	case FieldHeight:
		return p.Height != 0
	case FieldWeight:
		return p.Weight != 0
	case FieldGoal:
		return p.Goal != ""
	case FieldActivityLevel:
		return p.ActivityLevel != ""
	case FieldCoachTone:
		return p.CoachTone != ""
	}
	return false
}

// NextOnboardingField returns the first unset required field, or false when onboarded.
func (p UserProfile) NextOnboardingField() (ProfileField, bool) {
	for _, f := range OnboardingFields {
		if !p.IsSet(f) {
			return f, true
		}
	}
	return "", false
}

// IsOnboarded reports whether every required field is set.
func (p UserProfile) IsOnboarded() bool {
	_, pending := p.NextOnboardingField()
	return !pending
}

// EffectiveTone returns the coach tone, defaulting to balanced.
func (p UserProfile) EffectiveTone() CoachTone {
	if p.CoachTone == "" {
		return DefaultTone
	}
	return p.CoachTone
}

// DisplayName returns the user's name or the placeholder.
func (p UserProfile) DisplayName() string {
	if p.Name == "" {
		return PlaceholderName
	}
	return p.Name
}

// Validate checks every set field against its allowed values.
func (p UserProfile) Validate() error {
	if p.Gender != "" && !p.Gender.IsValid() {
		return ErrInvalidGender
	}
	if p.Age != 0 && (p.Age <= MinAge || p.Age >= MaxAge) {
		return ErrAgeOutOfRange
	}
	if p.Height != 0 && (p.Height <= MinHeight || p.Height >= MaxHeight) {
		return ErrHeightOutOfRng
	}
	if p.Weight != 0 && (p.Weight <= MinWeight || p.Weight >= MaxWeight) {
		return ErrWeightOutOfRng
	}
	if p.Goal != "" && !p.Goal.IsValid() {
		return ErrInvalidGoal
	}
	if p.ActivityLevel != "" && !p.ActivityLevel.IsValid() {
		return ErrInvalidActivity
	}
	if p.CoachTone != "" && !p.CoachTone.IsValid() {
		return ErrInvalidTone
	}
	if p.Points < 0 || p.FoodXP < 0 || p.Level < 0 {
		return ErrNegativeCounter
	}
	return nil
}

// Clone returns a deep copy so callers can mutate slices without aliasing.
func (p UserProfile) Clone() UserProfile {
	c := p
	c.UnlockedMeals = slices.Clone(p.UnlockedMeals)
	c.LoggedMeals = slices.Clone(p.LoggedMeals)
	c.Injuries = slices.Clone(p.Injuries)
	c.MedicalConditions = slices.Clone(p.MedicalConditions)
	c.Allergies = slices.Clone(p.Allergies)
	return c
}

// ProfilePatch lists fields to overwrite on a profile. Nil fields are left untouched.
type ProfilePatch struct {
	Name              *string        `json:"name,omitempty"`
	Gender            *Gender        `json:"gender,omitempty"`
	Age               *int           `json:"age,omitempty"`
	Height            *float64       `json:"height,omitempty"`
	Weight            *float64       `json:"weight,omitempty"`
	Goal              *Goal          `json:"goal,omitempty"`
	ActivityLevel     *ActivityLevel `json:"activityLevel,omitempty"`
	CoachTone         *CoachTone     `json:"coachTone,omitempty"`
	IsRamadan         *bool          `json:"isRamadan,omitempty"`
	IsPro             *bool          `json:"isPro,omitempty"`
	IsVoiceEnabled    *bool          `json:"isVoiceEnabled,omitempty"`
	IsSmartMode       *bool          `json:"isSmartMode,omitempty"`
	Points            *int           `json:"points,omitempty"`
	Level             *int           `json:"level,omitempty"`
	FoodXP            *int           `json:"foodXp,omitempty"`
	UnlockedMeals     *[]string      `json:"unlockedMeals,omitempty"`
	Injuries          *[]string      `json:"injuries,omitempty"`
	MedicalConditions *[]string      `json:"medicalConditions,omitempty"`
	Allergies         *[]string      `json:"allergies,omitempty"`
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

// IsEmpty reports whether the patch carries no fields.
func (pp *ProfilePatch) IsEmpty() bool {
	return pp == nil || *pp == ProfilePatch{}
}

// Apply returns a copy of p with every present patch field overwritten.
func (p UserProfile) Apply(pp *ProfilePatch) UserProfile {
	out := p.Clone()
	if pp == nil {
		return out
	}
	setIf(&out.Name, pp.Name)
	setIf(&out.Gender, pp.Gender)
	setIf(&out.Age, pp.Age)
	setIf(&out.Height, pp.Height)
	setIf(&out.Weight, pp.Weight)
	setIf(&out.Goal, pp.Goal)
	setIf(&out.ActivityLevel, pp.ActivityLevel)
	setIf(&out.CoachTone, pp.CoachTone)
	setIf(&out.IsRamadan, pp.IsRamadan)
	setIf(&out.IsPro, pp.IsPro)
	setIf(&out.IsVoiceEnabled, pp.IsVoiceEnabled)
	setIf(&out.IsSmartMode, pp.IsSmartMode)
	setIf(&out.Points, pp.Points)
	setIf(&out.Level, pp.Level)
	setIf(&out.FoodXP, pp.FoodXP)
	if pp.UnlockedMeals != nil {
		out.UnlockedMeals = slices.Clone(*pp.UnlockedMeals)
	}
	if pp.Injuries != nil {
		out.Injuries = slices.Clone(*pp.Injuries)
	}
	if pp.MedicalConditions != nil {
		out.MedicalConditions = slices.Clone(*pp.MedicalConditions)
	}
	if pp.Allergies != nil {
		out.Allergies = slices.Clone(*pp.Allergies)
	}
	return out
}

// TouchesProgress reports whether the patch sets counters or unlocks, which only the
// coach awards.
func (pp *ProfilePatch) TouchesProgress() bool {
	return pp != nil && (pp.Points != nil || pp.Level != nil || pp.FoodXP != nil || pp.UnlockedMeals != nil)
}

// Sets reports whether the patch carries a value for the onboarding field f.
func (pp *ProfilePatch) Sets(f ProfileField) bool {
	if pp == nil {
		return false
	}
	switch f {
	case FieldGender:
		return pp.Gender != nil
	case FieldAge:
		return pp.Age != nil
	case FieldHeight:
		return pp.Height != nil
	case FieldWeight:
		return pp.Weight != nil
	case FieldGoal:
		return pp.Goal != nil
	case FieldActivityLevel:
		return pp.ActivityLevel != nil
	case FieldCoachTone:
		return pp.CoachTone != nil
	}
	return false
}

// CheckOnboardingOrder verifies p, the result of applying pp, still fills required fields
// in order: every field pp sets must be set in p along with all fields before it.
func (p UserProfile) CheckOnboardingOrder(pp *ProfilePatch) error {
	for i, f := range OnboardingFields {
		if !pp.Sets(f) {
			continue
		}
		for _, prev := range OnboardingFields[:i+1] {
			if !p.IsSet(prev) {
				return fmt.Errorf("%w: %s needs %s first", ErrOnboardingOrder, f, prev)
			}
		}
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// TagKind names one of the toggleable tag sets on a profile.
type TagKind string

const (
	TagInjury           TagKind = "injury"
	TagMedicalCondition TagKind = "medical_condition"
	TagAllergy          TagKind = "allergy"
)

// ErrUnknownTagKind is returned for a tag kind outside the known set.
var ErrUnknownTagKind = errors.New("unknown tag kind")

// ToggleTag adds tag to the set named by kind, or removes it if present.
func (p UserProfile) ToggleTag(kind TagKind, tag string) (UserProfile, error) {
	out := p.Clone()
	var set *[]string
	switch kind {
	case TagInjury:
		set = &out.Injuries
	case TagMedicalCondition:
		set = &out.MedicalConditions
	case TagAllergy:
		set = &out.Allergies
	default:
		return p, ErrUnknownTagKind
	}
	if i := slices.Index(*set, tag); i >= 0 {
		*set = slices.Delete(*set, i, i+1)
	} else {
		*set = append(*set, tag)
	}
	return out, nil
}
