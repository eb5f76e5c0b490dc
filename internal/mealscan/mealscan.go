// Package mealscan estimates the nutrition of a meal photo.
package mealscan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/SehaCoach/internal/genai"
	"github.com/BTreeMap/SehaCoach/internal/models"
)

// MaxImageBytes bounds the photo size accepted for analysis.
const MaxImageBytes = 8 << 20

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrUnreadableResult = errors.New("could not read nutrition estimate")
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Analyzer turns a meal photo into a logged meal with portion 1.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (models.LoggedMeal, error)
}

// New returns a VisionAnalyzer when a GenAI client is available, otherwise a SampleAnalyzer.
func New(client *genai.Client, seed uint64) Analyzer {
	if client != nil {
		return NewVisionAnalyzer(client)
	}
	slog.Info("mealscan.New: no OpenAI key, using sample analyzer")
	return NewSampleAnalyzer(seed)
}

// checkImage validates the payload and resolves its MIME type.
func checkImage(image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	if len(image) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")
	if !supportedTypes[mimeType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	return mimeType, nil
}

// visionGenerator is the subset of genai.Client the vision analyzer needs.
type visionGenerator interface {
	GenerateVision(ctx context.Context, systemPrompt, userPrompt, imageURL string) (string, error)
}

// VisionAnalyzer asks an OpenAI vision model for a nutrition estimate.
type VisionAnalyzer struct {
	gen visionGenerator
	now func() time.Time
}

// NewVisionAnalyzer creates a VisionAnalyzer.
func NewVisionAnalyzer(client *genai.Client) *VisionAnalyzer {
	return &VisionAnalyzer{gen: client, now: time.Now}
}

// visionResult is the JSON object the model is asked to return.
type visionResult struct {
	Name       string  `json:"name"`
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fats       float64 `json:"fats"`
	IsSaudi    bool    `json:"isSaudi"`
	Confidence float64 `json:"confidence"`
	HealthTip  string  `json:"healthTip"`
}

// Analyze sends the image as a data URL.
func (v *VisionAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (models.LoggedMeal, error) {
	mimeType, err := checkImage(image, mimeType)
	if err != nil {
		return models.LoggedMeal{}, err
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	out, err := v.gen.GenerateVision(ctx, genai.VisionNutritionPrompt, "حلل الوجبة اللي بالصورة.", dataURL)
	if err != nil {
		return models.LoggedMeal{}, fmt.Errorf("vision analysis failed: %w", err)
	}

	var res visionResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return models.LoggedMeal{}, fmt.Errorf("%w: %v", ErrUnreadableResult, err)
	}
	if res.Name == "" || res.Calories < 0 || res.Protein < 0 || res.Carbs < 0 || res.Fats < 0 {
		return models.LoggedMeal{}, fmt.Errorf("%w: %q with %v kcal", ErrUnreadableResult, res.Name, res.Calories)
	}
	slog.Debug("VisionAnalyzer.Analyze: meal recognized", "name", res.Name, "calories", res.Calories, "isSaudi", res.IsSaudi)
	return models.LoggedMeal{
		ID:         uuid.NewString(),
		Name:       res.Name,
		Calories:   int(math.Round(res.Calories)),
		Protein:    int(math.Round(res.Protein)),
		Carbs:      int(math.Round(res.Carbs)),
		Fats:       int(math.Round(res.Fats)),
		Timestamp:  v.now(),
		Confidence: math.Max(0, math.Min(1, res.Confidence)),
		IsSaudi:    res.IsSaudi,
		HealthTip:  res.HealthTip,
		Portion:    1,
	}, nil
}

// SaudiShare is the probability that the sample analyzer picks a Saudi dish.
const SaudiShare = 0.6

// SaudiSamples and GenericSamples are the offline recognition pools.
var (
	SaudiSamples = []models.LoggedMeal{
		{Name: "كبسة دجاج (صدر)", Calories: 550, Protein: 45, Carbs: 60, Fats: 12, Confidence: 0.94, IsSaudi: true, HealthTip: "نصيحة الكوتش: شيل الجلد وكل معها سلطة عشان تشبع، ولا تكثر رز!"},
		{Name: "شاورما صاروخ", Calories: 480, Protein: 30, Carbs: 45, Fats: 20, Confidence: 0.88, IsSaudi: true, HealthTip: "نصيحة الكوتش: المايونيز مصيبة، خففه أو اطلبها بدونه المرة الجاية."},
		{Name: "مرقوق لحم", Calories: 420, Protein: 25, Carbs: 50, Fats: 15, Confidence: 0.91, IsSaudi: true, HealthTip: "نصيحة الكوتش: المرقوق بالبر ممتاز، بس انتبه من كمية اللحم المدهن."},
		{Name: "سمبوسة فرن", Calories: 270, Protein: 12, Carbs: 30, Fats: 10, Confidence: 0.96, IsSaudi: true, HealthTip: "نصيحة الكوتش: بالفرن يا بطل! المقلي خله للعدو."},
		{Name: "تمر وقهوة", Calories: 150, Protein: 2, Carbs: 35, Fats: 0, Confidence: 0.85, IsSaudi: true, HealthTip: "نصيحة الكوتش: 3-5 تمرات كافية، لا تخلص السكرية كلها!"},
	}
	GenericSamples = []models.LoggedMeal{
		{Name: "سلطة دجاج", Calories: 320, Protein: 35, Carbs: 12, Fats: 15, Confidence: 0.98, HealthTip: "خيارك ممتاز، استمر!"},
		{Name: "برقر لحم", Calories: 650, Protein: 30, Carbs: 45, Fats: 35, Confidence: 0.92, HealthTip: "اطلبها بدون جبن وبطاطس المرة الجاية، وفر سعراتك."},
	}
)

// SampleAnalyzer returns a plausible meal without looking at the image. It stands in for
// the vision model when no API key is configured.
type SampleAnalyzer struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewSampleAnalyzer creates a SampleAnalyzer. A zero seed uses the clock.
func NewSampleAnalyzer(seed uint64) *SampleAnalyzer {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SampleAnalyzer{rand: rand.New(rand.NewPCG(seed, seed>>1|1)), now: time.Now}
}

// Analyze picks from the Saudi pool with probability SaudiShare.
func (s *SampleAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (models.LoggedMeal, error) {
	if _, err := checkImage(image, mimeType); err != nil {
		return models.LoggedMeal{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.LoggedMeal{}, err
	}
	s.mu.Lock()
	pool := GenericSamples
	if s.rand.Float64() < SaudiShare {
		pool = SaudiSamples
	}
	meal := pool[s.rand.IntN(len(pool))]
	s.mu.Unlock()

	meal.ID = uuid.NewString()
	meal.Timestamp = s.now()
	meal.Portion = 1
	return meal, nil
}
