package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/SehaCoach/internal/coach"
	"github.com/BTreeMap/SehaCoach/internal/dialogue"
	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/genai"
	"github.com/BTreeMap/SehaCoach/internal/mealscan"
	"github.com/BTreeMap/SehaCoach/internal/models"
)

// Error bodies shared with the dialogue client.
const (
	missingKeyCode    = "MISSING_API_KEY"
	missingKeyMessage = "يحتاج مفتاح API لتفعيل الذكاء"
	chatFailedMessage = "صار خطأ بسيط، حاول مرة ثانية"
)

// chatHandler answers one smart-mode turn. The response body is the bare DialogueResult.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DialogueRequest
	if !decodeJSON(w, r, "Server.chatHandler", &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		slog.Warn("Server.chatHandler: empty message")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message is required"))
		return
	}

	remote, err := s.remoteFor(r)
	if err != nil {
		slog.Warn("Server.chatHandler: no dialogue backend", "error", err)
		writeJSONResponse(w, http.StatusUnauthorized, models.ErrorWithCode(missingKeyCode, missingKeyMessage))
		return
	}

	result, err := remote.Chat(r.Context(), req)
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) || errors.Is(err, dialogue.ErrMissingCredential) {
			slog.Warn("Server.chatHandler: missing API key")
			writeJSONResponse(w, http.StatusUnauthorized, models.ErrorWithCode(missingKeyCode, missingKeyMessage))
			return
		}
		slog.Error("Server.chatHandler: dialogue failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(chatFailedMessage))
		return
	}
	slog.Debug("Server.chatHandler: answered", "type", result.Type)
	writeJSONResponse(w, http.StatusOK, result)
}

// remoteFor prefers a key supplied with the request over the server's own backend.
func (s *Server) remoteFor(r *http.Request) (dialogue.Remote, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		opts := append(append([]genai.Option{}, s.genOpts...), genai.WithAPIKey(key))
		client, err := genai.NewClient(opts...)
		if err != nil {
			return nil, err
		}
		return genai.NewDialogueService(client), nil
	}
	if s.dialogue == nil {
		return nil, genai.ErrMissingAPIKey
	}
	return s.dialogue, nil
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// sendMessageResponse carries the reply plus the text a plain-text transport would send.
type sendMessageResponse struct {
	Reply    models.Reply `json:"reply"`
	Rendered string       `json:"rendered"`
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var req sendMessageRequest
	if !decodeJSON(w, r, "Server.sendMessageHandler", &req) {
		return
	}
	reply, err := s.coach.HandleMessage(r.Context(), userID, req.Text)
	if errors.Is(err, coach.ErrEmptyMessage) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message text is required"))
		return
	}
	if err != nil {
		// The turn still produced a reply; only persistence failed.
		slog.Warn("Server.sendMessageHandler: turn completed with error", "userID", userID, "error", err)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sendMessageResponse{Reply: reply, Rendered: flow.FormatReply(reply)}))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	msgs, err := s.coach.History(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Server.historyHandler: failed to load history", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load history"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	p, err := s.coach.Profile(r.Context(), userID)
	if err != nil {
		slog.Error("Server.profileHandler: failed to load profile", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profile"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(p))
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var patch models.ProfilePatch
	if !decodeJSON(w, r, "Server.updateProfileHandler", &patch) {
		return
	}
	if patch.IsEmpty() {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("No profile fields given"))
		return
	}
	p, err := s.coach.UpdateSettings(r.Context(), userID, &patch)
	if err != nil {
		if isValidationError(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.updateProfileHandler: failed to update profile", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update profile"))
		return
	}
	slog.Info("Server.updateProfileHandler: profile updated", "userID", userID)
	writeJSONResponse(w, http.StatusOK, models.Success(p))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	intro, err := s.coach.Reset(r.Context(), userID)
	if err != nil {
		slog.Error("Server.resetHandler: reset failed", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset user"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("User reset", intro))
}

type toggleTagRequest struct {
	Kind models.TagKind `json:"kind"`
	Tag  string         `json:"tag"`
}

func (s *Server) toggleTagHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var req toggleTagRequest
	if !decodeJSON(w, r, "Server.toggleTagHandler", &req) {
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: tag"))
		return
	}
	p, err := s.coach.ToggleTag(r.Context(), userID, req.Kind, req.Tag)
	if err != nil {
		if errors.Is(err, models.ErrUnknownTagKind) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.toggleTagHandler: failed to toggle tag", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update profile"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(p))
}

type logMealRequest struct {
	Meal    models.LoggedMeal `json:"meal"`
	Portion float64           `json:"portion"`
}

// logMealHandler logs a meal given either as JSON or as a multipart photo to analyze first.
func (s *Server) logMealHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var (
		meal    models.LoggedMeal
		portion float64
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var ok bool
		meal, portion, ok = s.analyzeUpload(w, r)
		if !ok {
			return
		}
	} else {
		var req logMealRequest
		if !decodeJSON(w, r, "Server.logMealHandler", &req) {
			return
		}
		if strings.TrimSpace(req.Meal.Name) == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: meal.name"))
			return
		}
		meal, portion = req.Meal, req.Portion
	}
	if portion <= 0 {
		portion = 1
	}

	logged, err := s.coach.LogMeal(r.Context(), userID, meal, portion)
	if err != nil {
		slog.Error("Server.logMealHandler: failed to log meal", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to log meal"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Recorded(logged))
}

// analyzeUpload reads the "image" part and runs the analyzer. It writes the error response
// itself and reports whether the caller should continue.
func (s *Server) analyzeUpload(w http.ResponseWriter, r *http.Request) (models.LoggedMeal, float64, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, mealscan.MaxImageBytes+MaxJSONBodyBytes)
	if err := r.ParseMultipartForm(mealscan.MaxImageBytes); err != nil {
		slog.Warn("Server.logMealHandler: invalid upload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart upload"))
		return models.LoggedMeal{}, 0, false
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: image"))
		return models.LoggedMeal{}, 0, false
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		slog.Warn("Server.logMealHandler: failed to read upload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read image"))
		return models.LoggedMeal{}, 0, false
	}

	portion := 1.0
	if raw := r.FormValue("portion"); raw != "" {
		portion, err = strconv.ParseFloat(raw, 64)
		if err != nil || portion <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("portion must be a positive number"))
			return models.LoggedMeal{}, 0, false
		}
	}

	// Generic uploads fall back to content sniffing.
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	meal, err := s.coach.AnalyzeMeal(r.Context(), image, mimeType)
	switch {
	case err == nil:
		return meal, portion, true
	case errors.Is(err, coach.ErrNoAnalyzer):
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Meal scanner is not available"))
	case errors.Is(err, mealscan.ErrEmptyImage), errors.Is(err, mealscan.ErrImageTooLarge), errors.Is(err, mealscan.ErrUnsupportedImage):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, mealscan.ErrUnreadableResult):
		slog.Warn("Server.logMealHandler: analyzer returned unreadable result", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Could not read the meal photo"))
	default:
		slog.Error("Server.logMealHandler: analysis failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to analyze meal"))
	}
	return models.LoggedMeal{}, 0, false
}

func (s *Server) trackerHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	t, err := s.coach.Tracker(r.Context(), userID)
	if err != nil {
		slog.Error("Server.trackerHandler: failed to load tracker", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load tracker"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(t))
}

// trackerUpdate carries increments; negative values undo.
type trackerUpdate struct {
	Water int `json:"water"`
	Steps int `json:"steps"`
}

func (s *Server) updateTrackerHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var req trackerUpdate
	if !decodeJSON(w, r, "Server.updateTrackerHandler", &req) {
		return
	}
	t, err := s.coach.Tracker(r.Context(), userID)
	if err == nil && req.Water != 0 {
		t, err = s.coach.LogWater(r.Context(), userID, req.Water)
	}
	if err == nil && req.Steps != 0 {
		t, err = s.coach.LogSteps(r.Context(), userID, req.Steps)
	}
	if err != nil {
		slog.Error("Server.updateTrackerHandler: failed to update tracker", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update tracker"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Recorded(t))
}

func (s *Server) unlockRewardsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	unlocked, err := s.coach.UnlockRewards(r.Context(), userID)
	if err != nil {
		slog.Error("Server.unlockRewardsHandler: failed", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to unlock rewards"))
		return
	}
	if unlocked == nil {
		unlocked = []string{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"unlocked": unlocked}))
}

func (s *Server) panelHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	action := models.Action(r.PathValue("action"))
	panel, err := s.coach.Panel(r.Context(), userID, action)
	if errors.Is(err, coach.ErrNoPanel) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No panel for action "+string(action)))
		return
	}
	if err != nil {
		slog.Error("Server.panelHandler: failed to build panel", "userID", userID, "action", action, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build panel"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(panel))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"smart":     s.dialogue != nil,
	})
}

// decodeJSON decodes a size-limited JSON body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, caller string, v interface{}) bool {
	if r.Body == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)).Decode(v); err != nil {
		slog.Warn(caller+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	return true
}

var validationErrors = []error{
	models.ErrInvalidGender,
	models.ErrInvalidGoal,
	models.ErrInvalidActivity,
	models.ErrInvalidTone,
	models.ErrAgeOutOfRange,
	models.ErrHeightOutOfRng,
	models.ErrWeightOutOfRng,
	models.ErrNegativeCounter,
	models.ErrProgressReadOnly,
	models.ErrOnboardingOrder,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
