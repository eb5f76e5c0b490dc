// Package testutil provides common test helpers for SehaCoach tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/store"
)

// FixedTime is the clock value used by tests that pin time.
var FixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

// FixedClock returns FixedTime.
func FixedClock() time.Time { return FixedTime }

// OnboardedProfile returns a complete profile: 25-year-old male, 170 cm, 70 kg, weight loss,
// moderate activity, balanced tone, smart mode off.
func OnboardedProfile() models.UserProfile {
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

// SeedProfile stores p for userID and fails the test on error.
func SeedProfile(t testing.TB, st store.Store, userID string, p models.UserProfile) {
	t.Helper()
	if err := st.SaveProfile(context.Background(), userID, p); err != nil {
		t.Fatalf("failed to seed profile for %s: %v", userID, err)
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes the envelope and validates its status field.
func AssertJSONResponse(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
