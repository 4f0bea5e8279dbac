package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/service"
)

func validSummary() map[string]any {
	return map[string]any{
		"name":                    "Aryan Sharma",
		"course":                  "B.Tech CSE",
		"semester":                5,
		"overallAttendance":       78,
		"averageMarks":            70,
		"totalPendingAssignments": 3,
		"subjects": []map[string]any{
			{"name": "Operating Systems", "attendance": 68, "marks": 58, "pendingAssignments": 2},
		},
	}
}

func predictRequest(summary map[string]any) map[string]any {
	return map[string]any{"studentData": summary}
}

func configureAssessor(t *testing.T, api *API, handler func(*http.Request) (*http.Response, error)) {
	t.Helper()
	if _, err := api.system.UpdateSettings(service.SystemSettingsInput{
		AIProvider:   service.AIProviderOpenAI,
		OpenAIAPIKey: "sk-test",
	}); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	api.assessor.SetBaseURL(service.AIProviderOpenAI, "https://openai.test/v1")
	api.assessor.SetHTTPClient(fakeHTTPClient{handler: handler})
}

func completion(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(raw)
}

func TestPredictRiskReturnsModelAssessment(t *testing.T) {
	api := setupTestAPI(t)
	var prompt string
	configureAssessor(t, api, func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		prompt = string(raw)
		return jsonResponse(http.StatusOK, completion(`{"riskLevel":"medium","explanation":"OS attendance is low","recommendations":["Attend OS lectures"],"subjectRisks":[]}`)), nil
	})

	c, w := newTestContext(http.MethodPost, "/api/predict-risk", predictRequest(validSummary()), &Identity{UserID: 1, Role: "student"})
	api.PredictRisk(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["riskLevel"] != "medium" || body["source"] != service.SourceModel {
		t.Fatalf("unexpected body: %#v", body)
	}
	if !strings.Contains(prompt, "Student Name: Aryan Sharma") || !strings.Contains(prompt, "Overall Attendance: 78%") {
		t.Fatalf("expected studentData fields in prompt, got %s", prompt)
	}
}

func TestPredictRiskRequiresStudentDataWrapper(t *testing.T) {
	api := setupTestAPI(t)
	called := false
	configureAssessor(t, api, func(r *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, completion(`{"riskLevel":"low"}`)), nil
	})

	// 字段直接放在顶层时不被接受
	c, w := newTestContext(http.MethodPost, "/api/predict-risk", validSummary(), &Identity{UserID: 1})
	api.PredictRisk(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["error"] != "Invalid student data" {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
	if called {
		t.Fatal("request without studentData must not reach the model")
	}
}

func TestPredictRiskMapsFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
		wantError  string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantStatus: http.StatusTooManyRequests, wantError: "Rate limit exceeded. Please try again later."},
		{name: "credits", status: http.StatusPaymentRequired, wantStatus: http.StatusPaymentRequired, wantError: "AI credits exhausted. Please add credits."},
		{name: "upstream failure", status: http.StatusBadGateway, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestAPI(t)
			configureAssessor(t, api, func(r *http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, `{"error":{"message":"nope"}}`), nil
			})

			c, w := newTestContext(http.MethodPost, "/api/predict-risk", predictRequest(validSummary()), &Identity{UserID: 1})
			api.PredictRisk(c)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			body := decodeBody(t, w)
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Fatalf("expected error %q, got %#v", tt.wantError, body["error"])
			}
			if tt.wantStatus == http.StatusInternalServerError {
				if body["riskLevel"] != "medium" || body["explanation"] != "Unable to analyze - using default assessment" {
					t.Fatalf("expected default assessment, got %#v", body)
				}
			}
		})
	}
}

func TestPredictRiskRejectsInvalidSummary(t *testing.T) {
	api := setupTestAPI(t)
	called := false
	configureAssessor(t, api, func(r *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, completion(`{"riskLevel":"low"}`)), nil
	})

	summary := validSummary()
	summary["overallAttendance"] = 140
	c, w := newTestContext(http.MethodPost, "/api/predict-risk", predictRequest(summary), &Identity{UserID: 1})
	api.PredictRisk(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if called {
		t.Fatal("invalid summary must not reach the model")
	}
}

func TestStudentPredictionEndpoints(t *testing.T) {
	api := setupTestAPI(t)
	identity := &Identity{UserID: 1, Role: "student", StudentCode: service.DemoStudentCode}

	c, w := newTestContext(http.MethodGet, "/api/students/STU001/prediction", nil, identity, studentParam(service.DemoStudentCode))
	api.GetPredictionState(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any prediction, got %d", w.Code)
	}

	// 未配置 API Key 时走规则兜底
	c, w = newTestContext(http.MethodPost, "/api/students/STU001/prediction", nil, identity, studentParam(service.DemoStudentCode))
	api.PredictStudentRisk(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["source"] != service.SourceFallback || body["fallbackReason"] != service.FallbackNoAPIKey {
		t.Fatalf("expected api key fallback, got %#v", body)
	}

	c, w = newTestContext(http.MethodGet, "/api/students/STU001/prediction", nil, identity, studentParam(service.DemoStudentCode))
	api.GetPredictionState(c)
	if w.Code != http.StatusOK || decodeBody(t, w)["status"] != service.PredictionFailure {
		t.Fatalf("expected failure state with fallback, got %d %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodGet, "/api/students/STU001/prediction/latest", nil, identity, studentParam(service.DemoStudentCode))
	api.GetLatestAssessment(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected stored assessment, got %d", w.Code)
	}
	latest := decodeBody(t, w)
	if latest["riskLevel"] != string(scoring.RiskMedium) {
		t.Fatalf("unexpected latest assessment: %#v", latest)
	}
	if recs, ok := latest["recommendations"].([]any); !ok || len(recs) == 0 {
		t.Fatalf("expected recommendations array, got %#v", latest["recommendations"])
	}

	c, w = newTestContext(http.MethodPost, "/api/students/STU404/prediction", nil, identity, studentParam("STU404"))
	api.PredictStudentRisk(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", w.Code)
	}
}

func TestStudentAnalyticsAndIngest(t *testing.T) {
	api := setupTestAPI(t)
	admin := &Identity{UserID: 1, Role: "admin"}

	rows := []map[string]any{
		{"student_id": service.DemoStudentCode, "date": "2024-12-20", "status": "present", "subject": "OS"},
		{"student_id": service.DemoStudentCode, "date": "2024-12-21", "status": "absent", "subject": "OS"},
	}
	c, w := newTestContext(http.MethodPost, "/api/admin/analytics/attendance", rows, admin)
	api.IngestAttendance(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	bad := []map[string]any{{"student_id": service.DemoStudentCode, "subject": "OS", "score": 10, "max_score": 0, "exam_type": "quiz"}}
	c, w = newTestContext(http.MethodPost, "/api/admin/analytics/marks", bad, admin)
	api.IngestMarks(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid marks, got %d", w.Code)
	}

	if _, err := api.mentors.RecordIntervention(context.Background(), 1, service.DemoStudentCode, service.InterventionInput{Type: "counseling", Notes: "check in"}); err != nil {
		t.Fatalf("failed to record intervention: %v", err)
	}

	c, w = newTestContext(http.MethodGet, "/api/students/STU001/analytics", nil, admin, studentParam(service.DemoStudentCode))
	api.GetStudentAnalytics(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	features := decodeBody(t, w)["features"].(map[string]any)
	if features["avgAttendance"] != float64(50) || features["interventionCount"] != float64(1) {
		t.Fatalf("unexpected features: %#v", features)
	}
}
