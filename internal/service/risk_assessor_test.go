package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/studentpulse/internal/scoring"
	"gorm.io/gorm"
)

type fakeHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func completionBody(t *testing.T, content string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": content}}},
		"usage":   map[string]int{"prompt_tokens": 120, "completion_tokens": 80},
	})
	if err != nil {
		t.Fatalf("encode completion: %v", err)
	}
	return string(raw)
}

func newTestAssessor(t *testing.T, gdb *gorm.DB, handler func(*http.Request) (*http.Response, error)) *RiskAssessor {
	t.Helper()
	settings := NewSystemSettingService(gdb)
	if _, err := settings.UpdateSettings(SystemSettingsInput{
		InstitutionName: "Sunrise Institute",
		AIProvider:      AIProviderOpenAI,
		OpenAIAPIKey:    "sk-test",
	}); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	assessor := NewRiskAssessor(settings)
	assessor.SetBaseURL(AIProviderOpenAI, "https://openai.test/v1")
	assessor.SetHTTPClient(fakeHTTPClient{handler: handler})
	return assessor
}

func sampleSummary() scoring.FeatureSummary {
	data := DefaultStudentData()
	return summaryFromData(data)
}

func TestRiskAssessorParsesModelOutput(t *testing.T) {
	gdb := setupServiceTestDB(t)

	assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.String() != "https://openai.test/v1/chat/completions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload chatCompletionRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != defaultOpenAIModel || payload.Temperature != 0.3 {
			t.Fatalf("unexpected payload: %#v", payload)
		}
		if !strings.Contains(payload.Messages[0].Content, "Sunrise Institute") {
			t.Fatalf("expected institution in system prompt, got %q", payload.Messages[0].Content)
		}
		if !strings.Contains(payload.Messages[1].Content, "Operating Systems: Attendance 68%") {
			t.Fatalf("expected subject line in user prompt, got %q", payload.Messages[1].Content)
		}
		content := "Here is the assessment:\n```json\n" +
			`{"riskLevel":"Medium","explanation":"OS attendance is low","recommendations":["Attend OS lectures"],"subjectRisks":[{"subject":"Operating Systems","risk":"HIGH","reason":"68% attendance"},{"subject":"DSA","risk":"unclear","reason":"?"}]}` +
			"\n```"
		return jsonResponse(http.StatusOK, completionBody(t, content)), nil
	})

	result, err := assessor.Assess(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if result.Source != SourceModel || result.Model != defaultOpenAIModel {
		t.Fatalf("unexpected source/model: %#v", result)
	}
	if result.RiskLevel != scoring.RiskMedium {
		t.Fatalf("expected medium, got %s", result.RiskLevel)
	}
	if len(result.SubjectRisks) != 2 || result.SubjectRisks[0].Risk != scoring.RiskHigh || result.SubjectRisks[1].Risk != scoring.RiskMedium {
		t.Fatalf("unexpected subject risks: %#v", result.SubjectRisks)
	}
}

func TestRiskAssessorFallsBackOnUnparsableOutput(t *testing.T) {
	gdb := setupServiceTestDB(t)

	for _, content := range []string{"I cannot help with that.", `{"riskLevel":"severe","explanation":"?"}`} {
		assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, completionBody(t, content)), nil
		})
		result, err := assessor.Assess(context.Background(), sampleSummary())
		if err != nil {
			t.Fatalf("assess failed: %v", err)
		}
		if result.Source != SourceFallback || result.FallbackReason != FallbackParseError {
			t.Fatalf("expected parse fallback for %q, got %#v", content, result)
		}
		if result.RiskLevel != scoring.FallbackRiskLevel(sampleSummary()) {
			t.Fatalf("expected rule-based level, got %s", result.RiskLevel)
		}
	}
}

func TestRiskAssessorReturnsUpstreamErrors(t *testing.T) {
	gdb := setupServiceTestDB(t)

	cases := map[int]string{
		http.StatusTooManyRequests:     UpstreamRateLimited,
		http.StatusPaymentRequired:     UpstreamQuota,
		http.StatusUnauthorized:        UpstreamUnauthorized,
		http.StatusInternalServerError: UpstreamFailure,
	}
	for status, kind := range cases {
		assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(status, `{"error":{"message":"gateway says no"}}`), nil
		})
		_, err := assessor.Assess(context.Background(), sampleSummary())
		upstream, ok := AsUpstreamError(err)
		if !ok {
			t.Fatalf("expected UpstreamError for %d, got %v", status, err)
		}
		if upstream.Kind != kind || upstream.Message != "gateway says no" {
			t.Fatalf("unexpected upstream error for %d: %#v", status, upstream)
		}
	}
}

func TestRiskAssessorValidatesSummary(t *testing.T) {
	gdb := setupServiceTestDB(t)
	called := false
	assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, completionBody(t, `{"riskLevel":"low"}`)), nil
	})

	summary := sampleSummary()
	summary.OverallAttendance = 140
	if _, err := assessor.Assess(context.Background(), summary); !errors.Is(err, ErrInvalidFeatures) {
		t.Fatalf("expected ErrInvalidFeatures, got %v", err)
	}

	summary = sampleSummary()
	mood := 9
	summary.WellBeing = &scoring.WellBeingFeature{Mood: &mood}
	if _, err := assessor.Assess(context.Background(), summary); !errors.Is(err, ErrInvalidFeatures) {
		t.Fatalf("expected ErrInvalidFeatures for mood, got %v", err)
	}
	if called {
		t.Fatal("invalid summary must not reach the model")
	}
}

func TestRiskAssessorMissingAPIKey(t *testing.T) {
	gdb := setupServiceTestDB(t)
	assessor := NewRiskAssessor(NewSystemSettingService(gdb))
	assessor.SetHTTPClient(fakeHTTPClient{})

	if _, err := assessor.Assess(context.Background(), sampleSummary()); !errors.Is(err, ErrAIAPIKeyMissing) {
		t.Fatalf("expected ErrAIAPIKeyMissing, got %v", err)
	}
}

func TestBuildRiskUserPromptWithoutWellBeing(t *testing.T) {
	summary := sampleSummary()
	summary.WellBeing = nil
	prompt := buildRiskUserPrompt(summary)
	if strings.Count(prompt, "Not available") != 3 {
		t.Fatalf("expected missing wellbeing to be marked, got %q", prompt)
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := extractJSONObject("prefix {\"a\":{\"b\":1}} suffix")
	if !ok || raw != `{"a":{"b":1}}` {
		t.Fatalf("unexpected extraction: %q %v", raw, ok)
	}
	if _, ok := extractJSONObject("} nothing {"); ok {
		t.Fatal("expected reversed braces to fail")
	}
	if !bytes.Contains([]byte(buildRiskSystemPrompt("")), []byte("StudentPulse")) {
		t.Fatal("expected default institution in system prompt")
	}
}
