package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
)

func TestRiskPredictorStoresModelPrediction(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, completionBody(t, `{"riskLevel":"medium","explanation":"Pending work is piling up","recommendations":["Finish the DSA report","Meet the OS tutor"],"subjectRisks":[]}`)), nil
	})
	warehouse := analytics.NewMemoryWarehouse()
	publisher := &recordingPublisher{}

	predictor := NewRiskPredictor(gdb, repo, assessor, time.Second)
	predictor.SetWarehouse(warehouse)
	predictor.SetPublisher(publisher)
	predictor.SetMetrics(metrics.New())

	prediction, err := predictor.Predict(context.Background(), DemoStudentCode)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if prediction.Source != SourceModel || prediction.RiskLevel != scoring.RiskMedium {
		t.Fatalf("unexpected prediction: %#v", prediction)
	}

	state, ok := predictor.State(DemoStudentCode)
	if !ok || state.Status != PredictionSuccess || state.Result == nil || state.Sequence != prediction.Sequence {
		t.Fatalf("unexpected state: %#v", state)
	}

	latest, err := predictor.Latest(DemoStudentCode)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest == nil || latest.RiskLevel != "medium" || latest.Source != SourceModel {
		t.Fatalf("unexpected stored assessment: %#v", latest)
	}
	var recommendations []string
	if err := json.Unmarshal(latest.Recommendations, &recommendations); err != nil || len(recommendations) != 2 {
		t.Fatalf("unexpected stored recommendations: %s (%v)", latest.Recommendations, err)
	}

	rows, err := warehouse.RiskPredictionHistory(context.Background(), DemoStudentCode, 0)
	if err != nil {
		t.Fatalf("prediction history failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Confidence != modelConfidence || rows[0].ModelVersion != defaultOpenAIModel {
		t.Fatalf("unexpected prediction history: %#v", rows)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != events.TypeRiskAssessed {
		t.Fatalf("unexpected events: %#v", publisher.events)
	}
}

func TestRiskPredictorFallsBackOnUpstreamError(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`), nil
	})
	warehouse := analytics.NewMemoryWarehouse()
	predictor := NewRiskPredictor(gdb, repo, assessor, time.Second)
	predictor.SetWarehouse(warehouse)

	prediction, err := predictor.Predict(context.Background(), DemoStudentCode)
	if err != nil {
		t.Fatalf("predict should not fail, got %v", err)
	}
	if prediction.Source != SourceFallback || prediction.FallbackReason != FallbackUpstream {
		t.Fatalf("expected upstream fallback, got %#v", prediction)
	}
	// 演示数据：出勤 78，成绩 70，待交 3
	if prediction.RiskLevel != scoring.RiskMedium {
		t.Fatalf("expected medium fallback risk, got %s", prediction.RiskLevel)
	}
	if len(prediction.Recommendations) == 0 {
		t.Fatal("expected fallback recommendations")
	}

	state, ok := predictor.State(DemoStudentCode)
	if !ok || state.Status != PredictionFailure || state.Message == "" || state.Result == nil {
		t.Fatalf("expected failure state carrying fallback result, got %#v", state)
	}

	rows, err := warehouse.RiskPredictionHistory(context.Background(), DemoStudentCode, 0)
	if err != nil {
		t.Fatalf("prediction history failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Confidence != fallbackConfidence || rows[0].ModelVersion != fallbackModelVersion {
		t.Fatalf("unexpected fallback history: %#v", rows)
	}
}

func TestRiskPredictorTimeout(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	assessor := newTestAssessor(t, gdb, func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})
	predictor := NewRiskPredictor(gdb, repo, assessor, 20*time.Millisecond)

	prediction, err := predictor.Predict(context.Background(), DemoStudentCode)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if prediction.FallbackReason != FallbackTimeout {
		t.Fatalf("expected timeout fallback, got %q", prediction.FallbackReason)
	}
}

func TestRiskPredictorWithoutAssessor(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)
	predictor := NewRiskPredictor(gdb, repo, nil, 0)

	prediction, err := predictor.Predict(context.Background(), DemoStudentCode)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if prediction.FallbackReason != FallbackNoAPIKey {
		t.Fatalf("expected api key fallback, got %q", prediction.FallbackReason)
	}

	if _, err := predictor.Predict(context.Background(), "STU404"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	if latest, err := predictor.Latest(DemoStudentCode); err != nil || latest == nil {
		t.Fatalf("expected stored fallback, got %#v (%v)", latest, err)
	}
}

func TestRiskPredictorIgnoresStaleResults(t *testing.T) {
	predictor := NewRiskPredictor(nil, nil, nil, 0)

	first := predictor.begin(DemoStudentCode)
	second := predictor.begin(DemoStudentCode)
	if second <= first {
		t.Fatalf("expected increasing sequence, got %d then %d", first, second)
	}

	stale := &Prediction{Sequence: first}
	if predictor.finish(DemoStudentCode, first, stale, "") {
		t.Fatal("stale result must not overwrite newer request")
	}
	state, _ := predictor.State(DemoStudentCode)
	if state.Status != PredictionPending || state.Sequence != second {
		t.Fatalf("expected pending state for latest request, got %#v", state)
	}

	fresh := &Prediction{Sequence: second}
	if !predictor.finish(DemoStudentCode, second, fresh, "") {
		t.Fatal("expected latest result to be recorded")
	}
	state, _ = predictor.State(DemoStudentCode)
	if state.Status != PredictionSuccess || state.Result != fresh {
		t.Fatalf("unexpected final state: %#v", state)
	}
}

func TestFallbackReason(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		err  error
		want string
	}{
		{ErrAIAPIKeyMissing, FallbackNoAPIKey},
		{context.DeadlineExceeded, FallbackTimeout},
		{&UpstreamError{StatusCode: 502, Kind: UpstreamFailure}, FallbackUpstream},
		{ErrInvalidFeatures, "invalid_data"},
		{errors.New("boom"), FallbackUnknown},
	}
	for _, tc := range cases {
		if got := fallbackReason(ctx, tc.err); got != tc.want {
			t.Fatalf("fallbackReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
