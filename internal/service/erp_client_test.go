package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
)

const erpStudentsBody = `{"data":[
	{"id":"e1","roll_no":"0201CS211001","name":"Aryan Sharma","branch":"CSE","attendance":82,"cie_marks":"38/50","status":"Regular"},
	{"id":"e2","roll_no":"0201CS211002","name":"Kabir Mehta","branch":"CSE","attendance":58,"cie_marks":"18/50","status":"Detained"},
	{"id":"e3","roll_no":"0201EC211003","name":"Meera Iyer","branch":"ECE","attendance":71,"cie_marks":"28/50","status":"Regular"}
],"count":3}`

func newTestERPClient(t *testing.T, routes map[string]string) *ERPClient {
	t.Helper()
	client := NewERPClient("https://erp.test/functions/v1/")
	client.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/functions/v1/")
		body, ok := routes[endpoint]
		if !ok {
			return jsonResponse(http.StatusNotFound, `{"error":"not found"}`), nil
		}
		return jsonResponse(http.StatusOK, body), nil
	}})
	return client
}

func TestERPClientStudents(t *testing.T) {
	client := newTestERPClient(t, map[string]string{ERPEndpointStudents: erpStudentsBody})
	ctx := context.Background()

	students := client.Students(ctx)
	if students.Count != 3 || len(students.Data) != 3 {
		t.Fatalf("unexpected students response: %#v", students)
	}

	found := client.FindByRollNo(ctx, " 0201CS211002 ")
	if found == nil || found.Name != "Kabir Mehta" {
		t.Fatalf("unexpected lookup result: %#v", found)
	}
	if client.FindByRollNo(ctx, "missing") != nil {
		t.Fatal("expected nil for unknown roll number")
	}

	if cse := client.ByBranch(ctx, "CSE"); len(cse) != 2 {
		t.Fatalf("expected 2 CSE students, got %d", len(cse))
	}
	atRisk := client.AtRisk(ctx)
	if len(atRisk) != 1 || atRisk[0].ID != "e2" {
		t.Fatalf("unexpected at-risk students: %#v", atRisk)
	}

	views := StudentViews(students.Data)
	if views[0].MarksPercentage != 76 || views[0].RiskLevel != scoring.RiskLow {
		t.Fatalf("unexpected view for regular student: %#v", views[0])
	}
	if views[1].RiskLevel != scoring.RiskHigh {
		t.Fatalf("expected detained student to be high risk, got %s", views[1].RiskLevel)
	}
}

func TestERPClientSubjectsAndNotices(t *testing.T) {
	client := newTestERPClient(t, map[string]string{
		ERPEndpointProgress: `{"data":[
			{"id":"p1","student_id":"e1","subject":"DBMS","attendance":104,"marks":66,"assignments_done":2,"total_assignments":3},
			{"id":"p2","student_id":"e2","subject":"OS","attendance":50,"marks":30,"assignments_done":0,"total_assignments":3}
		],"count":2}`,
		ERPEndpointNotices: `{"data":[
			{"id":"n1","title":"Exam schedule","content":"Mid-terms start **Monday**<script>alert(1)</script>","type":"exam","priority":"high","created_at":"2024-12-01T00:00:00Z","expires_at":"2099-01-01T00:00:00Z"},
			{"id":"n2","title":"Old notice","content":"expired","type":"general","priority":"low","created_at":"2024-01-01T00:00:00Z","expires_at":"2024-02-01T00:00:00Z"},
			{"id":"n3","title":"Library hours","content":"Open till 9pm","type":"general","priority":"low","created_at":"2024-12-01T00:00:00Z"}
		],"count":3}`,
	})
	client.now = func() time.Time { return time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	subjects := client.SubjectsFor(ctx, "e1")
	if len(subjects) != 1 || subjects[0].Attendance != 100 || subjects[0].TotalAssignments != 3 {
		t.Fatalf("unexpected subjects: %#v", subjects)
	}

	notices := client.ActiveNotices(ctx)
	if len(notices) != 2 {
		t.Fatalf("expected expired notice to be dropped, got %d", len(notices))
	}
	html := string(notices[0].ContentHTML)
	if !strings.Contains(html, "<strong>Monday</strong>") || strings.Contains(html, "<script>") {
		t.Fatalf("expected sanitized markdown, got %q", html)
	}
}

func TestERPClientFailuresReturnEmpty(t *testing.T) {
	client := NewERPClient("https://erp.test")
	client.SetMetrics(metrics.New())
	client.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, ERPEndpointStudents):
			return nil, errors.New("connection refused")
		case strings.HasSuffix(r.URL.Path, ERPEndpointProgress):
			return jsonResponse(http.StatusBadGateway, "upstream down"), nil
		default:
			return jsonResponse(http.StatusOK, "<html>not json</html>"), nil
		}
	}})
	ctx := context.Background()

	if students := client.Students(ctx); students.Data == nil || len(students.Data) != 0 {
		t.Fatalf("expected empty students on network error, got %#v", students)
	}
	if progress := client.Progress(ctx); len(progress.Data) != 0 {
		t.Fatalf("expected empty progress on 502, got %#v", progress)
	}
	if notices := client.Notices(ctx); len(notices.Data) != 0 {
		t.Fatalf("expected empty notices on bad json, got %#v", notices)
	}

	unconfigured := NewERPClient("")
	if got := unconfigured.Students(ctx); len(got.Data) != 0 {
		t.Fatalf("expected empty result without base url, got %#v", got)
	}
}
