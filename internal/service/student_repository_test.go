package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/studentpulse/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupServiceTestDB 为每个测试打开独立的内存库并完成迁移。
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// seedDemoStudent 写入演示学生并返回仓库
func seedDemoStudent(t *testing.T, gdb *gorm.DB) *StudentRepository {
	t.Helper()
	repo := NewStudentRepository(gdb)
	if err := repo.EnsureDemoStudent(); err != nil {
		t.Fatalf("seed demo student failed: %v", err)
	}
	return repo
}

func TestStudentRepositorySaveAndLoad(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	data, err := repo.Load(DemoStudentCode)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	expected := DefaultStudentData()
	if data.Profile.Name != expected.Profile.Name || data.Profile.RollNumber != expected.Profile.RollNumber {
		t.Fatalf("unexpected profile: %#v", data.Profile)
	}
	if len(data.Attendance) != len(expected.Attendance) || data.Attendance[5].Percentage != 79 {
		t.Fatalf("unexpected attendance: %#v", data.Attendance)
	}
	if data.Marks[0].Date != "2024-11-18" || data.Marks[0].Average != 72 {
		t.Fatalf("unexpected first marks record: %#v", data.Marks[0])
	}
	if len(data.WellBeing) != 6 || data.WellBeing[5].Date != "2024-12-23" {
		t.Fatalf("unexpected wellbeing: %#v", data.WellBeing)
	}
	if len(data.Assignments) != 3 || data.Assignments[0].DueDate != "2024-12-28" {
		t.Fatalf("unexpected assignments: %#v", data.Assignments)
	}
	if len(data.Subjects) != 4 || data.Subjects[3].Code != "OS" {
		t.Fatalf("unexpected subjects: %#v", data.Subjects)
	}
	if len(data.Schedule) != 4 || data.Schedule[0].Time != "09:00" {
		t.Fatalf("unexpected schedule: %#v", data.Schedule)
	}
	if len(data.Streaks) != 3 || data.Streaks[2].Best != 12 {
		t.Fatalf("unexpected streaks: %#v", data.Streaks)
	}
	if data.Goals != (Goals{WeeklyTarget: 10, Completed: 7}) {
		t.Fatalf("unexpected goals: %#v", data.Goals)
	}

	// 再次写入不会重复
	if err := repo.EnsureDemoStudent(); err != nil {
		t.Fatalf("ensure demo student twice failed: %v", err)
	}
	again, err := repo.Load(DemoStudentCode)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(again.Attendance) != 6 {
		t.Fatalf("expected attendance not to be duplicated, got %d", len(again.Attendance))
	}
}

func TestStudentRepositorySaveReplacesRows(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	data, err := repo.Load(DemoStudentCode)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	data.Attendance = data.Attendance[:2]
	data.Assignments = append(data.Assignments, DefaultStudentData().Assignments[0])
	data.Goals.Completed = 99

	if err := repo.Save(data); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := repo.Load(DemoStudentCode)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(reloaded.Attendance) != 2 {
		t.Fatalf("expected 2 attendance records, got %d", len(reloaded.Attendance))
	}
	if len(reloaded.Assignments) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(reloaded.Assignments))
	}
	ids := map[string]bool{}
	for _, assignment := range reloaded.Assignments {
		if ids[assignment.ID] {
			t.Fatalf("duplicate assignment id %s", assignment.ID)
		}
		ids[assignment.ID] = true
	}
	if reloaded.Goals.Completed != 10 {
		t.Fatalf("expected completed goals to be clamped to 10, got %d", reloaded.Goals.Completed)
	}
}

func TestStudentRepositoryRejectsInvalidSnapshot(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := NewStudentRepository(gdb)

	data := DefaultStudentData()
	data.WellBeing[0].Mood = 6
	if err := repo.Save(data); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for out-of-range mood, got %v", err)
	}

	data = DefaultStudentData()
	data.Goals.WeeklyTarget = 0
	if err := repo.Save(data); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for zero weekly target, got %v", err)
	}

	data = DefaultStudentData()
	data.Attendance[0].Date = "18/11/2024"
	if err := repo.Save(data); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for bad date, got %v", err)
	}

	data = DefaultStudentData()
	data.Assignments[1].DueDate = "next friday"
	if err := repo.Save(data); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for bad due date, got %v", err)
	}

	data = DefaultStudentData()
	data.Schedule[0].Date = ""
	if err := repo.Save(data); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for missing schedule date, got %v", err)
	}

	if _, err := repo.Resolve(DemoStudentCode); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("rejected snapshot should not create a student, got %v", err)
	}
}

func TestStudentRepositoryImportMergesDefaults(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := NewStudentRepository(gdb)

	raw := []byte(`{
		"profile": {"id": "STU002", "name": "Meera Iyer", "course": "B.Tech ECE", "semester": 3},
		"attendance": [{"date": "2025-01-06", "percentage": 64}],
		"wellBeing": [
			{"date": "2025-01-06", "mood": 2, "stress": 4, "sleep": 2, "motivation": 2},
			{"date": "2025-01-06", "mood": 3, "stress": 3, "sleep": 3, "motivation": 3}
		],
		"assignments": []
	}`)

	data, err := repo.ImportSnapshot(raw)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if data.Profile.ID != "STU002" || data.Profile.Name != "Meera Iyer" {
		t.Fatalf("unexpected profile: %#v", data.Profile)
	}
	if len(data.Attendance) != 1 {
		t.Fatalf("expected imported attendance to be kept, got %#v", data.Attendance)
	}
	if len(data.Marks) != len(DefaultStudentData().Marks) {
		t.Fatalf("expected missing marks to fall back to defaults, got %d", len(data.Marks))
	}
	if len(data.Assignments) != 0 {
		t.Fatalf("expected empty assignments to stay empty, got %d", len(data.Assignments))
	}
	if len(data.WellBeing) != 1 || data.WellBeing[0].Mood != 3 {
		t.Fatalf("expected duplicated date to keep the last entry, got %#v", data.WellBeing)
	}
	if data.Goals.WeeklyTarget != 10 {
		t.Fatalf("expected default weekly target, got %d", data.Goals.WeeklyTarget)
	}

	if _, err := repo.ImportSnapshot([]byte("not json")); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestStudentRepositoryExportSnapshot(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := seedDemoStudent(t, gdb)

	raw, err := repo.ExportSnapshot(DemoStudentCode)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var decoded StudentData
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("exported snapshot is not valid json: %v", err)
	}
	if decoded.Profile.ID != DemoStudentCode || len(decoded.Subjects) != 4 {
		t.Fatalf("unexpected exported snapshot: %#v", decoded.Profile)
	}

	if _, err := repo.ExportSnapshot("missing"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestStudentRepositoryLoadOrDefault(t *testing.T) {
	gdb := setupServiceTestDB(t)
	repo := NewStudentRepository(gdb)

	data, isDefault := repo.LoadOrDefault("STU404")
	if !isDefault {
		t.Fatal("expected default dataset for unknown student")
	}
	if data.Profile.ID != DemoStudentCode {
		t.Fatalf("unexpected default profile: %#v", data.Profile)
	}

	seedDemoStudent(t, gdb)
	if _, isDefault := repo.LoadOrDefault(DemoStudentCode); isDefault {
		t.Fatal("expected stored data for demo student")
	}
}

func TestWeekStart(t *testing.T) {
	cases := map[string]string{
		"2024-12-23": "2024-12-23",
		"2024-12-25": "2024-12-23",
		"2024-12-29": "2024-12-23",
		"2024-12-30": "2024-12-30",
	}
	for input, want := range cases {
		day, err := parseDate(input)
		if err != nil {
			t.Fatalf("parse %s: %v", input, err)
		}
		if got := formatDate(weekStart(day)); got != want {
			t.Fatalf("weekStart(%s) = %s, want %s", input, got, want)
		}
	}
}
