package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/config"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/service"
	"gorm.io/gorm"
)

// 测试数据生成器
func main() {
	count := flag.Int("students", 12, "number of synthetic students")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("failed to initialize database:", err)
	}

	fmt.Println("Generating test data...")

	cohort := generateCohort(rand.New(rand.NewSource(*seed)), *count, time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC))
	summary, err := seedCohort(context.Background(), db.DB, analytics.NewGormWarehouse(db.DB), cohort)
	if err != nil {
		log.Fatal("failed to seed cohort:", err)
	}

	fmt.Println("Test data generated!")
	fmt.Printf("Students: %d (password: %s)\n", summary.Students, defaultPassword)
	fmt.Printf("Mentor: mentor (password: %s), %d assigned\n", defaultPassword, summary.Assigned)
	fmt.Printf("Warehouse rows: %d attendance, %d marks\n", summary.AttendanceRows, summary.MarksRows)
}

const (
	defaultPassword = "student123"
	weeksOfHistory  = 6
)

var cohortNames = []string{
	"Ananya Iyer", "Rohan Mehta", "Priya Nair", "Kabir Singh", "Sneha Reddy", "Vikram Joshi",
	"Isha Kapoor", "Arjun Das", "Meera Pillai", "Dev Malhotra", "Tara Bose", "Nikhil Rao",
}

var cohortSubjects = []scoring.SubjectData{
	{Name: "Data Structures", Code: "DSA"},
	{Name: "Database Management", Code: "DBMS"},
	{Name: "Operating Systems", Code: "OS"},
	{Name: "Computer Networks", Code: "CN"},
}

type seedSummary struct {
	Students       int
	Assigned       int
	AttendanceRows int
	MarksRows      int
}

// generateCohort 生成一批学生数据；每个学生有一个基准水平，周数据在其附近波动。
func generateCohort(r *rand.Rand, count int, start time.Time) []service.StudentData {
	cohort := make([]service.StudentData, 0, count)
	for i := 0; i < count; i++ {
		code := fmt.Sprintf("STU%03d", 101+i)
		baseAttendance := 55 + r.Float64()*40
		baseMarks := 45 + r.Float64()*45
		baseMood := 2 + r.Intn(3)

		data := service.StudentData{
			Profile: service.StudentProfile{
				ID:         code,
				Name:       cohortNames[i%len(cohortNames)],
				Course:     "B.Tech CSE",
				Semester:   3 + 2*(i%3),
				Section:    string(rune('A' + i%2)),
				RollNumber: fmt.Sprintf("0201CS21%04d", 1101+i),
			},
			Schedule:      []service.ScheduleItem{},
			Streaks:       []service.Streak{},
			Reflections:   []service.Reflection{},
			FocusSessions: []service.FocusSession{},
			Goals:         service.Goals{WeeklyTarget: 8 + r.Intn(5)},
		}
		data.Goals.Completed = r.Intn(data.Goals.WeeklyTarget + 1)

		for week := 0; week < weeksOfHistory; week++ {
			date := start.AddDate(0, 0, 7*week).Format("2006-01-02")
			data.Attendance = append(data.Attendance, scoring.AttendanceRecord{
				Date:       date,
				Percentage: jitter(r, baseAttendance, 6),
			})
			data.Marks = append(data.Marks, scoring.MarksRecord{
				Date:    date,
				Average: jitter(r, baseMarks, 8),
			})
			data.WellBeing = append(data.WellBeing, scoring.WellBeingRecord{
				Date:       date,
				Mood:       clampScale(baseMood + r.Intn(3) - 1),
				Stress:     clampScale(6 - baseMood + r.Intn(3) - 1),
				Sleep:      clampScale(baseMood + r.Intn(3) - 1),
				Motivation: clampScale(baseMood + r.Intn(3) - 1),
			})
		}

		for j, subject := range cohortSubjects {
			total := 2 + r.Intn(3)
			subject.ID = fmt.Sprintf("%d", j+1)
			subject.Attendance = jitter(r, baseAttendance, 10)
			subject.InternalMarks = jitter(r, baseMarks, 12)
			subject.TotalAssignments = total
			subject.AssignmentsDone = r.Intn(total + 1)
			data.Subjects = append(data.Subjects, subject)

			data.Assignments = append(data.Assignments, scoring.Assignment{
				ID:        fmt.Sprintf("%s-%d", code, j+1),
				Title:     subject.Name + " assignment",
				Subject:   subject.Code,
				DueDate:   start.AddDate(0, 0, 7*weeksOfHistory+j).Format("2006-01-02"),
				Completed: r.Intn(2) == 0,
			})
		}

		cohort = append(cohort, data)
	}
	return cohort
}

// seedCohort 写入学生档案、学生账号、一个导师账号以及数据仓库中的明细记录。
func seedCohort(ctx context.Context, gdb *gorm.DB, warehouse *analytics.Warehouse, cohort []service.StudentData) (seedSummary, error) {
	var summary seedSummary
	students := service.NewStudentRepository(gdb)
	users := service.NewUserService(gdb, students)
	mentors := service.NewMentorService(gdb, students, warehouse)

	mentor, err := ensureAccount(gdb, users, service.UserInput{Username: "mentor", Password: defaultPassword, Role: db.RoleMentor, DisplayName: "Cohort Mentor"})
	if err != nil {
		return summary, err
	}

	for _, data := range cohort {
		code := data.Profile.ID
		if err := students.Save(data); err != nil {
			return summary, fmt.Errorf("save %s: %w", code, err)
		}
		if _, err := ensureAccount(gdb, users, service.UserInput{
			Username:    code,
			Password:    defaultPassword,
			DisplayName: data.Profile.Name,
			StudentCode: code,
		}); err != nil {
			return summary, err
		}
		summary.Students++

		// 风险较高的学生分配给导师
		if scoring.CalculateRiskLevel(scoring.LatestAttendance(data.Attendance), scoring.LatestMarks(data.Marks), scoring.LatestWellBeing(data.WellBeing)) != scoring.RiskLow {
			if _, err := mentors.Assign(mentor.ID, code); err != nil && !errors.Is(err, service.ErrAlreadyAssigned) {
				return summary, fmt.Errorf("assign %s: %w", code, err)
			}
			summary.Assigned++
		}

		attendance, marks := warehouseRows(data)
		n, err := warehouse.InsertAttendance(ctx, attendance...)
		if err != nil {
			return summary, fmt.Errorf("insert attendance for %s: %w", code, err)
		}
		summary.AttendanceRows += n
		n, err = warehouse.InsertMarks(ctx, marks...)
		if err != nil {
			return summary, fmt.Errorf("insert marks for %s: %w", code, err)
		}
		summary.MarksRows += n
	}
	return summary, nil
}

func ensureAccount(gdb *gorm.DB, users *service.UserService, input service.UserInput) (*db.User, error) {
	user, err := users.Create(input)
	if errors.Is(err, service.ErrUsernameTaken) {
		var existing db.User
		if err := gdb.Where("username = ?", input.Username).First(&existing).Error; err != nil {
			return nil, fmt.Errorf("load %s: %w", input.Username, err)
		}
		return &existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", input.Username, err)
	}
	return user, nil
}

// warehouseRows 把周汇总展开成明细：每周每科一条出勤记录和一条测验成绩。
func warehouseRows(data service.StudentData) ([]analytics.AttendanceRow, []analytics.MarksRow) {
	var attendance []analytics.AttendanceRow
	var marks []analytics.MarksRow
	for i, record := range data.Attendance {
		for j, subject := range data.Subjects {
			status := "present"
			// 出勤率越低，缺勤的科目越多
			if float64((i+j)%10)*10 >= record.Percentage {
				status = "absent"
			}
			attendance = append(attendance, analytics.AttendanceRow{
				StudentID: data.Profile.ID,
				Date:      record.Date,
				Status:    status,
				Subject:   subject.Code,
			})
		}
	}
	for _, record := range data.Marks {
		for _, subject := range data.Subjects {
			marks = append(marks, analytics.MarksRow{
				StudentID: data.Profile.ID,
				Subject:   subject.Code,
				Score:     record.Average / 5,
				MaxScore:  20,
				ExamType:  "quiz",
				Date:      record.Date,
			})
		}
	}
	return attendance, marks
}

func jitter(r *rand.Rand, base, spread float64) float64 {
	value := base + (r.Float64()*2-1)*spread
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return float64(int(value*10)) / 10
}

func clampScale(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
