package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/scoring"
	"gorm.io/gorm"
)

var (
	// ErrStudentNotFound 在学号不存在时返回
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidSnapshot 表示导入的 JSON 无法解析或内容不合法
	ErrInvalidSnapshot = errors.New("invalid student snapshot")
	// ErrInvalidDate 表示日期不是 YYYY-MM-DD 格式
	ErrInvalidDate = errors.New("invalid date")
)

// StudentRepository 负责学生聚合数据的整体读写。
// 读取时从各表拼装 StudentData，保存时在一个事务内整体替换。
type StudentRepository struct {
	db *gorm.DB
}

// NewStudentRepository 构造 StudentRepository
func NewStudentRepository(gdb *gorm.DB) *StudentRepository {
	return &StudentRepository{db: gdb}
}

// Resolve 按学号查找学生档案。
func (r *StudentRepository) Resolve(code string) (*db.Student, error) {
	return r.resolveWith(r.db, code)
}

// resolveWith 在给定事务中按学号查找。
func (r *StudentRepository) resolveWith(tx *gorm.DB, code string) (*db.Student, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrStudentNotFound
	}

	var student db.Student
	if err := tx.Where("code = ?", code).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ResolveID 按主键查找学生档案。
func (r *StudentRepository) ResolveID(id uint) (*db.Student, error) {
	var student db.Student
	if err := r.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// List 返回全部学生档案，按学号排序。
func (r *StudentRepository) List() ([]db.Student, error) {
	var students []db.Student
	if err := r.db.Order("code ASC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Load 读取一个学生的完整数据。
func (r *StudentRepository) Load(code string) (StudentData, error) {
	student, err := r.Resolve(code)
	if err != nil {
		return StudentData{}, err
	}
	return r.load(r.db, student)
}

// LoadOrDefault 读取失败时退回内置演示数据，仪表盘类只读场景使用。
// 返回值的第二项表示是否使用了默认数据。
func (r *StudentRepository) LoadOrDefault(code string) (StudentData, bool) {
	data, err := r.Load(code)
	if err != nil {
		if !errors.Is(err, ErrStudentNotFound) {
			log.Printf("[STUDENT] load %s failed, using default dataset: %v", code, err)
		}
		return DefaultStudentData(), true
	}
	return data, false
}

func (r *StudentRepository) load(tx *gorm.DB, student *db.Student) (StudentData, error) {
	data := StudentData{
		Profile: profileFromModel(*student),
		Goals:   Goals{WeeklyTarget: student.WeeklyTarget, Completed: student.GoalsCompleted},
	}

	var attendance []db.AttendanceRecord
	if err := tx.Where("student_id = ?", student.ID).Order("date ASC, id ASC").Find(&attendance).Error; err != nil {
		return data, fmt.Errorf("load attendance: %w", err)
	}
	data.Attendance = make([]scoring.AttendanceRecord, 0, len(attendance))
	for _, row := range attendance {
		data.Attendance = append(data.Attendance, scoring.AttendanceRecord{Date: formatDate(row.Date), Percentage: row.Percentage})
	}

	var marks []db.MarksRecord
	if err := tx.Where("student_id = ?", student.ID).Order("date ASC, id ASC").Find(&marks).Error; err != nil {
		return data, fmt.Errorf("load marks: %w", err)
	}
	data.Marks = make([]scoring.MarksRecord, 0, len(marks))
	for _, row := range marks {
		data.Marks = append(data.Marks, scoring.MarksRecord{Date: formatDate(row.Date), Average: row.Average})
	}

	var wellBeing []db.WellBeingRecord
	if err := tx.Where("student_id = ?", student.ID).Order("date ASC").Find(&wellBeing).Error; err != nil {
		return data, fmt.Errorf("load wellbeing: %w", err)
	}
	data.WellBeing = make([]scoring.WellBeingRecord, 0, len(wellBeing))
	for _, row := range wellBeing {
		data.WellBeing = append(data.WellBeing, wellBeingFromModel(row))
	}

	var assignments []db.Assignment
	if err := tx.Where("student_id = ?", student.ID).Order("due_date ASC, created_at ASC").Find(&assignments).Error; err != nil {
		return data, fmt.Errorf("load assignments: %w", err)
	}
	data.Assignments = make([]scoring.Assignment, 0, len(assignments))
	for _, row := range assignments {
		data.Assignments = append(data.Assignments, assignmentFromModel(row))
	}

	var subjects []db.Subject
	if err := tx.Where("student_id = ?", student.ID).Order("id ASC").Find(&subjects).Error; err != nil {
		return data, fmt.Errorf("load subjects: %w", err)
	}
	data.Subjects = make([]scoring.SubjectData, 0, len(subjects))
	for _, row := range subjects {
		data.Subjects = append(data.Subjects, subjectFromModel(row))
	}

	var schedule []db.ScheduleItem
	if err := tx.Where("student_id = ?", student.ID).Order("day ASC, time ASC").Find(&schedule).Error; err != nil {
		return data, fmt.Errorf("load schedule: %w", err)
	}
	data.Schedule = make([]ScheduleItem, 0, len(schedule))
	for _, row := range schedule {
		data.Schedule = append(data.Schedule, scheduleFromModel(row))
	}

	var streaks []db.Streak
	if err := tx.Where("student_id = ?", student.ID).Order("id ASC").Find(&streaks).Error; err != nil {
		return data, fmt.Errorf("load streaks: %w", err)
	}
	data.Streaks = make([]Streak, 0, len(streaks))
	for _, row := range streaks {
		data.Streaks = append(data.Streaks, streakFromModel(row))
	}

	var reflections []db.WeeklyReflection
	if err := tx.Where("student_id = ?", student.ID).Order("week_start DESC").Find(&reflections).Error; err != nil {
		return data, fmt.Errorf("load reflections: %w", err)
	}
	data.Reflections = make([]Reflection, 0, len(reflections))
	for _, row := range reflections {
		data.Reflections = append(data.Reflections, reflectionFromModel(row))
	}

	var sessions []db.FocusSession
	if err := tx.Where("student_id = ?", student.ID).Order("completed_at DESC").Find(&sessions).Error; err != nil {
		return data, fmt.Errorf("load focus sessions: %w", err)
	}
	data.FocusSessions = make([]FocusSession, 0, len(sessions))
	for _, row := range sessions {
		data.FocusSessions = append(data.FocusSessions, focusSessionFromModel(row))
	}

	return data, nil
}

// Save 在一个事务内整体替换学生数据，学生不存在时创建。
func (r *StudentRepository) Save(data StudentData) error {
	code := strings.TrimSpace(data.Profile.ID)
	if code == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalidSnapshot)
	}
	if err := validateStudentData(data); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var student db.Student
		err := tx.Where("code = ?", code).First(&student).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find student: %w", err)
		}

		applyProfile(&student, data.Profile)
		student.WeeklyTarget = data.Goals.WeeklyTarget
		student.GoalsCompleted = clampInt(data.Goals.Completed, 0, data.Goals.WeeklyTarget)
		if err := tx.Save(&student).Error; err != nil {
			return fmt.Errorf("save student: %w", err)
		}

		if err := deleteStudentRows(tx, student.ID); err != nil {
			return err
		}
		return insertStudentRows(tx, student.ID, data)
	})
}

// EnsureDemoStudent 在演示学生不存在时写入默认数据。
func (r *StudentRepository) EnsureDemoStudent() error {
	if _, err := r.Resolve(DemoStudentCode); err == nil {
		return nil
	} else if !errors.Is(err, ErrStudentNotFound) {
		return err
	}
	return r.Save(DefaultStudentData())
}

// ExportSnapshot 把学生数据导出为单个 JSON 文档。
func (r *StudentRepository) ExportSnapshot(code string) ([]byte, error) {
	data, err := r.Load(code)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// ImportSnapshot 解析 JSON 文档，补齐缺失字段后整体保存。
func (r *StudentRepository) ImportSnapshot(raw []byte) (StudentData, error) {
	var data StudentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return StudentData{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	data = mergeWithDefaults(data)
	if err := r.Save(data); err != nil {
		return StudentData{}, err
	}
	return r.Load(data.Profile.ID)
}

func validateStudentData(data StudentData) error {
	if data.Goals.WeeklyTarget <= 0 {
		return fmt.Errorf("%w: weekly target must be positive", ErrInvalidSnapshot)
	}
	for _, record := range data.WellBeing {
		if !record.Valid() {
			return fmt.Errorf("%w: wellbeing scales must be 1-5 on %s", ErrInvalidSnapshot, record.Date)
		}
		if _, err := parseDate(record.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	for _, record := range data.Attendance {
		if _, err := parseDate(record.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	for _, record := range data.Marks {
		if _, err := parseDate(record.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	for _, assignment := range data.Assignments {
		if _, err := parseDate(assignment.DueDate); err != nil {
			return fmt.Errorf("%w: assignment %q due date: %v", ErrInvalidSnapshot, assignment.ID, err)
		}
	}
	for _, item := range data.Schedule {
		if _, err := parseDate(item.Date); err != nil {
			return fmt.Errorf("%w: schedule %q: %v", ErrInvalidSnapshot, item.Title, err)
		}
	}
	return nil
}

func deleteStudentRows(tx *gorm.DB, studentID uint) error {
	models := []interface{}{
		&db.AttendanceRecord{},
		&db.MarksRecord{},
		&db.WellBeingRecord{},
		&db.Assignment{},
		&db.Subject{},
		&db.ScheduleItem{},
		&db.Streak{},
		&db.WeeklyReflection{},
		&db.FocusSession{},
	}
	for _, model := range models {
		if err := tx.Unscoped().Where("student_id = ?", studentID).Delete(model).Error; err != nil {
			return fmt.Errorf("clear student rows: %w", err)
		}
	}
	return nil
}

func insertStudentRows(tx *gorm.DB, studentID uint, data StudentData) error {
	for _, record := range data.Attendance {
		date, _ := parseDate(record.Date)
		row := db.AttendanceRecord{StudentID: studentID, Date: date, Percentage: scoring.ClampPercent(record.Percentage)}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
	}

	for _, record := range data.Marks {
		date, _ := parseDate(record.Date)
		row := db.MarksRecord{StudentID: studentID, Date: date, Average: scoring.ClampPercent(record.Average)}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert marks: %w", err)
		}
	}

	// 同一天出现多条时保留最后一条
	wellBeingByDate := make(map[string]scoring.WellBeingRecord, len(data.WellBeing))
	order := make([]string, 0, len(data.WellBeing))
	for _, record := range data.WellBeing {
		if _, seen := wellBeingByDate[record.Date]; !seen {
			order = append(order, record.Date)
		}
		wellBeingByDate[record.Date] = record
	}
	for _, date := range order {
		record := wellBeingByDate[date]
		day, _ := parseDate(record.Date)
		row := db.WellBeingRecord{StudentID: studentID, Date: day, Mood: record.Mood, Stress: record.Stress, Sleep: record.Sleep, Motivation: record.Motivation}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert wellbeing: %w", err)
		}
	}

	for _, assignment := range data.Assignments {
		id, err := availableAssignmentID(tx, assignment.ID)
		if err != nil {
			return err
		}
		due, err := parseDate(assignment.DueDate)
		if err != nil {
			return err
		}
		row := db.Assignment{
			ID:        id,
			StudentID: studentID,
			Title:     strings.TrimSpace(assignment.Title),
			Subject:   strings.TrimSpace(assignment.Subject),
			DueDate:   due,
			Completed: assignment.Completed,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}

	for _, subject := range data.Subjects {
		row := db.Subject{
			StudentID:        studentID,
			Name:             strings.TrimSpace(subject.Name),
			Code:             strings.TrimSpace(subject.Code),
			Attendance:       scoring.ClampPercent(subject.Attendance),
			InternalMarks:    scoring.ClampPercent(subject.InternalMarks),
			AssignmentsDone:  subject.AssignmentsDone,
			TotalAssignments: subject.TotalAssignments,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert subject: %w", err)
		}
	}

	for _, item := range data.Schedule {
		day, err := parseDate(item.Date)
		if err != nil {
			return err
		}
		row := db.ScheduleItem{StudentID: studentID, Day: day, Time: item.Time, Title: item.Title, Type: item.Type}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert schedule item: %w", err)
		}
	}

	for _, streak := range data.Streaks {
		row := db.Streak{StudentID: studentID, Type: streak.Type, Current: streak.Current, Best: streak.Best}
		if last, err := parseDate(streak.LastDate); err == nil {
			row.LastDate = &last
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert streak: %w", err)
		}
	}

	for _, reflection := range data.Reflections {
		week, err := parseDate(reflection.WeekStart)
		if err != nil {
			continue
		}
		row := db.WeeklyReflection{StudentID: studentID, WeekStart: weekStart(week), WentWell: reflection.WentWell, ToImprove: reflection.ToImprove}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert reflection: %w", err)
		}
	}

	for _, session := range data.FocusSessions {
		completedAt, err := time.Parse(time.RFC3339, session.CompletedAt)
		if err != nil {
			completedAt, _ = parseDate(session.CompletedAt)
		}
		row := db.FocusSession{StudentID: studentID, Subject: session.Subject, DurationMinutes: session.DurationMinutes, CompletedAt: completedAt}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert focus session: %w", err)
		}
	}

	return nil
}

// availableAssignmentID 保留导入数据中的作业 ID，为空或已被其他学生占用时改用新的 uuid。
func availableAssignmentID(tx *gorm.DB, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return uuid.NewString(), nil
	}
	var count int64
	if err := tx.Model(&db.Assignment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return "", fmt.Errorf("check assignment id: %w", err)
	}
	if count > 0 {
		return uuid.NewString(), nil
	}
	return id, nil
}

func applyProfile(student *db.Student, profile StudentProfile) {
	student.Code = strings.TrimSpace(profile.ID)
	student.Name = strings.TrimSpace(profile.Name)
	student.Email = strings.TrimSpace(profile.Email)
	student.PhotoURL = strings.TrimSpace(profile.Photo)
	student.Course = strings.TrimSpace(profile.Course)
	student.Semester = profile.Semester
	student.Section = strings.TrimSpace(profile.Section)
	student.RollNumber = strings.TrimSpace(profile.RollNumber)
}

func profileFromModel(student db.Student) StudentProfile {
	return StudentProfile{
		ID:         student.Code,
		Name:       student.Name,
		Email:      student.Email,
		Photo:      student.PhotoURL,
		Course:     student.Course,
		Semester:   student.Semester,
		Section:    student.Section,
		RollNumber: student.RollNumber,
	}
}

func wellBeingFromModel(row db.WellBeingRecord) scoring.WellBeingRecord {
	return scoring.WellBeingRecord{
		Date:       formatDate(row.Date),
		Mood:       row.Mood,
		Stress:     row.Stress,
		Sleep:      row.Sleep,
		Motivation: row.Motivation,
	}
}

func assignmentFromModel(row db.Assignment) scoring.Assignment {
	return scoring.Assignment{
		ID:        row.ID,
		Title:     row.Title,
		Subject:   row.Subject,
		DueDate:   formatDate(row.DueDate),
		Completed: row.Completed,
	}
}

func subjectFromModel(row db.Subject) scoring.SubjectData {
	return scoring.SubjectData{
		ID:               fmt.Sprintf("%d", row.ID),
		Name:             row.Name,
		Code:             row.Code,
		Attendance:       row.Attendance,
		InternalMarks:    row.InternalMarks,
		AssignmentsDone:  row.AssignmentsDone,
		TotalAssignments: row.TotalAssignments,
	}
}

func scheduleFromModel(row db.ScheduleItem) ScheduleItem {
	return ScheduleItem{Date: formatDate(row.Day), Time: row.Time, Title: row.Title, Type: row.Type}
}

func streakFromModel(row db.Streak) Streak {
	streak := Streak{Type: row.Type, Current: row.Current, Best: row.Best}
	if row.LastDate != nil {
		streak.LastDate = formatDate(*row.LastDate)
	}
	return streak
}

func reflectionFromModel(row db.WeeklyReflection) Reflection {
	return Reflection{WeekStart: formatDate(row.WeekStart), WentWell: row.WentWell, ToImprove: row.ToImprove}
}

func focusSessionFromModel(row db.FocusSession) FocusSession {
	return FocusSession{Subject: row.Subject, DurationMinutes: row.DurationMinutes, CompletedAt: row.CompletedAt.UTC().Format(time.RFC3339)}
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(scoring.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(scoring.DateLayout)
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart 返回所在 ISO 周的周一。
func weekStart(t time.Time) time.Time {
	day := normalizeToDate(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
