package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/scoring"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyAssigned 表示学生已分配给该导师
	ErrAlreadyAssigned = errors.New("student already assigned to mentor")
	// ErrAssignmentMissing 表示导师与学生之间没有分配关系
	ErrAssignmentMissing = errors.New("mentor assignment not found")
	// ErrNotMentor 表示账号权限不足以担任导师
	ErrNotMentor = errors.New("user is not a mentor")
	// ErrUserNotFound 在账号不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidIntervention 表示干预记录缺少字段或类型未知
	ErrInvalidIntervention = errors.New("invalid intervention")
)

// MentorStudent 是导师名下的学生与当前风险
type MentorStudent struct {
	StudentID  string            `json:"studentId"`
	Name       string            `json:"name"`
	RollNumber string            `json:"rollNumber"`
	Course     string            `json:"course"`
	RiskLevel  scoring.RiskLevel `json:"riskLevel"`
	AssignedAt time.Time         `json:"assignedAt"`
}

// InterventionInput 是导师记录的一次干预
type InterventionInput struct {
	Date    string
	Type    string
	Notes   string
	Outcome string
}

// MentorService 管理导师分配与干预记录
type MentorService struct {
	db        *gorm.DB
	students  *StudentRepository
	warehouse *analytics.Warehouse
}

// NewMentorService 构造 MentorService
func NewMentorService(gdb *gorm.DB, students *StudentRepository, warehouse *analytics.Warehouse) *MentorService {
	if warehouse == nil {
		warehouse = analytics.NewMemoryWarehouse()
	}
	return &MentorService{db: gdb, students: students, warehouse: warehouse}
}

// Assign 把学生分配给导师
func (s *MentorService) Assign(mentorID uint, code string) (*db.MentorAssignment, error) {
	mentor, err := s.findMentor(mentorID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	assignment := db.MentorAssignment{MentorID: mentor.ID, StudentID: student.ID}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.MentorAssignment{}).
			Where("mentor_id = ? AND student_id = ?", mentor.ID, student.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check mentor assignment: %w", err)
		}
		if count > 0 {
			return ErrAlreadyAssigned
		}
		if err := tx.Omit("Mentor", "Student").Create(&assignment).Error; err != nil {
			return fmt.Errorf("create mentor assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Remove 解除分配
func (s *MentorService) Remove(mentorID uint, code string) error {
	student, err := s.students.Resolve(code)
	if err != nil {
		return err
	}
	result := s.db.Unscoped().Where("mentor_id = ? AND student_id = ?", mentorID, student.ID).Delete(&db.MentorAssignment{})
	if result.Error != nil {
		return fmt.Errorf("delete mentor assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAssignmentMissing
	}
	return nil
}

// ListByMentor 返回导师名下的学生，高风险在前
func (s *MentorService) ListByMentor(mentorID uint) ([]MentorStudent, error) {
	var assignments []db.MentorAssignment
	if err := s.db.Preload("Student").Where("mentor_id = ?", mentorID).Order("created_at ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("list mentor assignments: %w", err)
	}

	result := make([]MentorStudent, 0, len(assignments))
	for _, assignment := range assignments {
		entry := MentorStudent{
			StudentID:  assignment.Student.Code,
			Name:       assignment.Student.Name,
			RollNumber: assignment.Student.RollNumber,
			Course:     assignment.Student.Course,
			RiskLevel:  scoring.RiskLow,
			AssignedAt: assignment.CreatedAt,
		}
		if data, err := s.students.Load(assignment.Student.Code); err == nil {
			entry.RiskLevel = scoring.RiskLevelFromHistory(data.Attendance, data.Marks, data.WellBeing)
		} else {
			logServiceError("MENTOR", "load student "+assignment.Student.Code, err)
		}
		result = append(result, entry)
	}

	sortByRisk(result)
	return result, nil
}

// IsAssigned 判断学生是否在导师名下
func (s *MentorService) IsAssigned(mentorID uint, code string) (bool, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return false, err
	}
	var count int64
	if err := s.db.Model(&db.MentorAssignment{}).
		Where("mentor_id = ? AND student_id = ?", mentorID, student.ID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check mentor assignment: %w", err)
	}
	return count > 0, nil
}

// RecordIntervention 记录一次干预
func (s *MentorService) RecordIntervention(ctx context.Context, mentorID uint, code string, input InterventionInput) (*analytics.InterventionRow, error) {
	if _, err := s.students.Resolve(code); err != nil {
		return nil, err
	}

	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = formatDate(time.Now())
	} else if _, err := parseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntervention, err)
	}
	if strings.TrimSpace(input.Notes) == "" {
		return nil, fmt.Errorf("%w: notes are required", ErrInvalidIntervention)
	}

	row := analytics.InterventionRow{
		StudentID: code,
		MentorID:  fmt.Sprintf("%d", mentorID),
		Date:      date,
		Type:      strings.TrimSpace(input.Type),
		Notes:     strings.TrimSpace(input.Notes),
		Outcome:   strings.TrimSpace(input.Outcome),
	}
	if _, err := s.warehouse.InsertInterventions(ctx, row); err != nil {
		if errors.Is(err, analytics.ErrInvalidRow) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIntervention, err)
		}
		return nil, err
	}
	return &row, nil
}

// Interventions 返回学生的干预记录，最近的在前
func (s *MentorService) Interventions(ctx context.Context, code string, limit int) ([]analytics.InterventionRow, error) {
	if _, err := s.students.Resolve(code); err != nil {
		return nil, err
	}
	return s.warehouse.Interventions(ctx, code, limit)
}

func (s *MentorService) findMentor(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find mentor: %w", err)
	}
	if !auth.IsAtLeast(user.Role, db.RoleMentor) {
		return nil, ErrNotMentor
	}
	return &user, nil
}

var riskOrder = map[scoring.RiskLevel]int{scoring.RiskHigh: 0, scoring.RiskMedium: 1, scoring.RiskLow: 2}

func sortByRisk(students []MentorStudent) {
	sort.SliceStable(students, func(i, j int) bool {
		return riskOrder[students[i].RiskLevel] < riskOrder[students[j].RiskLevel]
	})
}
