package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/scoring"
	"gorm.io/gorm"
)

var (
	// ErrAssignmentNotFound 在作业不存在或不属于该学生时返回
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentTitleRequired 表示作业标题为空
	ErrAssignmentTitleRequired = errors.New("assignment title is required")
	// ErrInvalidWeeklyTarget 表示每周目标不是正数
	ErrInvalidWeeklyTarget = errors.New("weekly target must be positive")
)

// AssignmentInput 定义创建/更新作业时可配置字段
type AssignmentInput struct {
	Title   string
	Subject string
	DueDate string
}

// ToggleResult 是一次完成状态切换后的作业与目标
type ToggleResult struct {
	Assignment scoring.Assignment `json:"assignment"`
	Goals      Goals              `json:"goals"`
	Streak     *Streak            `json:"streak,omitempty"`
}

// AssignmentService 负责作业的增删改查与完成状态切换。
// 切换完成会同步调整每周目标计数，计数始终落在 [0, WeeklyTarget]。
type AssignmentService struct {
	db         *gorm.DB
	students   *StudentRepository
	publisher  events.Publisher
	resetOnGap bool
	now        func() time.Time
}

// NewAssignmentService 构造 AssignmentService
func NewAssignmentService(gdb *gorm.DB, students *StudentRepository) *AssignmentService {
	return &AssignmentService{db: gdb, students: students, publisher: events.NopPublisher{}, now: time.Now}
}

// SetPublisher 设置事件发布器。
func (s *AssignmentService) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.NopPublisher{}
	}
	s.publisher = p
}

// SetStreakResetOnGap 控制连续记录在间隔超限时是否重置。
func (s *AssignmentService) SetStreakResetOnGap(reset bool) { s.resetOnGap = reset }

// List 返回学生的作业，按截止日期排序
func (s *AssignmentService) List(code string) ([]scoring.Assignment, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	var rows []db.Assignment
	if err := s.db.Where("student_id = ?", student.ID).Order("due_date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	result := make([]scoring.Assignment, 0, len(rows))
	for _, row := range rows {
		result = append(result, assignmentFromModel(row))
	}
	return result, nil
}

// Create 新建作业
func (s *AssignmentService) Create(code string, input AssignmentInput) (*scoring.Assignment, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}
	due, err := validateAssignmentInput(input)
	if err != nil {
		return nil, err
	}

	row := db.Assignment{
		ID:        uuid.NewString(),
		StudentID: student.ID,
		Title:     strings.TrimSpace(input.Title),
		Subject:   strings.TrimSpace(input.Subject),
		DueDate:   due,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	result := assignmentFromModel(row)
	return &result, nil
}

// Update 更新作业标题、科目和截止日期
func (s *AssignmentService) Update(code, id string, input AssignmentInput) (*scoring.Assignment, error) {
	due, err := validateAssignmentInput(input)
	if err != nil {
		return nil, err
	}

	row, err := s.find(s.db, code, id)
	if err != nil {
		return nil, err
	}

	row.Title = strings.TrimSpace(input.Title)
	row.Subject = strings.TrimSpace(input.Subject)
	row.DueDate = due
	if err := s.db.Save(row).Error; err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}

	result := assignmentFromModel(*row)
	return &result, nil
}

// Delete 删除作业
func (s *AssignmentService) Delete(code, id string) error {
	row, err := s.find(s.db, code, id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(row).Error; err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// Toggle 切换完成状态，同时调整每周目标计数；新完成时推进 assignment 连续记录。
func (s *AssignmentService) Toggle(ctx context.Context, code, id string) (*ToggleResult, error) {
	result := &ToggleResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, code, id)
		if err != nil {
			return err
		}

		var student db.Student
		if err := tx.First(&student, row.StudentID).Error; err != nil {
			return fmt.Errorf("find student: %w", err)
		}

		now := s.now()
		row.Completed = !row.Completed
		if row.Completed {
			row.CompletedAt = &now
			student.GoalsCompleted++
		} else {
			row.CompletedAt = nil
			student.GoalsCompleted--
		}
		student.GoalsCompleted = clampInt(student.GoalsCompleted, 0, student.WeeklyTarget)

		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if err := tx.Model(&student).Update("goals_completed", student.GoalsCompleted).Error; err != nil {
			return fmt.Errorf("update goals: %w", err)
		}

		if row.Completed {
			streak, err := bumpStreak(tx, student.ID, db.StreakAssignment, now, s.resetOnGap)
			if err != nil {
				return err
			}
			converted := streakFromModel(*streak)
			result.Streak = &converted
		}

		result.Assignment = assignmentFromModel(*row)
		result.Goals = Goals{WeeklyTarget: student.WeeklyTarget, Completed: student.GoalsCompleted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.PublishBestEffort(ctx, s.publisher, events.TypeAssignmentToggled, code, result.Assignment)
	return result, nil
}

// Goals 返回每周目标
func (s *AssignmentService) Goals(code string) (Goals, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return Goals{}, err
	}
	return Goals{WeeklyTarget: student.WeeklyTarget, Completed: student.GoalsCompleted}, nil
}

// SetWeeklyTarget 修改每周目标，已完成数超过新目标时截断。
func (s *AssignmentService) SetWeeklyTarget(code string, target int) (Goals, error) {
	if target <= 0 {
		return Goals{}, ErrInvalidWeeklyTarget
	}
	student, err := s.students.Resolve(code)
	if err != nil {
		return Goals{}, err
	}

	goals := Goals{WeeklyTarget: target, Completed: clampInt(student.GoalsCompleted, 0, target)}
	if err := s.db.Model(student).Updates(map[string]interface{}{
		"weekly_target":   goals.WeeklyTarget,
		"goals_completed": goals.Completed,
	}).Error; err != nil {
		return Goals{}, fmt.Errorf("update weekly target: %w", err)
	}
	return goals, nil
}

func (s *AssignmentService) find(tx *gorm.DB, code, id string) (*db.Assignment, error) {
	student, err := s.students.resolveWith(tx, code)
	if err != nil {
		return nil, err
	}

	var row db.Assignment
	if err := tx.Where("id = ? AND student_id = ?", strings.TrimSpace(id), student.ID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &row, nil
}

func validateAssignmentInput(input AssignmentInput) (time.Time, error) {
	if strings.TrimSpace(input.Title) == "" {
		return time.Time{}, ErrAssignmentTitleRequired
	}
	if strings.TrimSpace(input.DueDate) == "" {
		return time.Time{}, nil
	}
	return parseDate(input.DueDate)
}
