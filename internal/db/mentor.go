package db

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MentorAssignment 把学生分配给导师，同一对组合只能存在一次。
type MentorAssignment struct {
	gorm.Model
	MentorID  uint `gorm:"index:idx_mentor_student,unique;not null"`
	StudentID uint `gorm:"index:idx_mentor_student,unique;not null"`
	Mentor    User    `gorm:"constraint:OnDelete:CASCADE"`
	Student   Student `gorm:"constraint:OnDelete:CASCADE"`
}

// RiskAssessment 保存最近的风险预测结果。
// Recommendations 与 SubjectRisks 以 JSON 原样存储。
type RiskAssessment struct {
	gorm.Model
	StudentID       uint   `gorm:"index;not null"`
	RiskLevel       string `gorm:"size:16;index"`
	Source          string `gorm:"size:16"`
	FallbackReason  string
	Explanation     string         `gorm:"type:text"`
	Recommendations datatypes.JSON `gorm:"type:json"`
	SubjectRisks    datatypes.JSON `gorm:"type:json"`
	Sequence        uint64
}

// Document 是通用文档表，承载按集合划分的 JSON 记录。
// Collection + Key 唯一。
type Document struct {
	gorm.Model
	Collection string         `gorm:"size:64;index:idx_document_key,unique;not null"`
	Key        string         `gorm:"size:64;index:idx_document_key,unique;not null"`
	Body       datatypes.JSON `gorm:"type:json"`
}
