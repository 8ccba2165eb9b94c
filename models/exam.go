package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Skill string

const (
	SkillReading   Skill = "reading"
	SkillListening Skill = "listening"
	SkillWriting   Skill = "writing"
	SkillSpeaking  Skill = "speaking"
)

func (s Skill) Valid() bool {
	switch s {
	case SkillReading, SkillListening, SkillWriting, SkillSpeaking:
		return true
	}
	return false
}

type Level string

const (
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
)

func (l Level) Valid() bool {
	switch l {
	case LevelA2, LevelB1, LevelB2, LevelC1:
		return true
	}
	return false
}

type ExamSetStatus string

const (
	ExamSetDraft     ExamSetStatus = "draft"
	ExamSetPublished ExamSetStatus = "published"
	ExamSetArchived  ExamSetStatus = "archived"
)

// ExamSet là một bộ đề hoàn chỉnh (4 kỹ năng hoặc một phần)
type ExamSet struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string        `gorm:"size:255;not null" json:"title"`
	Description    string        `gorm:"type:text" json:"description"`
	Level          Level         `gorm:"type:varchar(5);not null;index:idx_exam_sets_level_status" json:"level"`
	TotalDuration  int           `gorm:"not null" json:"total_duration"` // phút
	TotalQuestions int           `gorm:"default:0" json:"total_questions"`
	Status         ExamSetStatus `gorm:"type:varchar(20);default:'draft';index:idx_exam_sets_level_status" json:"status"`
	IsMockTest     bool          `gorm:"default:false" json:"is_mock_test"`
	IsFree         bool          `gorm:"default:false" json:"is_free"`
	IsActive       bool          `gorm:"default:true" json:"is_active"`
	AttemptCount   int           `gorm:"default:0" json:"attempt_count"`
	AverageScore   *float64      `gorm:"type:decimal(4,2)" json:"average_score,omitempty"`
	ThumbnailURL   *string       `gorm:"size:500" json:"thumbnail_url,omitempty"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	Creator   *User      `gorm:"foreignKey:CreatedBy;references:ID;constraint:OnDelete:SET NULL;" json:"creator,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Sections []ExamSection `gorm:"foreignKey:ExamSetID" json:"sections,omitempty"`
}

func (e *ExamSet) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExamSection là phần thi theo kỹ năng trong một bộ đề.
// Skill không được đổi khi đã có câu hỏi tham chiếu (kiểm tra ở controller).
type ExamSection struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExamSetID     uuid.UUID `gorm:"type:uuid;not null" json:"exam_set_id"`
	ExamSet       ExamSet   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Skill         Skill     `gorm:"type:varchar(20);not null" json:"skill"`
	Title         *string   `gorm:"size:255" json:"title,omitempty"`
	Instructions  *string   `gorm:"type:text" json:"instructions,omitempty"`
	Duration      int       `gorm:"not null" json:"duration"` // phút
	QuestionCount int       `gorm:"default:0" json:"question_count"`
	OrderIndex    int       `gorm:"default:0" json:"order_index"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Passages []SectionPassage `gorm:"foreignKey:SectionID" json:"passages,omitempty"`
}

func (e *ExamSection) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SectionPassage chứa bài đọc / bài nghe / hình ảnh của một phần thi
type SectionPassage struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID       uuid.UUID   `gorm:"type:uuid;not null" json:"section_id"`
	Section         ExamSection `gorm:"foreignKey:SectionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	Title           *string     `gorm:"size:255" json:"title,omitempty"`
	Content         *string     `gorm:"type:text" json:"content,omitempty"` // văn bản bài đọc
	AudioURL        *string     `gorm:"size:500" json:"audio_url,omitempty"`
	AudioDuration   *int        `json:"audio_duration,omitempty"` // giây
	AudioTranscript *string     `gorm:"type:text" json:"audio_transcript,omitempty"`
	ImageURL        *string     `gorm:"size:500" json:"image_url,omitempty"`
	OrderIndex      int         `gorm:"default:0" json:"order_index"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	Questions []Question `gorm:"foreignKey:PassageID" json:"questions,omitempty"`
}

func (s *SectionPassage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
