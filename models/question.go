package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalseNG    QuestionType = "true_false_ng"
	TypeMatching       QuestionType = "matching"
	TypeFillBlank      QuestionType = "fill_blank"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"
	TypeSpeakingTask   QuestionType = "speaking_task"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// typesBySkill liệt kê các loại câu hỏi hợp lệ cho từng kỹ năng
var typesBySkill = map[Skill][]QuestionType{
	SkillReading:   {TypeMultipleChoice, TypeTrueFalseNG, TypeMatching, TypeFillBlank},
	SkillListening: {TypeMultipleChoice, TypeTrueFalseNG, TypeFillBlank, TypeShortAnswer},
	SkillWriting:   {TypeEssay, TypeShortAnswer},
	SkillSpeaking:  {TypeSpeakingTask},
}

// TypeAllowedForSkill kiểm tra loại câu hỏi có khớp kỹ năng không
// (ví dụ essay chỉ nằm trong writing).
func TypeAllowedForSkill(t QuestionType, s Skill) bool {
	for _, allowed := range typesBySkill[s] {
		if allowed == t {
			return true
		}
	}
	return false
}

// IsObjective cho biết câu hỏi chấm được tự động hay phải chờ AI/giáo viên
func (t QuestionType) IsObjective() bool {
	return t != TypeEssay && t != TypeSpeakingTask
}

type Question struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PassageID *uuid.UUID      `gorm:"type:uuid" json:"passage_id,omitempty"`
	Passage   *SectionPassage `gorm:"foreignKey:PassageID;references:ID;constraint:OnDelete:CASCADE;" json:"passage,omitempty"`

	Type       QuestionType `gorm:"type:varchar(30);not null;index:idx_questions_skill_level_type,priority:3" json:"type"`
	Skill      Skill        `gorm:"type:varchar(20);not null;index:idx_questions_skill_level_type,priority:1" json:"skill"`
	Level      Level        `gorm:"type:varchar(5);not null;index:idx_questions_skill_level_type,priority:2" json:"level"`
	Difficulty Difficulty   `gorm:"type:varchar(10);default:'medium'" json:"difficulty"`

	Content       string  `gorm:"type:text;not null" json:"content"`
	Context       *string `gorm:"type:text" json:"context,omitempty"` // hướng dẫn bổ sung
	CorrectAnswer *string `gorm:"type:text" json:"-"`
	Explanation   *string `gorm:"type:text" json:"explanation,omitempty"`
	Points        int     `gorm:"default:1" json:"points"`
	OrderIndex    int     `gorm:"default:0" json:"order_index"`
	AudioURL      *string `gorm:"size:500" json:"audio_url,omitempty"`
	ImageURL      *string `gorm:"size:500" json:"image_url,omitempty"`
	WordLimit     *int    `json:"word_limit,omitempty"` // cho essay
	TimeLimit     *int    `json:"time_limit,omitempty"` // giây, cho speaking
	PrepTime      *int    `json:"prep_time,omitempty"`  // giây chuẩn bị trước khi nói
	IsActive      bool    `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Options []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	Tags    []QuestionTag    `gorm:"many2many:question_tag_mapping;" json:"tags,omitempty"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type QuestionOption struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null" json:"question_id"`
	Question   Question  `gorm:"foreignKey:QuestionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	Label      string    `gorm:"size:10;not null" json:"label"` // A, B, C, D
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool      `gorm:"default:false" json:"-"`
	OrderIndex int       `gorm:"default:0" json:"order_index"`
	ImageURL   *string   `gorm:"size:500" json:"image_url,omitempty"`
}

func (o *QuestionOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// QuestionTag gắn nhãn chủ đề / ngữ pháp cho câu hỏi
type QuestionTag struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;unique" json:"name"`
	Description *string   `gorm:"size:255" json:"description,omitempty"`
	Category    *string   `gorm:"size:50" json:"category,omitempty"` // topic, grammar,...
	Color       *string   `gorm:"size:7" json:"color,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *QuestionTag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
