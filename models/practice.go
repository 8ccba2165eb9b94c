package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionMode string

const (
	ModePractice SessionMode = "practice"
	ModeMockTest SessionMode = "mock_test"
	ModeReview   SessionMode = "review"
)

func (m SessionMode) Valid() bool {
	switch m {
	case ModePractice, ModeMockTest, ModeReview:
		return true
	}
	return false
}

type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusPaused     SessionStatus = "paused"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
	StatusExpired    SessionStatus = "expired"
)

// IsTerminal: phiên ở trạng thái kết thúc thì không được ghi thêm gì nữa
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusExpired
}

// SessionSettings thay cho settings JSON tự do: mỗi kỹ năng chỉ có một số
// trường hợp lệ, kiểm tra được ngay khi tạo phiên.
type SessionSettings struct {
	Part *int `json:"part,omitempty"` // reading/listening/speaking: part 1..n
	Task *int `json:"task,omitempty"` // writing: task 1 hoặc 2
}

func (s *SessionSettings) ValidateForSkill(skill Skill) error {
	if s == nil {
		return nil
	}
	switch skill {
	case SkillReading, SkillListening, SkillSpeaking:
		if s.Task != nil {
			return errors.New("trường task chỉ dùng cho kỹ năng writing")
		}
		if s.Part != nil && (*s.Part < 1 || *s.Part > 4) {
			return errors.New("part phải nằm trong khoảng 1-4")
		}
	case SkillWriting:
		if s.Part != nil {
			return errors.New("trường part không dùng cho kỹ năng writing")
		}
		if s.Task != nil && (*s.Task < 1 || *s.Task > 2) {
			return errors.New("task phải là 1 hoặc 2")
		}
	}
	return nil
}

// PracticeSession là một lượt luyện tập / thi thử của học viên.
// Vòng đời: in_progress ⇄ paused, kết thúc ở completed/abandoned/expired.
type PracticeSession struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_practice_sessions_user_status,priority:1" json:"user_id"`
	User   User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	SectionID *uuid.UUID   `gorm:"type:uuid" json:"section_id,omitempty"`
	Section   *ExamSection `gorm:"foreignKey:SectionID;references:ID;constraint:OnDelete:SET NULL;" json:"section,omitempty"`

	Skill  Skill         `gorm:"type:varchar(20);not null;index:idx_practice_sessions_skill_level,priority:1" json:"skill"`
	Level  Level         `gorm:"type:varchar(5);not null;index:idx_practice_sessions_skill_level,priority:2" json:"level"`
	Mode   SessionMode   `gorm:"type:varchar(20);default:'practice'" json:"mode"`
	Status SessionStatus `gorm:"type:varchar(20);default:'in_progress';index:idx_practice_sessions_user_status,priority:2" json:"status"`

	TotalQuestions       int      `gorm:"default:0" json:"total_questions"`
	AnsweredCount        int      `gorm:"default:0" json:"answered_count"`
	CorrectCount         int      `gorm:"default:0" json:"correct_count"`
	CurrentQuestionIndex int      `gorm:"default:0" json:"current_question_index"`
	Score                *float64 `gorm:"type:decimal(5,2)" json:"score,omitempty"`
	MaxScore             *float64 `gorm:"type:decimal(5,2)" json:"max_score,omitempty"`

	TimeLimit *int `json:"time_limit,omitempty"` // giây
	TimeSpent int  `gorm:"default:0" json:"time_spent"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	QuestionOrder []string         `gorm:"serializer:json" json:"question_order,omitempty"`
	Settings      *SessionSettings `gorm:"serializer:json" json:"settings,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Answers []PracticeAnswer `gorm:"foreignKey:SessionID" json:"answers,omitempty"`
}

func (p *PracticeSession) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PracticeAnswer: một dòng cho mỗi (session, question), ghi đè khi nộp lại
type PracticeAnswer struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_practice_answers_session_question,priority:1;index:idx_practice_answers_session" json:"session_id"`
	Session   PracticeSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`

	QuestionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_practice_answers_session_question,priority:2" json:"question_id"`
	Question   Question  `gorm:"foreignKey:QuestionID;references:ID;constraint:OnDelete:CASCADE;" json:"question,omitempty"`

	Answer           *string    `gorm:"type:text" json:"answer,omitempty"`
	SelectedOptionID *uuid.UUID `gorm:"type:uuid" json:"selected_option_id,omitempty"`

	// IsCorrect = nil nghĩa là chưa chấm (essay/speaking chờ AI)
	IsCorrect *bool   `json:"is_correct,omitempty"`
	Score     float64 `gorm:"type:decimal(5,2);default:0" json:"score"`
	MaxScore  float64 `gorm:"type:decimal(5,2);default:1" json:"max_score"`

	AIFeedback *string `gorm:"type:text" json:"ai_feedback,omitempty"`
	AudioURL   *string `gorm:"size:500" json:"audio_url,omitempty"` // bài nói đã ghi âm

	TimeSpent  int        `gorm:"default:0" json:"time_spent"` // giây, cộng dồn
	IsFlagged  bool       `gorm:"default:false" json:"is_flagged"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PracticeAnswer) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PracticeDraft: bản nháp tự lưu của bài viết. Mỗi lần autosave ghi đè nội
// dung cũ và tăng version, không giữ lịch sử.
type PracticeDraft struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	SessionID *uuid.UUID       `gorm:"type:uuid" json:"session_id,omitempty"`
	Session   *PracticeSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`

	QuestionID *uuid.UUID `gorm:"type:uuid" json:"question_id,omitempty"`
	Question   *Question  `gorm:"foreignKey:QuestionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`

	Content     string     `gorm:"type:text;not null" json:"content"`
	WordCount   int        `gorm:"default:0" json:"word_count"`
	Version     int        `gorm:"default:1" json:"version"`
	AutoSavedAt *time.Time `json:"auto_saved_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PracticeDraft) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
