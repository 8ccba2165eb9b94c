package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRoom: phòng trao đổi giữa học viên và giáo viên
type ChatRoom struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	Creator   User      `gorm:"foreignKey:CreatedBy;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Members  []User        `gorm:"many2many:chat_room_members;" json:"members,omitempty"`
	Messages []ChatMessage `gorm:"foreignKey:RoomID" json:"messages,omitempty"`
}

func (r *ChatRoom) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type ChatMessage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID   uuid.UUID `gorm:"type:uuid;not null;index" json:"room_id"`
	Room     ChatRoom  `gorm:"foreignKey:RoomID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	SenderID uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Sender   User      `gorm:"foreignKey:SenderID;references:ID;constraint:OnDelete:CASCADE;" json:"sender,omitempty"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	SentAt   time.Time `gorm:"autoCreateTime" json:"sent_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
