package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/ws"
)

type CreateRoomInput struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"member_ids"`
}

// Tạo phòng chat, người tạo tự động là thành viên
func CreateChatRoom(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	memberIDs := append(input.MemberIDs, userUUID.String())
	var members []models.User
	if err := db.Where("id IN ?", memberIDs).Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể truy vấn thành viên"})
		return
	}

	room := models.ChatRoom{
		Name:      input.Name,
		CreatedBy: userUUID,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Model(&room).Association("Members").Replace(&members)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo phòng chat"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tạo phòng chat thành công", "room": room})
}

// Danh sách phòng chat user là thành viên
func GetChatRooms(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	var rooms []models.ChatRoom
	err := db.
		Joins("JOIN chat_room_members ON chat_room_members.chat_room_id = chat_rooms.id").
		Where("chat_room_members.user_id = ?", userID).
		Preload("Members").
		Order("chat_rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách phòng"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "total": len(rooms)})
}

// Tham gia một phòng chat đang mở
func JoinChatRoom(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var room models.ChatRoom
	if err := db.First(&room, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phòng chat"})
		return
	}

	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Không tìm thấy người dùng"})
		return
	}

	if err := db.Model(&room).Association("Members").Append(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tham gia phòng"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã tham gia phòng chat", "room": room})
}

// requireRoomMember xác nhận user là thành viên phòng
func requireRoomMember(c *gin.Context, db *gorm.DB, roomID string) (*models.ChatRoom, bool) {
	var room models.ChatRoom
	if err := db.First(&room, "id = ?", roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phòng chat"})
		return nil, false
	}

	var count int64
	db.Table("chat_room_members").
		Where("chat_room_id = ? AND user_id = ?", room.ID, c.GetString("user_id")).
		Count(&count)
	if count == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không phải thành viên phòng này"})
		return nil, false
	}

	return &room, true
}

// Lịch sử tin nhắn của phòng
func GetChatMessages(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	room, ok := requireRoomMember(c, db, c.Param("id"))
	if !ok {
		return
	}

	limit := 50
	if v, err := parsePositiveQueryInt(c, "limit"); err == nil && v > 0 {
		limit = v
	}

	var messages []models.ChatMessage
	err := db.Where("room_id = ?", room.ID).
		Preload("Sender").
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy tin nhắn"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

type SendMessageInput struct {
	Content string `json:"content" binding:"required"`
}

// Gửi tin nhắn: lưu DB rồi broadcast cho các client trong phòng
func SendChatMessage(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	room, ok := requireRoomMember(c, db, c.Param("id"))
	if !ok {
		return
	}

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message := models.ChatMessage{
		RoomID:   room.ID,
		SenderID: userUUID,
		Content:  input.Content,
	}
	if err := db.Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể gửi tin nhắn"})
		return
	}
	db.Preload("Sender").First(&message, "id = ?", message.ID)

	ws.H.BroadcastToRoom(room.ID.String(), ws.Event{
		Type:    "chat_message",
		Payload: message,
	})

	c.JSON(http.StatusCreated, gin.H{"message": "Đã gửi tin nhắn", "chat_message": message})
}
