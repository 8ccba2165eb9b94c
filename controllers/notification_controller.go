package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/ws"
)

// notifySessionCompleted tạo thông báo hoàn thành phiên và đẩy realtime.
// Thông báo là best-effort, lỗi chỉ log chứ không fail request chính.
func notifySessionCompleted(db *gorm.DB, session *models.PracticeSession) {
	score := 0.0
	if session.Score != nil {
		score = *session.Score
	}

	notification := models.Notification{
		UserID:    session.UserID,
		Title:     "Hoàn thành phiên luyện tập",
		Message:   fmt.Sprintf("Bạn đã hoàn thành phiên %s %s: đúng %d/%d câu, %.1f điểm", session.Skill, session.Level, session.CorrectCount, session.TotalQuestions, score),
		Type:      "session_completed",
		SessionID: &session.ID,
	}
	if err := db.Create(&notification).Error; err != nil {
		logrus.WithError(err).Error("Không tạo được thông báo hoàn thành phiên")
		return
	}

	ws.H.SendToUser(session.UserID.String(), ws.Event{
		Type:    "notification",
		Payload: notification,
	})
}

// notifyGradingDone báo kết quả AI chấm xong bài viết / bài nói
func notifyGradingDone(db *gorm.DB, answer *models.PracticeAnswer) {
	var session models.PracticeSession
	if err := db.First(&session, "id = ?", answer.SessionID).Error; err != nil {
		logrus.WithError(err).Error("Không đọc được phiên khi tạo thông báo chấm bài")
		return
	}

	notification := models.Notification{
		UserID:    session.UserID,
		Title:     "Đã có kết quả chấm bài",
		Message:   fmt.Sprintf("AI đã chấm xong bài của bạn: %.1f/%.0f điểm", answer.Score, answer.MaxScore),
		Type:      "grading_done",
		SessionID: &session.ID,
	}
	if err := db.Create(&notification).Error; err != nil {
		logrus.WithError(err).Error("Không tạo được thông báo chấm bài")
		return
	}

	ws.H.SendToUser(session.UserID.String(), ws.Event{
		Type:    "notification",
		Payload: notification,
	})
}

// Danh sách thông báo của user
func GetNotifications(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	query := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	limit := 20
	if v, err := parsePositiveQueryInt(c, "limit"); err == nil && v > 0 {
		limit = v
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy thông báo"})
		return
	}

	var unreadCount int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unreadCount)

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unreadCount,
	})
}

// Đánh dấu một thông báo đã đọc
func MarkNotificationRead(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	var notification models.Notification
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&notification).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thông báo"})
		return
	}

	now := time.Now()
	notification.IsRead = true
	notification.ReadAt = &now
	if err := db.Save(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật thông báo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã đánh dấu đã đọc", "notification": notification})
}

// Đánh dấu tất cả thông báo đã đọc
func MarkAllNotificationsRead(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	now := time.Now()
	result := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật thông báo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã đánh dấu tất cả đã đọc",
		"updated": result.RowsAffected,
	})
}

// Xoá một thông báo
func DeleteNotification(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	result := db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xoá thông báo"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thông báo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã xoá thông báo"})
}
