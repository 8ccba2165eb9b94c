package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
)

type AutoSaveDraftInput struct {
	SessionID  *uuid.UUID `json:"session_id"`
	QuestionID *uuid.UUID `json:"question_id"`
	Content    string     `json:"content"`
}

// Tự lưu bản nháp bài viết. Mỗi (user, session, question) giữ đúng một bản
// nháp: lưu lại thì ghi đè nội dung và tăng version.
func AutoSaveDraft(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	var input AutoSaveDraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Nháp gắn với phiên thì phiên phải còn ghi được
	if input.SessionID != nil {
		session, err := getSessionForUser(db, *input.SessionID, userUUID)
		if err != nil {
			respondSessionError(c, err)
			return
		}
		if session.Status.IsTerminal() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên luyện tập đã kết thúc"})
			return
		}
	}

	now := time.Now()
	wordCount := len(strings.Fields(input.Content))

	query := db.Where("user_id = ?", userUUID)
	if input.SessionID != nil {
		query = query.Where("session_id = ?", *input.SessionID)
	} else {
		query = query.Where("session_id IS NULL")
	}
	if input.QuestionID != nil {
		query = query.Where("question_id = ?", *input.QuestionID)
	} else {
		query = query.Where("question_id IS NULL")
	}

	var draft models.PracticeDraft
	findErr := query.First(&draft).Error
	if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc bản nháp"})
		return
	}

	var saveErr error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		draft = models.PracticeDraft{
			UserID:      userUUID,
			SessionID:   input.SessionID,
			QuestionID:  input.QuestionID,
			Content:     input.Content,
			WordCount:   wordCount,
			Version:     1,
			AutoSavedAt: &now,
		}
		saveErr = db.Create(&draft).Error
	} else {
		draft.Content = input.Content
		draft.WordCount = wordCount
		draft.Version++
		draft.AutoSavedAt = &now
		saveErr = db.Save(&draft).Error
	}

	// Autosave là best-effort: lưu lỗi thì log và để client thử lại ở
	// nhịp sau, không trả 500 làm gián đoạn bài viết.
	if saveErr != nil {
		logrus.WithError(saveErr).Warn("Autosave bản nháp thất bại")
		c.JSON(http.StatusOK, gin.H{"saved": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã lưu bản nháp",
		"saved":   true,
		"draft": gin.H{
			"id":            draft.ID,
			"version":       draft.Version,
			"word_count":    draft.WordCount,
			"auto_saved_at": draft.AutoSavedAt,
		},
	})
}

// Lấy một bản nháp theo id
func GetDraft(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	draftUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "draft_id không hợp lệ"})
		return
	}

	var draft models.PracticeDraft
	if err := db.First(&draft, "id = ?", draftUUID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bản nháp"})
		return
	}
	if draft.UserID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền truy cập bản nháp này"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// Lấy danh sách bản nháp của user, lọc theo session nếu có
func GetUserDrafts(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	query := db.Where("user_id = ?", userUUID)
	if sessionID := c.Query("session_id"); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}

	var drafts []models.PracticeDraft
	if err := query.Order("updated_at DESC").Find(&drafts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách bản nháp"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"drafts": drafts, "total": len(drafts)})
}

// Xoá toàn bộ bản nháp của một phiên (dọn sau khi nộp bài)
func DeleteSessionDrafts(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	if _, err := getSessionForUser(db, sessionUUID, userUUID); err != nil {
		respondSessionError(c, err)
		return
	}

	result := db.Where("user_id = ? AND session_id = ?", userUUID, sessionUUID).
		Delete(&models.PracticeDraft{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xoá bản nháp"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã xoá bản nháp của phiên",
		"deleted": result.RowsAffected,
	})
}

// Xoá bản nháp (thường sau khi đã nộp bài viết)
func DeleteDraft(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	draftUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "draft_id không hợp lệ"})
		return
	}

	var draft models.PracticeDraft
	if err := db.First(&draft, "id = ?", draftUUID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bản nháp"})
		return
	}
	if draft.UserID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền xoá bản nháp này"})
		return
	}

	if err := db.Delete(&draft).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xoá bản nháp"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã xoá bản nháp"})
}
