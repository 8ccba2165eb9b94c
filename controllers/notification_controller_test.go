package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntloc/vstep-practice-backend/models"
)

func TestNotificationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)

	for i := 0; i < 3; i++ {
		n := models.Notification{
			UserID:  user.ID,
			Title:   "Thông báo",
			Message: "Nội dung",
			Type:    "system",
		}
		require.NoError(t, db.Create(&n).Error)
	}

	c, w := newTestContext(t, db, user.ID, http.MethodGet, "/api/notifications", nil)
	GetNotifications(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Notifications, 3)
	assert.Equal(t, int64(3), resp.UnreadCount)

	// Đọc một cái
	target := resp.Notifications[0]
	c, w = newTestContext(t, db, user.ID, http.MethodPatch,
		"/api/notifications/"+target.ID.String()+"/read", nil)
	c.Params = gin.Params{{Key: "id", Value: target.ID.String()}}
	MarkNotificationRead(c)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Notification
	require.NoError(t, db.First(&updated, "id = ?", target.ID).Error)
	assert.True(t, updated.IsRead)
	assert.NotNil(t, updated.ReadAt)

	// Đọc hết
	c, w = newTestContext(t, db, user.ID, http.MethodPatch, "/api/notifications/read-all", nil)
	MarkAllNotificationsRead(c)
	require.Equal(t, http.StatusOK, w.Code)

	var unread int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&unread)
	assert.Equal(t, int64(0), unread)
}

func TestNotificationsScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	other := seedUser(t, db)

	n := models.Notification{
		UserID:  other.ID,
		Title:   "Của người khác",
		Message: "x",
	}
	require.NoError(t, db.Create(&n).Error)

	// Không thấy trong danh sách
	c, w := newTestContext(t, db, user.ID, http.MethodGet, "/api/notifications", nil)
	GetNotifications(c)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Notifications)

	// Không xoá được của người khác
	c, w = newTestContext(t, db, user.ID, http.MethodDelete,
		"/api/notifications/"+n.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: n.ID.String()}}
	DeleteNotification(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteSessionCreatesNotification(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 3)
	session := createTestSession(t, db, user.ID, 3, nil)

	c, w := newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/complete", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	CompleteSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var notification models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, "session_completed").
		First(&notification).Error)
	require.NotNil(t, notification.SessionID)
	assert.Equal(t, session.ID, *notification.SessionID)
}
