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

func TestAutoSaveDraftCreatesThenOverwrites(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 3)
	session := createTestSession(t, db, user.ID, 3, nil)

	// Lần đầu: tạo mới version 1
	c, w := newTestContext(t, db, user.ID, http.MethodPost, "/api/practice/drafts", AutoSaveDraftInput{
		SessionID: &session.ID,
		Content:   "My first essay draft",
	})
	AutoSaveDraft(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var draft models.PracticeDraft
	require.NoError(t, db.Where("user_id = ? AND session_id = ?", user.ID, session.ID).
		First(&draft).Error)
	assert.Equal(t, 1, draft.Version)
	assert.Equal(t, 4, draft.WordCount)
	assert.NotNil(t, draft.AutoSavedAt)

	// Lần hai: ghi đè cùng dòng, version tăng
	c, w = newTestContext(t, db, user.ID, http.MethodPost, "/api/practice/drafts", AutoSaveDraftInput{
		SessionID: &session.ID,
		Content:   "My revised essay draft with more words",
	})
	AutoSaveDraft(c)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.PracticeDraft{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	require.NoError(t, db.First(&draft, "id = ?", draft.ID).Error)
	assert.Equal(t, 2, draft.Version)
	assert.Equal(t, 7, draft.WordCount)
	assert.Equal(t, "My revised essay draft with more words", draft.Content)
}

func TestAutoSaveDraftRejectedForTerminalSession(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 3)
	session := createTestSession(t, db, user.ID, 3, nil)

	require.NoError(t, db.Model(session).Update("status", models.StatusCompleted).Error)

	c, w := newTestContext(t, db, user.ID, http.MethodPost, "/api/practice/drafts", AutoSaveDraftInput{
		SessionID: &session.ID,
		Content:   "too late",
	})
	AutoSaveDraft(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDraftOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db)
	intruder := seedUser(t, db)

	draft := models.PracticeDraft{
		UserID:  owner.ID,
		Content: "private draft",
	}
	require.NoError(t, db.Create(&draft).Error)

	c, w := newTestContext(t, db, intruder.ID, http.MethodGet,
		"/api/practice/drafts/"+draft.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: draft.ID.String()}}
	GetDraft(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newTestContext(t, db, owner.ID, http.MethodGet,
		"/api/practice/drafts/"+draft.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: draft.ID.String()}}
	GetDraft(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Draft models.PracticeDraft `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "private draft", resp.Draft.Content)
}

func TestDeleteDraft(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)

	draft := models.PracticeDraft{
		UserID:  user.ID,
		Content: "to be deleted",
	}
	require.NoError(t, db.Create(&draft).Error)

	c, w := newTestContext(t, db, user.ID, http.MethodDelete,
		"/api/practice/drafts/"+draft.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: draft.ID.String()}}
	DeleteDraft(c)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.PracticeDraft{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
