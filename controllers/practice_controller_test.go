package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ntloc/vstep-practice-backend/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.PasswordReset{},
		&models.ExamSet{},
		&models.ExamSection{},
		&models.SectionPassage{},
		&models.QuestionTag{},
		&models.Question{},
		&models.QuestionOption{},
		&models.PracticeSession{},
		&models.PracticeAnswer{},
		&models.PracticeDraft{},
		&models.Notification{},
		&models.ChatRoom{},
		&models.ChatMessage{},
	)
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{
		FullName: "Học Viên Test",
		Email:    fmt.Sprintf("student-%s@test.local", uuid.NewString()[:8]),
		Password: "hashed",
		Role:     models.RoleStudent,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// seedQuestions tạo n câu trắc nghiệm reading B1, mỗi câu đáp án đúng là A
func seedQuestions(t *testing.T, db *gorm.DB, n int) []models.Question {
	t.Helper()
	questions := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		q := models.Question{
			Type:     models.TypeMultipleChoice,
			Skill:    models.SkillReading,
			Level:    models.LevelB1,
			Content:  fmt.Sprintf("Câu hỏi số %d?", i+1),
			Points:   1,
			IsActive: true,
		}
		require.NoError(t, db.Create(&q).Error)
		for j, label := range []string{"A", "B", "C", "D"} {
			opt := models.QuestionOption{
				QuestionID: q.ID,
				Label:      label,
				Content:    fmt.Sprintf("Lựa chọn %s", label),
				IsCorrect:  label == "A",
				OrderIndex: j,
			}
			require.NoError(t, db.Create(&opt).Error)
		}
		require.NoError(t, db.Preload("Options").First(&q, "id = ?", q.ID).Error)
		questions = append(questions, q)
	}
	return questions
}

func newTestContext(t *testing.T, db *gorm.DB, userID uuid.UUID, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	c.Request = httptest.NewRequest(method, path, &buf)
	c.Request.Header.Set("Content-Type", "application/json")

	c.Set("db", db)
	c.Set("user_id", userID.String())
	c.Set("role", string(models.RoleStudent))

	return c, w
}

func createTestSession(t *testing.T, db *gorm.DB, userID uuid.UUID, questionCount int, timeLimit *int) *models.PracticeSession {
	t.Helper()

	c, w := newTestContext(t, db, userID, http.MethodPost, "/api/practice/sessions", CreateSessionInput{
		Skill:         models.SkillReading,
		Level:         models.LevelB1,
		QuestionCount: questionCount,
		TimeLimit:     timeLimit,
	})
	CreateSession(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Session models.PracticeSession `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var session models.PracticeSession
	require.NoError(t, db.First(&session, "id = ?", resp.Session.ID).Error)
	return &session
}

func TestCreateSessionInvariants(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 10)

	timeLimit := 600
	session := createTestSession(t, db, user.ID, 5, &timeLimit)

	assert.Equal(t, models.StatusInProgress, session.Status)
	assert.Len(t, session.QuestionOrder, 5)
	assert.Equal(t, 5, session.TotalQuestions)
	assert.Equal(t, 0, session.AnsweredCount)
	assert.Equal(t, 0, session.CorrectCount)
	require.NotNil(t, session.MaxScore)
	assert.Equal(t, 5.0, *session.MaxScore)

	// Các câu trong order không trùng nhau
	seen := make(map[string]bool)
	for _, id := range session.QuestionOrder {
		assert.False(t, seen[id], "câu hỏi %s xuất hiện hai lần", id)
		seen[id] = true
	}

	// expires_at = started_at + time_limit
	require.NotNil(t, session.StartedAt)
	require.NotNil(t, session.ExpiresAt)
	assert.WithinDuration(t, session.StartedAt.Add(10*time.Minute), *session.ExpiresAt, time.Second)
}

func TestCreateSessionNotEnoughQuestions(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 3)

	c, w := newTestContext(t, db, user.ID, http.MethodPost, "/api/practice/sessions", CreateSessionInput{
		Skill:         models.SkillReading,
		Level:         models.LevelB1,
		QuestionCount: 10,
	})
	CreateSession(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Không đủ câu hỏi")

	var count int64
	db.Model(&models.PracticeSession{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateSessionInvalidSettings(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)

	task := 1
	c, w := newTestContext(t, db, user.ID, http.MethodPost, "/api/practice/sessions", CreateSessionInput{
		Skill:         models.SkillReading,
		Level:         models.LevelB1,
		QuestionCount: 5,
		Settings:      &models.SessionSettings{Task: &task}, // task chỉ cho writing
	})
	CreateSession(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func submitAnswer(t *testing.T, db *gorm.DB, userID, sessionID uuid.UUID, input SubmitAnswerInput) *httptest.ResponseRecorder {
	t.Helper()
	c, w := newTestContext(t, db, userID, http.MethodPost,
		"/api/practice/sessions/"+sessionID.String()+"/answers", input)
	c.Params = gin.Params{{Key: "id", Value: sessionID.String()}}
	SubmitAnswer(c)
	return w
}

func TestSubmitAnswerGradesAndSyncsCounters(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	session := createTestSession(t, db, user.ID, 5, nil)

	var question models.Question
	require.NoError(t, db.Preload("Options").
		First(&question, "id = ?", session.QuestionOrder[0]).Error)

	var correctOption, wrongOption *models.QuestionOption
	for i := range question.Options {
		if question.Options[i].IsCorrect {
			correctOption = &question.Options[i]
		} else if wrongOption == nil {
			wrongOption = &question.Options[i]
		}
	}
	require.NotNil(t, correctOption)
	require.NotNil(t, wrongOption)

	// Trả lời đúng
	w := submitAnswer(t, db, user.ID, session.ID, SubmitAnswerInput{
		QuestionID:       question.ID,
		SelectedOptionID: &correctOption.ID,
		TimeSpent:        30,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var answer models.PracticeAnswer
	require.NoError(t, db.Where("session_id = ? AND question_id = ?", session.ID, question.ID).
		First(&answer).Error)
	require.NotNil(t, answer.IsCorrect)
	assert.True(t, *answer.IsCorrect)
	assert.Equal(t, 1.0, answer.Score)
	assert.Equal(t, 30, answer.TimeSpent)

	var updated models.PracticeSession
	require.NoError(t, db.First(&updated, "id = ?", session.ID).Error)
	assert.Equal(t, 1, updated.AnsweredCount)
	assert.Equal(t, 1, updated.CorrectCount)

	// Nộp lại câu đó với đáp án sai: ghi đè, time_spent cộng dồn
	w = submitAnswer(t, db, user.ID, session.ID, SubmitAnswerInput{
		QuestionID:       question.ID,
		SelectedOptionID: &wrongOption.ID,
		TimeSpent:        15,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var answerCount int64
	db.Model(&models.PracticeAnswer{}).Where("session_id = ?", session.ID).Count(&answerCount)
	assert.Equal(t, int64(1), answerCount)

	require.NoError(t, db.Where("session_id = ? AND question_id = ?", session.ID, question.ID).
		First(&answer).Error)
	require.NotNil(t, answer.IsCorrect)
	assert.False(t, *answer.IsCorrect)
	assert.Equal(t, 0.0, answer.Score)
	assert.Equal(t, 45, answer.TimeSpent)

	require.NoError(t, db.First(&updated, "id = ?", session.ID).Error)
	assert.Equal(t, 1, updated.AnsweredCount)
	assert.Equal(t, 0, updated.CorrectCount)
}

func TestSubmitAnswerRejectsForeignQuestion(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	session := createTestSession(t, db, user.ID, 5, nil)

	// Câu hỏi khác không nằm trong phiên
	outside := models.Question{
		Type:     models.TypeMultipleChoice,
		Skill:    models.SkillListening,
		Level:    models.LevelB1,
		Content:  "Câu ngoài phiên?",
		Points:   1,
		IsActive: true,
	}
	require.NoError(t, db.Create(&outside).Error)

	answer := "x"
	w := submitAnswer(t, db, user.ID, session.ID, SubmitAnswerInput{
		QuestionID: outside.ID,
		Answer:     &answer,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "không thuộc phiên")
}

func TestSubmitAnswerRejectedAfterTerminal(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	questions := seedQuestions(t, db, 5)
	session := createTestSession(t, db, user.ID, 5, nil)

	require.NoError(t, db.Model(session).Updates(map[string]interface{}{
		"status":          models.StatusCompleted,
		"answered_count":  2,
		"correct_count":   1,
	}).Error)

	answer := "x"
	w := submitAnswer(t, db, user.ID, session.ID, SubmitAnswerInput{
		QuestionID: questions[0].ID,
		Answer:     &answer,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bộ đếm không đổi sau khi phiên kết thúc
	var after models.PracticeSession
	require.NoError(t, db.First(&after, "id = ?", session.ID).Error)
	assert.Equal(t, 2, after.AnsweredCount)
	assert.Equal(t, 1, after.CorrectCount)
}

func TestSessionLazyExpiryOnRead(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	timeLimit := 600
	session := createTestSession(t, db, user.ID, 5, &timeLimit)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(session).Update("expires_at", past).Error)

	c, w := newTestContext(t, db, user.ID, http.MethodGet,
		"/api/practice/sessions/"+session.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	GetSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var after models.PracticeSession
	require.NoError(t, db.First(&after, "id = ?", session.ID).Error)
	assert.Equal(t, models.StatusExpired, after.Status)
	assert.NotNil(t, after.CompletedAt)
}

func TestGetUserSessionsAppliesLazyExpiry(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	timeLimit := 600
	session := createTestSession(t, db, user.ID, 5, &timeLimit)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(session).Update("expires_at", past).Error)

	c, w := newTestContext(t, db, user.ID, http.MethodGet, "/api/practice/sessions", nil)
	GetUserSessions(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []models.PracticeSession `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, models.StatusExpired, resp.Sessions[0].Status)

	var after models.PracticeSession
	require.NoError(t, db.First(&after, "id = ?", session.ID).Error)
	assert.Equal(t, models.StatusExpired, after.Status)
	assert.NotNil(t, after.CompletedAt)
}

func TestPauseAndResumeShiftsExpiry(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	timeLimit := 600
	session := createTestSession(t, db, user.ID, 5, &timeLimit)
	originalExpiry := *session.ExpiresAt

	c, w := newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/pause", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	PauseSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var paused models.PracticeSession
	require.NoError(t, db.First(&paused, "id = ?", session.ID).Error)
	assert.Equal(t, models.StatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	// Giả lập đã tạm dừng 5 phút
	earlier := time.Now().Add(-5 * time.Minute)
	require.NoError(t, db.Model(&paused).Update("paused_at", earlier).Error)

	c, w = newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/resume", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	ResumeSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resumed models.PracticeSession
	require.NoError(t, db.First(&resumed, "id = ?", session.ID).Error)
	assert.Equal(t, models.StatusInProgress, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	require.NotNil(t, resumed.ExpiresAt)
	assert.WithinDuration(t, originalExpiry.Add(5*time.Minute), *resumed.ExpiresAt, 2*time.Second)
}

func TestResumeRequiresPausedState(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	session := createTestSession(t, db, user.ID, 5, nil)

	c, w := newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/resume", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	ResumeSession(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteSessionIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 3)
	session := createTestSession(t, db, user.ID, 3, nil)

	// Trả lời đúng một câu
	var question models.Question
	require.NoError(t, db.Preload("Options").
		First(&question, "id = ?", session.QuestionOrder[0]).Error)
	var correctOption *models.QuestionOption
	for i := range question.Options {
		if question.Options[i].IsCorrect {
			correctOption = &question.Options[i]
		}
	}
	require.NotNil(t, correctOption)
	w := submitAnswer(t, db, user.ID, session.ID, SubmitAnswerInput{
		QuestionID:       question.ID,
		SelectedOptionID: &correctOption.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	c, w := newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/complete", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	CompleteSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var completed models.PracticeSession
	require.NoError(t, db.First(&completed, "id = ?", session.ID).Error)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.Score)
	assert.Equal(t, 1.0, *completed.Score)
	assert.Equal(t, 1, completed.CorrectCount)
	require.NotNil(t, completed.CompletedAt)
	firstCompletedAt := *completed.CompletedAt

	// Gọi lại không đổi gì
	c, w = newTestContext(t, db, user.ID, http.MethodPost,
		"/api/practice/sessions/"+session.ID.String()+"/complete", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	CompleteSession(c)
	require.Equal(t, http.StatusOK, w.Code)

	var again models.PracticeSession
	require.NoError(t, db.First(&again, "id = ?", session.ID).Error)
	assert.Equal(t, firstCompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestSessionOwnershipEnforced(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db)
	intruder := seedUser(t, db)
	seedQuestions(t, db, 5)
	session := createTestSession(t, db, owner.ID, 5, nil)

	c, w := newTestContext(t, db, intruder.ID, http.MethodGet,
		"/api/practice/sessions/"+session.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	GetSession(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetSessionQuestionsKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)
	seedQuestions(t, db, 5)
	session := createTestSession(t, db, user.ID, 5, nil)

	c, w := newTestContext(t, db, user.ID, http.MethodGet,
		"/api/practice/sessions/"+session.ID.String()+"/questions", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	GetSessionQuestions(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Questions []models.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Questions, 5)
	for i, q := range resp.Questions {
		assert.Equal(t, session.QuestionOrder[i], q.ID.String())
	}
}
