package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
)

func seedExamSet(t *testing.T, db *gorm.DB, creator *models.User) *models.ExamSet {
	t.Helper()
	examSet := models.ExamSet{
		Title:         "Đề thi thử B1",
		Level:         models.LevelB1,
		TotalDuration: 180,
		Status:        models.ExamSetDraft,
		CreatedBy:     &creator.ID,
	}
	require.NoError(t, db.Create(&examSet).Error)
	return &examSet
}

func TestCreateQuestionValidation(t *testing.T) {
	db := setupTestDB(t)
	teacher := seedUser(t, db)

	// Loại câu hỏi không khớp kỹ năng
	c, w := newTestContext(t, db, teacher.ID, http.MethodPost, "/api/admin/questions", QuestionInput{
		Type:    models.TypeEssay,
		Skill:   models.SkillReading,
		Level:   models.LevelB1,
		Content: "Write an essay",
	})
	CreateQuestion(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "không phù hợp với kỹ năng")

	// Trắc nghiệm có 2 đáp án đúng
	c, w = newTestContext(t, db, teacher.ID, http.MethodPost, "/api/admin/questions", QuestionInput{
		Type:    models.TypeMultipleChoice,
		Skill:   models.SkillReading,
		Level:   models.LevelB1,
		Content: "Pick one",
		Options: []QuestionOptionInput{
			{Label: "A", Content: "a", IsCorrect: true},
			{Label: "B", Content: "b", IsCorrect: true},
		},
	})
	CreateQuestion(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "đúng 1 đáp án")

	// Hợp lệ
	c, w = newTestContext(t, db, teacher.ID, http.MethodPost, "/api/admin/questions", QuestionInput{
		Type:    models.TypeMultipleChoice,
		Skill:   models.SkillReading,
		Level:   models.LevelB1,
		Content: "Pick one",
		Options: []QuestionOptionInput{
			{Label: "A", Content: "a", IsCorrect: true},
			{Label: "B", Content: "b"},
			{Label: "C", Content: "c"},
			{Label: "D", Content: "d"},
		},
	})
	CreateQuestion(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Question models.Question `json:"question"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Question.Points) // mặc định 1 điểm
	assert.Len(t, resp.Question.Options, 4)
}

func TestPublishExamSetRequiresContent(t *testing.T) {
	db := setupTestDB(t)
	teacher := seedUser(t, db)
	examSet := seedExamSet(t, db, teacher)

	// Chưa có section
	c, w := newTestContext(t, db, teacher.ID, http.MethodPost,
		"/api/admin/exam-sets/"+examSet.ID.String()+"/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: examSet.ID.String()}}
	PublishExamSet(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "chưa có phần thi")

	// Có section nhưng chưa có câu hỏi
	section := models.ExamSection{
		ExamSetID: examSet.ID,
		Skill:     models.SkillReading,
		Duration:  60,
	}
	require.NoError(t, db.Create(&section).Error)

	c, w = newTestContext(t, db, teacher.ID, http.MethodPost,
		"/api/admin/exam-sets/"+examSet.ID.String()+"/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: examSet.ID.String()}}
	PublishExamSet(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "chưa có câu hỏi")

	// Thêm passage + câu hỏi rồi publish được
	passage := models.SectionPassage{SectionID: section.ID}
	require.NoError(t, db.Create(&passage).Error)
	question := models.Question{
		PassageID: &passage.ID,
		Type:      models.TypeMultipleChoice,
		Skill:     models.SkillReading,
		Level:     models.LevelB1,
		Content:   "Q1",
		Points:    1,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&question).Error)

	c, w = newTestContext(t, db, teacher.ID, http.MethodPost,
		"/api/admin/exam-sets/"+examSet.ID.String()+"/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: examSet.ID.String()}}
	PublishExamSet(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var published models.ExamSet
	require.NoError(t, db.First(&published, "id = ?", examSet.ID).Error)
	assert.Equal(t, models.ExamSetPublished, published.Status)
	assert.Equal(t, 1, published.TotalQuestions)
}

func TestUpdateSectionSkillImmutableWithQuestions(t *testing.T) {
	db := setupTestDB(t)
	teacher := seedUser(t, db)
	examSet := seedExamSet(t, db, teacher)

	section := models.ExamSection{
		ExamSetID: examSet.ID,
		Skill:     models.SkillReading,
		Duration:  60,
	}
	require.NoError(t, db.Create(&section).Error)
	passage := models.SectionPassage{SectionID: section.ID}
	require.NoError(t, db.Create(&passage).Error)
	question := models.Question{
		PassageID: &passage.ID,
		Type:      models.TypeMultipleChoice,
		Skill:     models.SkillReading,
		Level:     models.LevelB1,
		Content:   "Q1",
		IsActive:  true,
	}
	require.NoError(t, db.Create(&question).Error)

	c, w := newTestContext(t, db, teacher.ID, http.MethodPut,
		"/api/admin/sections/"+section.ID.String(), SectionInput{
			Skill:    models.SkillListening,
			Duration: 45,
		})
	c.Params = gin.Params{{Key: "id", Value: section.ID.String()}}
	UpdateSection(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "đổi kỹ năng")

	// Giữ nguyên skill thì cập nhật được
	c, w = newTestContext(t, db, teacher.ID, http.MethodPut,
		"/api/admin/sections/"+section.ID.String(), SectionInput{
			Skill:    models.SkillReading,
			Duration: 45,
		})
	c.Params = gin.Params{{Key: "id", Value: section.ID.String()}}
	UpdateSection(c)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.ExamSection
	require.NoError(t, db.First(&updated, "id = ?", section.ID).Error)
	assert.Equal(t, 45, updated.Duration)
}

func TestGetPublishedExamSetsHidesDrafts(t *testing.T) {
	db := setupTestDB(t)
	teacher := seedUser(t, db)

	draft := seedExamSet(t, db, teacher)
	published := models.ExamSet{
		Title:         "Đề đã xuất bản",
		Level:         models.LevelB1,
		TotalDuration: 180,
		Status:        models.ExamSetPublished,
		IsActive:      true,
		CreatedBy:     &teacher.ID,
	}
	require.NoError(t, db.Create(&published).Error)

	c, w := newTestContext(t, db, teacher.ID, http.MethodGet, "/api/exams", nil)
	GetPublishedExamSets(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ExamSets []models.ExamSet `json:"exam_sets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.ExamSets, 1)
	assert.Equal(t, published.ID, resp.ExamSets[0].ID)
	assert.NotEqual(t, draft.ID, resp.ExamSets[0].ID)
}
