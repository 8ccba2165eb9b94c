package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/services"
)

type QuestionOptionInput struct {
	Label      string  `json:"label" binding:"required"`
	Content    string  `json:"content" binding:"required"`
	IsCorrect  bool    `json:"is_correct"`
	OrderIndex int     `json:"order_index"`
	ImageURL   *string `json:"image_url"`
}

type QuestionInput struct {
	PassageID     *string               `json:"passage_id"`
	Type          models.QuestionType   `json:"type" binding:"required"`
	Skill         models.Skill          `json:"skill" binding:"required"`
	Level         models.Level          `json:"level" binding:"required"`
	Difficulty    models.Difficulty     `json:"difficulty"`
	Content       string                `json:"content" binding:"required"`
	Context       *string               `json:"context"`
	CorrectAnswer *string               `json:"correct_answer"`
	Explanation   *string               `json:"explanation"`
	Points        int                   `json:"points"`
	OrderIndex    int                   `json:"order_index"`
	WordLimit     *int                  `json:"word_limit"`
	TimeLimit     *int                  `json:"time_limit"`
	PrepTime      *int                  `json:"prep_time"`
	Options       []QuestionOptionInput `json:"options"`
}

func (input *QuestionInput) validate() (string, bool) {
	if !input.Skill.Valid() {
		return "Kỹ năng không hợp lệ", false
	}
	if !input.Level.Valid() {
		return "Trình độ không hợp lệ", false
	}
	if !models.TypeAllowedForSkill(input.Type, input.Skill) {
		return "Loại câu hỏi không phù hợp với kỹ năng", false
	}
	if input.Type == models.TypeMultipleChoice {
		if len(input.Options) < 2 {
			return "Câu trắc nghiệm cần ít nhất 2 lựa chọn", false
		}
		correct := 0
		for _, opt := range input.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return "Câu trắc nghiệm phải có đúng 1 đáp án đúng", false
		}
	}
	return "", true
}

// Tạo câu hỏi mới (admin/teacher)
func CreateQuestion(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input QuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg, ok := input.validate(); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	points := input.Points
	if points <= 0 {
		points = 1
	}
	difficulty := input.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}

	question := models.Question{
		Type:          input.Type,
		Skill:         input.Skill,
		Level:         input.Level,
		Difficulty:    difficulty,
		Content:       input.Content,
		Context:       input.Context,
		CorrectAnswer: input.CorrectAnswer,
		Explanation:   input.Explanation,
		Points:        points,
		OrderIndex:    input.OrderIndex,
		WordLimit:     input.WordLimit,
		TimeLimit:     input.TimeLimit,
		PrepTime:      input.PrepTime,
		IsActive:      true,
	}

	if input.PassageID != nil {
		var passage models.SectionPassage
		if err := db.First(&passage, "id = ?", *input.PassageID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Passage không tồn tại"})
			return
		}
		question.PassageID = &passage.ID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		for _, opt := range input.Options {
			option := models.QuestionOption{
				QuestionID: question.ID,
				Label:      opt.Label,
				Content:    opt.Content,
				IsCorrect:  opt.IsCorrect,
				OrderIndex: opt.OrderIndex,
				ImageURL:   opt.ImageURL,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo câu hỏi"})
		return
	}

	db.Preload("Options").First(&question, "id = ?", question.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo câu hỏi thành công", "question": question})
}

// Danh sách câu hỏi có lọc + phân trang (admin/teacher)
func GetQuestions(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	query := db.Model(&models.Question{})
	if skill := c.Query("skill"); skill != "" {
		query = query.Where("skill = ?", skill)
	}
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}
	if qType := c.Query("type"); qType != "" {
		query = query.Where("type = ?", qType)
	}
	if difficulty := c.Query("difficulty"); difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}
	if tag := c.Query("tag"); tag != "" {
		query = query.
			Joins("JOIN question_tag_mapping ON question_tag_mapping.question_id = questions.id").
			Joins("JOIN question_tags ON question_tags.id = question_tag_mapping.question_tag_id").
			Where("question_tags.name = ?", tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đếm câu hỏi"})
		return
	}

	limit := 20
	if v, err := parsePositiveQueryInt(c, "limit"); err == nil && v > 0 {
		limit = v
	}
	offset := 0
	if v, err := parsePositiveQueryInt(c, "offset"); err == nil && v > 0 {
		offset = v
	}

	var questions []models.Question
	if err := query.Preload("Options").Preload("Tags").
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&questions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách câu hỏi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions, "total": total})
}

func GetQuestion(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.Preload("Options").Preload("Tags").
		First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": question})
}

func UpdateQuestion(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	var input QuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg, ok := input.validate(); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	question.Type = input.Type
	question.Skill = input.Skill
	question.Level = input.Level
	if input.Difficulty != "" {
		question.Difficulty = input.Difficulty
	}
	question.Content = input.Content
	question.Context = input.Context
	question.CorrectAnswer = input.CorrectAnswer
	question.Explanation = input.Explanation
	if input.Points > 0 {
		question.Points = input.Points
	}
	question.OrderIndex = input.OrderIndex
	question.WordLimit = input.WordLimit
	question.TimeLimit = input.TimeLimit
	question.PrepTime = input.PrepTime

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&question).Error; err != nil {
			return err
		}
		if input.Options == nil {
			return nil
		}
		// Ghi đè toàn bộ lựa chọn khi request có options
		if err := tx.Where("question_id = ?", question.ID).
			Delete(&models.QuestionOption{}).Error; err != nil {
			return err
		}
		for _, opt := range input.Options {
			option := models.QuestionOption{
				QuestionID: question.ID,
				Label:      opt.Label,
				Content:    opt.Content,
				IsCorrect:  opt.IsCorrect,
				OrderIndex: opt.OrderIndex,
				ImageURL:   opt.ImageURL,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật câu hỏi"})
		return
	}

	db.Preload("Options").First(&question, "id = ?", question.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật câu hỏi thành công", "question": question})
}

// Vô hiệu hoá câu hỏi thay vì xoá cứng: câu đã dùng trong phiên cũ vẫn
// tra cứu được.
func DeactivateQuestion(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	question.IsActive = false
	if err := db.Save(&question).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể vô hiệu hoá câu hỏi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã vô hiệu hoá câu hỏi"})
}

// ===== Tag =====

type TagInput struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Color       *string `json:"color"`
}

func CreateTag(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input TagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag := models.QuestionTag{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Color:       input.Color,
	}
	if err := db.Create(&tag).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Tag đã tồn tại hoặc không hợp lệ"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tạo tag thành công", "tag": tag})
}

func GetTags(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	query := db.Model(&models.QuestionTag{})
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var tags []models.QuestionTag
	if err := query.Order("name ASC").Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags, "total": len(tags)})
}

type AttachTagsInput struct {
	TagIDs []string `json:"tag_ids" binding:"required"`
}

// Gắn tag cho câu hỏi (thay toàn bộ danh sách tag hiện tại)
func AttachTags(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	var input AttachTagsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tags []models.QuestionTag
	if err := db.Where("id IN ?", input.TagIDs).Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể truy vấn tag"})
		return
	}
	if len(tags) != len(input.TagIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Một số tag không tồn tại"})
		return
	}

	if err := db.Model(&question).Association("Tags").Replace(&tags); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể gắn tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã gắn tag cho câu hỏi", "tags": tags})
}

func DetachTag(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	var tag models.QuestionTag
	if err := db.First(&tag, "id = ?", c.Param("tag_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy tag"})
		return
	}

	if err := db.Model(&question).Association("Tags").Delete(&tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể gỡ tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã gỡ tag khỏi câu hỏi"})
}

// ===== Import đề từ PDF =====

// Upload PDF đề thi, trích text rồi nhờ AI sinh câu hỏi trắc nghiệm.
// Câu hỏi sinh ra ở trạng thái is_active=false chờ giáo viên duyệt.
func ImportQuestionsFromPDF(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	skill := models.Skill(c.PostForm("skill"))
	level := models.Level(c.PostForm("level"))
	if !skill.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kỹ năng không hợp lệ"})
		return
	}
	if !level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trình độ không hợp lệ"})
		return
	}

	count := 10
	if v, err := parsePositiveFormInt(c, "count"); err == nil && v > 0 && v <= 30 {
		count = v
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file PDF"})
		return
	}
	if fileHeader.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File PDF vượt quá 10MB"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không đọc được file PDF"})
		return
	}
	defer file.Close()

	text, err := services.ExtractTextFromPDF(file)
	if err != nil {
		logrus.WithError(err).Error("Trích text từ PDF thất bại")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không trích xuất được nội dung PDF"})
		return
	}
	if len(text) < 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nội dung PDF quá ngắn để tạo câu hỏi"})
		return
	}

	generated, err := services.GenerateQuestionsFromText(text, string(skill), string(level), count)
	if err != nil {
		logrus.WithError(err).Error("Sinh câu hỏi từ PDF thất bại")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Hệ thống AI đang bận, vui lòng thử lại"})
		return
	}

	var created []models.Question
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, g := range generated {
			difficulty := models.Difficulty(g.Difficulty)
			if difficulty != models.DifficultyEasy && difficulty != models.DifficultyHard {
				difficulty = models.DifficultyMedium
			}
			answer := g.Answer
			explanation := g.Explanation
			question := models.Question{
				Type:          models.TypeMultipleChoice,
				Skill:         skill,
				Level:         level,
				Difficulty:    difficulty,
				Content:       g.Content,
				CorrectAnswer: &answer,
				Explanation:   &explanation,
				Points:        1,
				IsActive:      false, // chờ duyệt
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
			for i, opt := range g.Options {
				option := models.QuestionOption{
					QuestionID: question.ID,
					Label:      opt.Label,
					Content:    opt.Content,
					IsCorrect:  opt.IsCorrect,
					OrderIndex: i,
				}
				if err := tx.Create(&option).Error; err != nil {
					return err
				}
			}
			created = append(created, question)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu câu hỏi đã sinh"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Đã sinh câu hỏi từ PDF, chờ duyệt trước khi dùng",
		"questions": created,
		"total":     len(created),
	})
}

// Duyệt câu hỏi đã import: bật is_active
func ApproveQuestion(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var question models.Question
	if err := db.First(&question, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	question.IsActive = true
	if err := db.Save(&question).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể duyệt câu hỏi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã duyệt câu hỏi", "question": question})
}
