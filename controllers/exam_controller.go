package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/services"
	"github.com/ntloc/vstep-practice-backend/utils"
)

// ===== Bộ đề (public) =====

// Danh sách bộ đề đã xuất bản, lọc theo trình độ
func GetPublishedExamSets(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	query := db.Model(&models.ExamSet{}).
		Where("status = ? AND is_active = ?", models.ExamSetPublished, true)

	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}
	if c.Query("mock_test") == "true" {
		query = query.Where("is_mock_test = ?", true)
	}

	var examSets []models.ExamSet
	if err := query.Order("created_at DESC").Find(&examSets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách bộ đề"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exam_sets": examSets, "total": len(examSets)})
}

// Chi tiết bộ đề kèm sections và passages
func GetExamSet(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var examSet models.ExamSet
	err := db.Preload("Sections", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_index ASC")
	}).Preload("Sections.Passages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_index ASC")
	}).First(&examSet, "id = ?", c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
		return
	}

	// Bộ đề chưa xuất bản chỉ admin/teacher xem được
	if examSet.Status != models.ExamSetPublished {
		role := c.GetString("role")
		if role != string(models.RoleAdmin) && role != string(models.RoleTeacher) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"exam_set": examSet})
}

// ===== Bộ đề (admin/teacher) =====

type ExamSetInput struct {
	Title         string       `json:"title" binding:"required"`
	Description   string       `json:"description"`
	Level         models.Level `json:"level" binding:"required"`
	TotalDuration int          `json:"total_duration" binding:"required"`
	IsMockTest    bool         `json:"is_mock_test"`
	IsFree        bool         `json:"is_free"`
	ThumbnailURL  *string      `json:"thumbnail_url"`
}

func CreateExamSet(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input ExamSetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trình độ không hợp lệ"})
		return
	}

	creatorID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	examSet := models.ExamSet{
		Title:         input.Title,
		Description:   input.Description,
		Level:         input.Level,
		TotalDuration: input.TotalDuration,
		Status:        models.ExamSetDraft,
		IsMockTest:    input.IsMockTest,
		IsFree:        input.IsFree,
		ThumbnailURL:  input.ThumbnailURL,
		CreatedBy:     &creatorID,
	}
	if err := db.Create(&examSet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo bộ đề"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tạo bộ đề thành công", "exam_set": examSet})
}

func UpdateExamSet(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var examSet models.ExamSet
	if err := db.First(&examSet, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
		return
	}

	var input ExamSetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trình độ không hợp lệ"})
		return
	}

	examSet.Title = input.Title
	examSet.Description = input.Description
	examSet.Level = input.Level
	examSet.TotalDuration = input.TotalDuration
	examSet.IsMockTest = input.IsMockTest
	examSet.IsFree = input.IsFree
	examSet.ThumbnailURL = input.ThumbnailURL

	if err := db.Save(&examSet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật bộ đề"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật bộ đề thành công", "exam_set": examSet})
}

// Xuất bản bộ đề: phải có ít nhất một section có câu hỏi
func PublishExamSet(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var examSet models.ExamSet
	if err := db.Preload("Sections").First(&examSet, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
		return
	}

	if len(examSet.Sections) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bộ đề chưa có phần thi nào, không thể xuất bản"})
		return
	}

	var questionCount int64
	err := db.Model(&models.Question{}).
		Joins("JOIN section_passages ON section_passages.id = questions.passage_id").
		Joins("JOIN exam_sections ON exam_sections.id = section_passages.section_id").
		Where("exam_sections.exam_set_id = ?", examSet.ID).
		Count(&questionCount).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể kiểm tra câu hỏi"})
		return
	}
	if questionCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bộ đề chưa có câu hỏi nào, không thể xuất bản"})
		return
	}

	examSet.Status = models.ExamSetPublished
	examSet.TotalQuestions = int(questionCount)
	if err := db.Save(&examSet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xuất bản bộ đề"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã xuất bản bộ đề", "exam_set": examSet})
}

func ArchiveExamSet(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var examSet models.ExamSet
	if err := db.First(&examSet, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
		return
	}

	examSet.Status = models.ExamSetArchived
	if err := db.Save(&examSet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu trữ bộ đề"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã lưu trữ bộ đề", "exam_set": examSet})
}

// ===== Phần thi (section) =====

type SectionInput struct {
	Skill        models.Skill `json:"skill" binding:"required"`
	Title        *string      `json:"title"`
	Instructions *string      `json:"instructions"`
	Duration     int          `json:"duration" binding:"required"`
	OrderIndex   int          `json:"order_index"`
}

func CreateSection(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var examSet models.ExamSet
	if err := db.First(&examSet, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bộ đề"})
		return
	}

	var input SectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Skill.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kỹ năng không hợp lệ"})
		return
	}

	section := models.ExamSection{
		ExamSetID:    examSet.ID,
		Skill:        input.Skill,
		Title:        input.Title,
		Instructions: input.Instructions,
		Duration:     input.Duration,
		OrderIndex:   input.OrderIndex,
	}
	if err := db.Create(&section).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo phần thi"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tạo phần thi thành công", "section": section})
}

// Cập nhật phần thi. Skill không đổi được khi đã có câu hỏi tham chiếu.
func UpdateSection(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var section models.ExamSection
	if err := db.First(&section, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phần thi"})
		return
	}

	var input SectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Skill.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kỹ năng không hợp lệ"})
		return
	}

	if input.Skill != section.Skill {
		var questionCount int64
		err := db.Model(&models.Question{}).
			Joins("JOIN section_passages ON section_passages.id = questions.passage_id").
			Where("section_passages.section_id = ?", section.ID).
			Count(&questionCount).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể kiểm tra câu hỏi"})
			return
		}
		if questionCount > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Không thể đổi kỹ năng khi phần thi đã có câu hỏi"})
			return
		}
	}

	section.Skill = input.Skill
	section.Title = input.Title
	section.Instructions = input.Instructions
	section.Duration = input.Duration
	section.OrderIndex = input.OrderIndex

	if err := db.Save(&section).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật phần thi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật phần thi thành công", "section": section})
}

func DeleteSection(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var section models.ExamSection
	if err := db.First(&section, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phần thi"})
		return
	}

	if err := db.Delete(&section).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xoá phần thi"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã xoá phần thi"})
}

// ===== Passage (bài đọc / bài nghe) =====

type PassageInput struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	AudioTranscript *string `json:"audio_transcript"`
	AudioDuration   *int    `json:"audio_duration"`
	OrderIndex      int     `json:"order_index"`
}

func CreatePassage(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var section models.ExamSection
	if err := db.First(&section, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phần thi"})
		return
	}

	var input PassageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passage := models.SectionPassage{
		SectionID:       section.ID,
		Title:           input.Title,
		Content:         input.Content,
		AudioTranscript: input.AudioTranscript,
		AudioDuration:   input.AudioDuration,
		OrderIndex:      input.OrderIndex,
	}
	if err := db.Create(&passage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo passage"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tạo passage thành công", "passage": passage})
}

func UpdatePassage(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var passage models.SectionPassage
	if err := db.First(&passage, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy passage"})
		return
	}

	var input PassageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passage.Title = input.Title
	passage.Content = input.Content
	passage.AudioTranscript = input.AudioTranscript
	passage.AudioDuration = input.AudioDuration
	passage.OrderIndex = input.OrderIndex

	if err := db.Save(&passage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật passage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật passage thành công", "passage": passage})
}

func DeletePassage(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var passage models.SectionPassage
	if err := db.First(&passage, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy passage"})
		return
	}

	// Dọn file trên storage trước, lỗi chỉ log chứ không chặn xoá
	if passage.AudioURL != nil {
		if err := utils.DeleteFileFromSupabase(*passage.AudioURL); err != nil {
			logrus.WithError(err).Warn("Không xoá được audio của passage trên storage")
		}
	}
	if passage.ImageURL != nil {
		if err := utils.DeleteFileFromSupabase(*passage.ImageURL); err != nil {
			logrus.WithError(err).Warn("Không xoá được hình của passage trên storage")
		}
	}

	if err := db.Delete(&passage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xoá passage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã xoá passage"})
}

type SynthesizeAudioInput struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
}

// Sinh audio bài nghe từ transcript bằng TTS rồi upload lên storage
func SynthesizePassageAudio(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var passage models.SectionPassage
	if err := db.First(&passage, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy passage"})
		return
	}

	if passage.AudioTranscript == nil || *passage.AudioTranscript == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passage chưa có transcript để sinh audio"})
		return
	}

	var input SynthesizeAudioInput
	_ = c.ShouldBindJSON(&input) // body rỗng thì dùng mặc định

	audio, err := services.SynthesizeListeningAudio(*passage.AudioTranscript, input.Voice, input.Rate)
	if err != nil {
		logrus.WithError(err).Error("Sinh audio TTS thất bại")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Không thể sinh audio, vui lòng thử lại"})
		return
	}

	audioURL, err := utils.UploadListeningAudio(audio, passage.ID.String())
	if err != nil {
		logrus.WithError(err).Error("Upload audio bài nghe thất bại")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu audio"})
		return
	}

	passage.AudioURL = &audioURL
	if err := db.Save(&passage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật passage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Đã sinh audio cho passage",
		"audio_url": audioURL,
	})
}

// Upload hình minh hoạ cho passage
func UploadPassageImage(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var passage models.SectionPassage
	if err := db.First(&passage, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy passage"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file hình ảnh"})
		return
	}
	if fileHeader.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Hình ảnh vượt quá 5MB"})
		return
	}

	imageURL, err := utils.UploadPassageImage(fileHeader, passage.ID.String())
	if err != nil {
		logrus.WithError(err).Error("Upload hình passage thất bại")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu hình ảnh"})
		return
	}

	passage.ImageURL = &imageURL
	if err := db.Save(&passage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật passage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã upload hình ảnh", "image_url": imageURL})
}
