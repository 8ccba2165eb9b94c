package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/services"
	"github.com/ntloc/vstep-practice-backend/utils"
)

type GradeWritingInput struct {
	Essay string `json:"essay" binding:"required"`
}

// Nộp bài luận và nhờ AI chấm. Điểm tiêu chí thang 10 được quy về thang
// điểm của câu hỏi, feedback lưu vào answer.
func GradeWritingAnswer(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	answer, question, ok := loadAnswerForGrading(c, db, session, c.Param("question_id"))
	if !ok {
		return
	}

	if question.Type != models.TypeEssay {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Câu hỏi không phải dạng bài luận"})
		return
	}

	var input GradeWritingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := services.GradeWriting(input.Essay, question.Content, string(session.Level))
	if err != nil {
		logrus.WithError(err).Error("Chấm bài viết thất bại")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Chấm điểm thất bại, vui lòng thử lại"})
		return
	}

	applyGradingResult(c, db, session, answer, question, result, &input.Essay, nil)
}

// Nộp bản ghi âm bài nói: upload blob lên storage, lưu URL vào answer rồi
// nhờ AI chấm.
func GradeSpeakingAnswer(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	answer, question, ok := loadAnswerForGrading(c, db, session, c.Param("question_id"))
	if !ok {
		return
	}

	if question.Type != models.TypeSpeakingTask {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Câu hỏi không phải dạng bài nói"})
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file ghi âm"})
		return
	}
	// Giới hạn 20MB cho một bài nói
	if fileHeader.Size > 20*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File ghi âm vượt quá 20MB"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không đọc được file ghi âm"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không đọc được file ghi âm"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	audioURL, err := utils.UploadSpeakingAudio(data, answer.ID.String(), contentType)
	if err != nil {
		logrus.WithError(err).Error("Upload bài nói thất bại")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu file ghi âm"})
		return
	}

	elapsed := 0
	if v, convErr := parsePositiveFormInt(c, "elapsed_seconds"); convErr == nil {
		elapsed = v
	}

	result, err := services.GradeSpeaking(audioURL, question.Content, string(session.Level), elapsed)
	if err != nil {
		// Audio đã lưu, chấm sau được: vẫn ghi nhận URL vào answer
		answer.AudioURL = &audioURL
		if saveErr := db.Save(answer).Error; saveErr != nil {
			logrus.WithError(saveErr).Error("Không lưu được audio_url sau khi chấm lỗi")
		}
		logrus.WithError(err).Error("Chấm bài nói thất bại")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Đã lưu bài nói nhưng chấm điểm thất bại, vui lòng thử lại",
			"audio_url": audioURL,
		})
		return
	}

	applyGradingResult(c, db, session, answer, question, result, nil, &audioURL)
}

// loadAnswerForGrading tìm answer của câu hỏi trong phiên, tạo mới nếu thí
// sinh nộp thẳng không qua SubmitAnswer trước.
func loadAnswerForGrading(c *gin.Context, db *gorm.DB, session *models.PracticeSession, questionIDParam string) (*models.PracticeAnswer, *models.Question, bool) {
	var question models.Question
	if err := db.First(&question, "id = ?", questionIDParam).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return nil, nil, false
	}

	inOrder := false
	for _, id := range session.QuestionOrder {
		if id == question.ID.String() {
			inOrder = true
			break
		}
	}
	if !inOrder {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Câu hỏi không thuộc phiên luyện tập này"})
		return nil, nil, false
	}

	var answer models.PracticeAnswer
	err := db.Where("session_id = ? AND question_id = ?", session.ID, question.ID).
		First(&answer).Error
	if err != nil {
		answer = models.PracticeAnswer{
			SessionID:  session.ID,
			QuestionID: question.ID,
			MaxScore:   float64(question.Points),
		}
		if err := db.Create(&answer).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo câu trả lời"})
			return nil, nil, false
		}
	}

	return &answer, &question, true
}

// applyGradingResult ghi điểm AI vào answer và đồng bộ bộ đếm phiên. Nếu
// phiên đã hoàn thành (điểm AI về muộn) thì chốt lại luôn tổng điểm phiên
// để score và correct_count không lệch nhau.
func applyGradingResult(c *gin.Context, db *gorm.DB, session *models.PracticeSession, answer *models.PracticeAnswer, question *models.Question, result *services.GradingResult, essay *string, audioURL *string) {
	// Điểm tổng thang 10 quy về thang điểm câu hỏi
	score := result.OverallScore / 10.0 * float64(question.Points)
	correct := result.OverallScore >= 5.0

	feedbackJSON, err := json.Marshal(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xử lý kết quả chấm"})
		return
	}
	feedback := string(feedbackJSON)

	err = db.Transaction(func(tx *gorm.DB) error {
		if essay != nil {
			answer.Answer = essay
		}
		if audioURL != nil {
			answer.AudioURL = audioURL
		}
		answer.Score = score
		answer.IsCorrect = &correct
		answer.AIFeedback = &feedback

		if err := tx.Save(answer).Error; err != nil {
			return err
		}
		if err := syncSessionCounters(tx, answer.SessionID); err != nil {
			return err
		}
		if session.Status == models.StatusCompleted {
			return syncSessionScore(tx, session.ID)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu kết quả chấm"})
		return
	}

	notifyGradingDone(db, answer)

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã chấm xong",
		"answer":  answer,
		"grading": result,
	})
}
