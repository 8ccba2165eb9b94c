package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/services"
)

type CreateSessionInput struct {
	Skill         models.Skill            `json:"skill" binding:"required"`
	Level         models.Level            `json:"level" binding:"required"`
	Mode          models.SessionMode      `json:"mode"`
	QuestionCount int                     `json:"question_count"`
	TimeLimit     *int                    `json:"time_limit"` // giây
	SectionID     *uuid.UUID              `json:"section_id"`
	Settings      *models.SessionSettings `json:"settings"`
}

// Tạo phiên luyện tập mới
func CreateSession(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	userUUID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	var input CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !input.Skill.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Kỹ năng không hợp lệ"})
		return
	}
	if !input.Level.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trình độ không hợp lệ"})
		return
	}
	if input.Mode == "" {
		input.Mode = models.ModePractice
	}
	if !input.Mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chế độ luyện tập không hợp lệ"})
		return
	}
	if err := input.Settings.ValidateForSkill(input.Skill); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count := input.QuestionCount
	if count <= 0 {
		count = 20 // mặc định 20 câu
	}

	questions, err := selectQuestionsForSession(db, input, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể truy vấn câu hỏi"})
		return
	}
	// Không đủ câu hỏi thì báo lỗi nội dung, không tự lấp cho đủ
	if len(questions) < count {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Không đủ câu hỏi phù hợp với kỹ năng và trình độ đã chọn",
			"available": len(questions),
			"requested": count,
		})
		return
	}

	questionOrder := make([]string, 0, len(questions))
	maxScore := 0.0
	for _, q := range questions {
		questionOrder = append(questionOrder, q.ID.String())
		maxScore += float64(q.Points)
	}

	now := time.Now()
	session := models.PracticeSession{
		UserID:         userUUID,
		SectionID:      input.SectionID,
		Skill:          input.Skill,
		Level:          input.Level,
		Mode:           input.Mode,
		Status:         models.StatusInProgress,
		TotalQuestions: len(questionOrder),
		MaxScore:       &maxScore,
		TimeLimit:      input.TimeLimit,
		StartedAt:      &now,
		QuestionOrder:  questionOrder,
		Settings:       input.Settings,
	}
	if input.TimeLimit != nil && *input.TimeLimit > 0 {
		expiresAt := now.Add(time.Duration(*input.TimeLimit) * time.Second)
		session.ExpiresAt = &expiresAt
	}

	if err := db.Create(&session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo phiên luyện tập"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Tạo phiên luyện tập thành công",
		"session": session,
	})
}

// selectQuestionsForSession lấy ngẫu nhiên các câu hỏi đang hoạt động khớp
// kỹ năng/trình độ (và part/section nếu có)
func selectQuestionsForSession(db *gorm.DB, input CreateSessionInput, count int) ([]models.Question, error) {
	query := db.Model(&models.Question{}).
		Where("skill = ?", input.Skill).
		Where("level = ?", input.Level).
		Where("is_active = ?", true)

	if input.SectionID != nil {
		query = query.
			Joins("JOIN section_passages ON section_passages.id = questions.passage_id").
			Where("section_passages.section_id = ?", *input.SectionID)
	} else if input.Settings != nil && input.Settings.Part != nil {
		// Part ứng với order_index của passage trong section (part 1 = passage đầu)
		query = query.
			Joins("JOIN section_passages ON section_passages.id = questions.passage_id").
			Where("section_passages.order_index = ?", *input.Settings.Part-1)
	}

	var questions []models.Question
	err := query.Order("RANDOM()").Limit(count).Find(&questions).Error
	return questions, err
}

// getSessionForUser đọc phiên, kiểm tra quyền sở hữu và expiry lazy:
// phiên in_progress đã quá expires_at được chốt expired ngay khi đọc.
func getSessionForUser(db *gorm.DB, sessionID, userID uuid.UUID) (*models.PracticeSession, error) {
	var session models.PracticeSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}

	if session.UserID != userID {
		return nil, errors.New("forbidden")
	}

	if session.Status == models.StatusInProgress &&
		session.ExpiresAt != nil && time.Now().After(*session.ExpiresAt) {
		now := time.Now()
		session.Status = models.StatusExpired
		session.CompletedAt = &now
		if err := db.Model(&session).Updates(map[string]interface{}{
			"status":       models.StatusExpired,
			"completed_at": now,
		}).Error; err != nil {
			return nil, err
		}
	}

	return &session, nil
}

func parseSessionRequest(c *gin.Context) (*gorm.DB, uuid.UUID, uuid.UUID, bool) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return nil, uuid.Nil, uuid.Nil, false
	}

	sessionUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id không hợp lệ"})
		return nil, uuid.Nil, uuid.Nil, false
	}

	return db, userUUID, sessionUUID, true
}

func respondSessionError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phiên luyện tập"})
		return
	}
	if err.Error() == "forbidden" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền truy cập phiên này"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc phiên luyện tập"})
}

// Lấy chi tiết phiên
func GetSession(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Lấy phiên kèm danh sách câu hỏi theo đúng thứ tự đã lưu
func GetSessionQuestions(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	var questions []models.Question
	if len(session.QuestionOrder) > 0 {
		if err := db.Preload("Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("order_index ASC")
		}).Preload("Passage").
			Where("id IN ?", session.QuestionOrder).
			Find(&questions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể truy vấn câu hỏi"})
			return
		}
	}

	// Sắp lại theo question_order đã lưu trong phiên
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID.String()] = q
	}
	ordered := make([]models.Question, 0, len(questions))
	for _, id := range session.QuestionOrder {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session":   session,
		"questions": ordered,
		"total":     len(ordered),
	})
}

// Lấy danh sách phiên của user, lọc theo kỹ năng / trạng thái
func GetUserSessions(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	query := db.Model(&models.PracticeSession{}).Where("user_id = ?", userUUID)

	if skill := c.Query("skill"); skill != "" {
		query = query.Where("skill = ?", skill)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đếm phiên luyện tập"})
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

	var sessions []models.PracticeSession
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách phiên"})
		return
	}

	// Expiry lazy cho cả danh sách: không để phiên quá hạn hiện in_progress
	// trong lúc chờ sweeper chạy
	now := time.Now()
	for i := range sessions {
		s := &sessions[i]
		if s.Status == models.StatusInProgress && s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
			s.Status = models.StatusExpired
			s.CompletedAt = &now
			db.Model(&models.PracticeSession{}).
				Where("id = ?", s.ID).
				Updates(map[string]interface{}{
					"status":       models.StatusExpired,
					"completed_at": now,
				})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

type SubmitAnswerInput struct {
	QuestionID       uuid.UUID  `json:"question_id" binding:"required"`
	Answer           *string    `json:"answer"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id"`
	TimeSpent        int        `json:"time_spent"` // giây dành cho câu này, cộng dồn
	IsFlagged        *bool      `json:"is_flagged"`
}

// Nộp câu trả lời cho một câu hỏi trong phiên.
// Mỗi (session, question) chỉ có một dòng answer, nộp lại thì ghi đè.
func SubmitAnswer(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status != models.StatusInProgress {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên luyện tập đã kết thúc hoặc đang tạm dừng"})
		return
	}

	var input SubmitAnswerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Câu hỏi phải thuộc phiên này
	inOrder := false
	for _, id := range session.QuestionOrder {
		if id == input.QuestionID.String() {
			inOrder = true
			break
		}
	}
	if !inOrder {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Câu hỏi không thuộc phiên luyện tập này"})
		return
	}

	var question models.Question
	if err := db.Preload("Options").First(&question, "id = ?", input.QuestionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy câu hỏi"})
		return
	}

	isCorrect, score := evaluateAnswer(&question, input)

	var answer models.PracticeAnswer

	// Ghi answer và cập nhật bộ đếm của phiên trong cùng một transaction:
	// answered_count/correct_count luôn dẫn xuất từ các dòng answer.
	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		findErr := tx.Where("session_id = ? AND question_id = ?", session.ID, question.ID).
			First(&answer).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			answer = models.PracticeAnswer{
				SessionID:  session.ID,
				QuestionID: question.ID,
				MaxScore:   float64(question.Points),
			}
		}

		answer.Answer = input.Answer
		answer.SelectedOptionID = input.SelectedOptionID
		answer.IsCorrect = isCorrect
		answer.Score = score
		answer.TimeSpent += input.TimeSpent
		if input.IsFlagged != nil {
			answer.IsFlagged = *input.IsFlagged
		}
		answer.AnsweredAt = &now

		if err := tx.Save(&answer).Error; err != nil {
			return err
		}

		return syncSessionCounters(tx, session.ID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lưu câu trả lời"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã lưu câu trả lời",
		"answer":  answer,
	})
}

// evaluateAnswer chấm tại chỗ các câu hỏi khách quan; essay/speaking để
// is_correct = nil chờ AI chấm sau.
func evaluateAnswer(question *models.Question, input SubmitAnswerInput) (*bool, float64) {
	if !question.Type.IsObjective() {
		return nil, 0
	}

	// Câu trắc nghiệm: so ID lựa chọn với đáp án đúng
	if input.SelectedOptionID != nil {
		correct := false
		for _, opt := range question.Options {
			if opt.IsCorrect && opt.ID == *input.SelectedOptionID {
				correct = true
				break
			}
		}
		score := 0.0
		if correct {
			score = float64(question.Points)
		}
		return &correct, score
	}

	// Câu điền từ / trả lời ngắn: so chuỗi đã chuẩn hoá
	if input.Answer != nil && question.CorrectAnswer != nil {
		correct := services.CompareAnswers(*input.Answer, *question.CorrectAnswer)
		score := 0.0
		if correct {
			score = float64(question.Points)
		}
		return &correct, score
	}

	// Không có dữ liệu trả lời
	incorrect := false
	return &incorrect, 0
}

// syncSessionCounters tính lại answered_count / correct_count từ các dòng
// answer thay vì cộng dồn bên cạnh, tránh lệch số liệu.
func syncSessionCounters(tx *gorm.DB, sessionID uuid.UUID) error {
	var answered, correct int64
	if err := tx.Model(&models.PracticeAnswer{}).
		Where("session_id = ?", sessionID).
		Count(&answered).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.PracticeAnswer{}).
		Where("session_id = ? AND is_correct = ?", sessionID, true).
		Count(&correct).Error; err != nil {
		return err
	}
	return tx.Model(&models.PracticeSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"answered_count": answered,
			"correct_count":  correct,
		}).Error
}

// syncSessionScore chốt lại tổng điểm phiên từ các dòng answer, dùng khi
// điểm AI về sau lúc phiên đã hoàn thành.
func syncSessionScore(tx *gorm.DB, sessionID uuid.UUID) error {
	var total float64
	if err := tx.Model(&models.PracticeAnswer{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(SUM(score), 0)").
		Scan(&total).Error; err != nil {
		return err
	}
	return tx.Model(&models.PracticeSession{}).
		Where("id = ?", sessionID).
		Update("score", total).Error
}

type UpdateSessionInput struct {
	CurrentQuestionIndex *int `json:"current_question_index"`
	TimeSpent            *int `json:"time_spent"`
}

// Cập nhật tiến độ làm bài (vị trí câu hỏi hiện tại, thời gian đã dùng)
func UpdateSessionProgress(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên luyện tập đã kết thúc"})
		return
	}

	var input UpdateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if input.CurrentQuestionIndex != nil {
		updates["current_question_index"] = *input.CurrentQuestionIndex
	}
	if input.TimeSpent != nil {
		updates["time_spent"] = *input.TimeSpent
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"session": session})
		return
	}

	if err := db.Model(session).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật phiên"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Tạm dừng phiên đang diễn ra
func PauseSession(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status != models.StatusInProgress {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chỉ có thể tạm dừng phiên đang diễn ra"})
		return
	}

	now := time.Now()
	session.Status = models.StatusPaused
	session.PausedAt = &now

	if err := db.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạm dừng phiên"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã tạm dừng phiên", "session": session})
}

// Tiếp tục phiên đang tạm dừng. Thời gian tạm dừng được cộng vào expires_at
// để không mất giờ làm bài.
func ResumeSession(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status != models.StatusPaused {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên không ở trạng thái tạm dừng"})
		return
	}

	if session.ExpiresAt != nil && session.PausedAt != nil {
		pauseDuration := time.Since(*session.PausedAt)
		shifted := session.ExpiresAt.Add(pauseDuration)
		session.ExpiresAt = &shifted
	}

	session.Status = models.StatusInProgress
	session.PausedAt = nil

	if err := db.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tiếp tục phiên"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã tiếp tục phiên", "session": session})
}

// Hoàn thành phiên: chốt điểm từ các answer đã lưu. Gọi lại trên phiên đã
// hoàn thành thì trả nguyên trạng (idempotent).
func CompleteSession(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status == models.StatusCompleted {
		c.JSON(http.StatusOK, gin.H{"session": session})
		return
	}
	if session.Status.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên luyện tập đã kết thúc"})
		return
	}

	var answers []models.PracticeAnswer
	if err := db.Where("session_id = ?", session.ID).Find(&answers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc câu trả lời"})
		return
	}

	totalScore := 0.0
	correctCount := 0
	for _, a := range answers {
		totalScore += a.Score
		if a.IsCorrect != nil && *a.IsCorrect {
			correctCount++
		}
	}

	now := time.Now()
	session.Score = &totalScore
	session.Status = models.StatusCompleted
	session.CompletedAt = &now
	session.AnsweredCount = len(answers)
	session.CorrectCount = correctCount

	if err := db.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể hoàn thành phiên"})
		return
	}

	notifySessionCompleted(db, session)

	c.JSON(http.StatusOK, gin.H{
		"message": "Đã hoàn thành phiên luyện tập",
		"session": session,
	})
}

// Bỏ dở phiên
func AbandonSession(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if session.Status.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên luyện tập đã kết thúc"})
		return
	}

	now := time.Now()
	session.Status = models.StatusAbandoned
	session.CompletedAt = &now

	if err := db.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể huỷ phiên"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã huỷ phiên luyện tập", "session": session})
}

// Báo cáo kết quả phiên: từng câu, phần trăm, điểm VSTEP quy đổi và gợi ý
func GetSessionResult(c *gin.Context) {
	db, userUUID, sessionUUID, ok := parseSessionRequest(c)
	if !ok {
		return
	}

	session, err := getSessionForUser(db, sessionUUID, userUUID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	if !session.Status.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phiên chưa kết thúc, chưa có kết quả"})
		return
	}

	var answers []models.PracticeAnswer
	if err := db.Preload("Question").Preload("Question.Options").
		Where("session_id = ?", session.ID).
		Find(&answers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc câu trả lời"})
		return
	}

	percentage := services.CalculatePercentage(session.CorrectCount, session.TotalQuestions)
	vstepScore := services.CalculateVstepScore(session.Skill, session.Level, session.CorrectCount)

	c.JSON(http.StatusOK, gin.H{
		"session":           session,
		"answers":           answers,
		"percentage":        percentage,
		"vstep_score":       vstepScore,
		"performance_level": services.GetPerformanceLevel(percentage),
		"suggestions":       services.GenerateSuggestions(session.Skill, session.Level, percentage),
	})
}
