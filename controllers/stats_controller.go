package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/services"
)

type skillStats struct {
	Skill             models.Skill `json:"skill"`
	CompletedSessions int64        `json:"completed_sessions"`
	TotalQuestions    int64        `json:"total_questions"`
	CorrectAnswers    int64        `json:"correct_answers"`
	Accuracy          float64      `json:"accuracy"`
	TotalTimeSpent    int64        `json:"total_time_spent"` // giây
}

// Thống kê luyện tập của user: tổng quan, theo kỹ năng, chuỗi ngày học và
// các phiên gần nhất.
func GetUserStatistics(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	var totalSessions, completedSessions int64
	db.Model(&models.PracticeSession{}).Where("user_id = ?", userID).Count(&totalSessions)
	db.Model(&models.PracticeSession{}).
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Count(&completedSessions)

	skills := []models.Skill{models.SkillReading, models.SkillListening, models.SkillWriting, models.SkillSpeaking}
	perSkill := make([]skillStats, 0, len(skills))
	for _, skill := range skills {
		var row struct {
			Sessions  int64
			Questions int64
			Correct   int64
			TimeSpent int64
		}
		err := db.Model(&models.PracticeSession{}).
			Select("COUNT(*) AS sessions, COALESCE(SUM(total_questions),0) AS questions, COALESCE(SUM(correct_count),0) AS correct, COALESCE(SUM(time_spent),0) AS time_spent").
			Where("user_id = ? AND skill = ? AND status = ?", userID, skill, models.StatusCompleted).
			Scan(&row).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tính thống kê"})
			return
		}
		perSkill = append(perSkill, skillStats{
			Skill:             skill,
			CompletedSessions: row.Sessions,
			TotalQuestions:    row.Questions,
			CorrectAnswers:    row.Correct,
			Accuracy:          float64(services.CalculatePercentage(int(row.Correct), int(row.Questions))),
			TotalTimeSpent:    row.TimeSpent,
		})
	}

	var recent []models.PracticeSession
	db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(10).
		Find(&recent)

	c.JSON(http.StatusOK, gin.H{
		"total_sessions":     totalSessions,
		"completed_sessions": completedSessions,
		"by_skill":           perSkill,
		"streak_days":        calculateStreak(db, userID),
		"recent_sessions":    recent,
	})
}

// calculateStreak đếm số ngày liên tiếp có phiên hoàn thành, tính lùi từ
// hôm nay (hoặc hôm qua nếu hôm nay chưa học).
func calculateStreak(db *gorm.DB, userID string) int {
	var sessions []models.PracticeSession
	err := db.Select("completed_at").
		Where("user_id = ? AND status = ? AND completed_at IS NOT NULL", userID, models.StatusCompleted).
		Order("completed_at DESC").
		Find(&sessions).Error
	if err != nil || len(sessions) == 0 {
		return 0
	}

	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		days[s.CompletedAt.Format("2006-01-02")] = true
	}

	today := time.Now()
	cursor := today
	if !days[today.Format("2006-01-02")] {
		cursor = today.AddDate(0, 0, -1)
		if !days[cursor.Format("2006-01-02")] {
			return 0
		}
	}

	streak := 0
	for days[cursor.Format("2006-01-02")] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
