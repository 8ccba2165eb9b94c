package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/ntloc/vstep-practice-backend/models"
)

// scoreRange ánh xạ số câu đúng sang điểm VSTEP
type scoreRange struct {
	MinCorrect int
	MaxCorrect int
	Score      float64
}

// Bảng quy đổi điểm VSTEP theo hướng dẫn chấm chính thức.
// Reading: 40 câu, Listening: 35 câu. Writing/Speaking do AI chấm riêng.
var vstepScoreTables = map[models.Skill]map[models.Level][]scoreRange{
	models.SkillReading: {
		models.LevelA2: {
			{0, 10, 1}, {11, 15, 2}, {16, 20, 3}, {21, 25, 4}, {26, 30, 5}, {31, 35, 6}, {36, 40, 7},
		},
		models.LevelB1: {
			{0, 12, 2}, {13, 18, 3}, {19, 24, 4}, {25, 30, 5}, {31, 35, 6}, {36, 38, 7}, {39, 40, 8},
		},
		models.LevelB2: {
			{0, 15, 3}, {16, 22, 4}, {23, 28, 5}, {29, 33, 6}, {34, 37, 7}, {38, 39, 8}, {40, 40, 9},
		},
		models.LevelC1: {
			{0, 18, 4}, {19, 25, 5}, {26, 31, 6}, {32, 36, 7}, {37, 39, 8}, {40, 40, 9},
		},
	},
	models.SkillListening: {
		models.LevelA2: {
			{0, 8, 1}, {9, 12, 2}, {13, 17, 3}, {18, 22, 4}, {23, 27, 5}, {28, 32, 6}, {33, 35, 7},
		},
		models.LevelB1: {
			{0, 10, 2}, {11, 15, 3}, {16, 20, 4}, {21, 25, 5}, {26, 30, 6}, {31, 33, 7}, {34, 35, 8},
		},
		models.LevelB2: {
			{0, 12, 3}, {13, 18, 4}, {19, 23, 5}, {24, 28, 6}, {29, 32, 7}, {33, 34, 8}, {35, 35, 9},
		},
		models.LevelC1: {
			{0, 15, 4}, {16, 21, 5}, {22, 26, 6}, {27, 31, 7}, {32, 34, 8}, {35, 35, 9},
		},
	},
}

// CalculateVstepScore quy đổi số câu đúng sang điểm VSTEP.
// Writing/speaking trả 0 (AI chấm riêng).
func CalculateVstepScore(skill models.Skill, level models.Level, correctCount int) float64 {
	table, ok := vstepScoreTables[skill][level]
	if !ok {
		return 0
	}
	for _, r := range table {
		if correctCount >= r.MinCorrect && correctCount <= r.MaxCorrect {
			return r.Score
		}
	}
	return table[0].Score
}

func CalculatePercentage(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// PercentageToScore đổi phần trăm sang thang 10, làm tròn 1 chữ số
func PercentageToScore(percentage int) float64 {
	return math.Round(float64(percentage)/10*10) / 10
}

func GetPerformanceLevel(percentage int) string {
	switch {
	case percentage >= 90:
		return "excellent"
	case percentage >= 80:
		return "good"
	case percentage >= 70:
		return "average"
	case percentage >= 60:
		return "below_average"
	default:
		return "needs_improvement"
	}
}

// GenerateSuggestions sinh lời khuyên luyện tập dựa vào kết quả
func GenerateSuggestions(skill models.Skill, level models.Level, percentage int) []string {
	var suggestions []string

	switch GetPerformanceLevel(percentage) {
	case "needs_improvement":
		suggestions = append(suggestions, fmt.Sprintf("Bạn cần luyện tập thêm kỹ năng %s. Hãy bắt đầu với các bài tập cơ bản.", skill))
	case "below_average":
		suggestions = append(suggestions, "Kết quả của bạn ở mức dưới trung bình. Hãy tập trung vào các dạng câu hỏi hay sai.")
	case "average":
		suggestions = append(suggestions, "Bạn đang tiến bộ tốt! Tiếp tục luyện tập để cải thiện thêm.")
	case "good":
		suggestions = append(suggestions, "Kết quả tốt! Hãy thử thách bản thân với các bài tập khó hơn.")
	default:
		suggestions = append(suggestions, "Xuất sắc! Bạn đã sẵn sàng cho bài thi thật.")
	}

	if percentage >= 80 && level != models.LevelC1 {
		suggestions = append(suggestions, fmt.Sprintf("Bạn có thể thử thách bản thân với cấp độ %s.", nextLevel(level)))
	}

	return suggestions
}

func nextLevel(current models.Level) models.Level {
	levels := []models.Level{models.LevelA2, models.LevelB1, models.LevelB2, models.LevelC1}
	for i, l := range levels {
		if l == current && i < len(levels)-1 {
			return levels[i+1]
		}
	}
	return current
}

// NormalizeAnswer chuẩn hoá câu trả lời dạng chữ trước khi so sánh:
// bỏ hoa thường, trim, gộp khoảng trắng.
func NormalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// CompareAnswers so khớp câu trả lời fill-blank / short answer. Đáp án lưu
// dạng "a|b|c" khi chấp nhận nhiều biến thể.
func CompareAnswers(userAnswer, correctAnswer string) bool {
	normalized := NormalizeAnswer(userAnswer)
	for _, variant := range strings.Split(correctAnswer, "|") {
		if normalized == NormalizeAnswer(variant) {
			return true
		}
	}
	return false
}
