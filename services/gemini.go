package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Hàm gọn để xử lý prompt và trả kết quả từ Gemini
func GeminiGenerateText(prompt string) (string, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, option.WithAPIKey(os.Getenv("GEMINI_API_KEY")))
	if err != nil {
		return "", fmt.Errorf("không thể tạo Gemini client: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash")
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("lỗi Gemini xử lý: %v", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini không trả kết quả hợp lệ")
	}
	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// geminiWithRetry gọi lại tối đa retries lần, backoff tuyến tính
func geminiWithRetry(prompt string, retries int) (string, error) {
	var resp string
	var err error
	for i := 0; i < retries; i++ {
		resp, err = GeminiGenerateText(prompt)
		if err == nil {
			return resp, nil
		}
		logrus.WithError(err).Warnf("Gemini lỗi, thử lại lần %d", i+1)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return "", err
}

// cleanGeminiJSON bỏ rào markdown mà Gemini hay thêm quanh JSON
func cleanGeminiJSON(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "`")
	clean = strings.TrimPrefix(clean, "json")
	return strings.TrimSpace(clean)
}

// GradingResult là kết quả chấm của AI cho bài viết / bài nói
type GradingResult struct {
	CriteriaScores map[string]float64 `json:"criteria_scores"` // thang 10 từng tiêu chí
	OverallScore   float64            `json:"overall_score"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
	Corrections    []string           `json:"corrections"`
	Feedback       string             `json:"feedback"`
}

// GradeWriting nhờ Gemini chấm bài luận theo tiêu chí VSTEP
func GradeWriting(essay string, taskPrompt string, level string) (*GradingResult, error) {
	prompt := fmt.Sprintf(`Bạn là giám khảo chấm thi viết VSTEP trình độ %s.
Đề bài:
%s

Bài làm của thí sinh:
%s

Hãy chấm theo 4 tiêu chí: task_fulfillment, organization, vocabulary, grammar (thang 10).
Trả về JSON hợp lệ đúng cấu trúc, không thêm bất kỳ văn bản nào khác:
{
  "criteria_scores": {"task_fulfillment": 0, "organization": 0, "vocabulary": 0, "grammar": 0},
  "overall_score": 0,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "corrections": ["câu sai -> câu sửa"],
  "feedback": "nhận xét tổng quát bằng tiếng Việt"
}`, level, taskPrompt, essay)

	raw, err := geminiWithRetry(prompt, 3)
	if err != nil {
		return nil, err
	}

	var result GradingResult
	if err := json.Unmarshal([]byte(cleanGeminiJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("không parse được kết quả chấm: %v", err)
	}
	return &result, nil
}

// GradeSpeaking nhờ Gemini nhận xét bài nói dựa trên audio đã upload.
// Audio được truyền theo URL công khai kèm thời lượng; mô hình chấm theo
// tiêu chí VSTEP speaking.
func GradeSpeaking(audioURL string, taskPrompt string, level string, elapsedSeconds int) (*GradingResult, error) {
	prompt := fmt.Sprintf(`Bạn là giám khảo chấm thi nói VSTEP trình độ %s.
Đề bài: %s
Bài nói của thí sinh (audio): %s
Thời lượng nói: %d giây.

Hãy chấm theo 4 tiêu chí: pronunciation, fluency, vocabulary, grammar (thang 10).
Trả về JSON hợp lệ đúng cấu trúc, không thêm bất kỳ văn bản nào khác:
{
  "criteria_scores": {"pronunciation": 0, "fluency": 0, "vocabulary": 0, "grammar": 0},
  "overall_score": 0,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "corrections": ["..."],
  "feedback": "nhận xét tổng quát bằng tiếng Việt"
}`, level, taskPrompt, audioURL, elapsedSeconds)

	raw, err := geminiWithRetry(prompt, 3)
	if err != nil {
		return nil, err
	}

	var result GradingResult
	if err := json.Unmarshal([]byte(cleanGeminiJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("không parse được kết quả chấm: %v", err)
	}
	return &result, nil
}

// GeneratedQuestion là câu hỏi Gemini sinh từ tài liệu import
type GeneratedQuestion struct {
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
	Answer     string `json:"answer"`
	Options    []struct {
		Label     string `json:"label"`
		Content   string `json:"content"`
		IsCorrect bool   `json:"is_correct"`
	} `json:"options"`
	Explanation string `json:"explanation"`
}

// GenerateQuestionsFromText nhờ Gemini sinh câu hỏi trắc nghiệm từ văn bản
// trích xuất (dùng cho import đề từ PDF).
func GenerateQuestionsFromText(text string, skill string, level string, count int) ([]GeneratedQuestion, error) {
	prompt := fmt.Sprintf(`Bạn là AI tạo câu hỏi luyện thi VSTEP kỹ năng %s trình độ %s.
Hãy tạo tối đa %d câu hỏi trắc nghiệm tiếng Anh từ đoạn văn sau.

Yêu cầu:
- Mỗi câu hỏi có 4 lựa chọn (A, B, C, D).
- Ngẫu nhiên vị trí đáp án đúng.
- Ghi rõ trường "is_correct": true cho lựa chọn đúng, false cho các lựa chọn sai.
- Mỗi câu có trường "explanation" giải thích đáp án bằng tiếng Việt.

Trả về JSON hợp lệ đúng cấu trúc:
[
  {
    "content": "Question text?",
    "difficulty": "easy|medium|hard",
    "answer": "A",
    "options": [
      {"label": "A", "content": "...", "is_correct": true},
      {"label": "B", "content": "...", "is_correct": false},
      {"label": "C", "content": "...", "is_correct": false},
      {"label": "D", "content": "...", "is_correct": false}
    ],
    "explanation": "..."
  }
]

Chỉ trả về JSON hợp lệ, không thêm bất kỳ văn bản nào khác.

Đoạn văn:
%s`, skill, level, count, text)

	raw, err := geminiWithRetry(prompt, 3)
	if err != nil {
		return nil, err
	}

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleanGeminiJSON(raw)), &questions); err != nil {
		return nil, fmt.Errorf("không parse được danh sách câu hỏi: %v", err)
	}
	return questions, nil
}
