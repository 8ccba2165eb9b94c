package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/controllers"
	"github.com/ntloc/vstep-practice-backend/middleware"
	"github.com/ntloc/vstep-practice-backend/ws"
)

func SetupRouter(r *gin.Engine, db *gorm.DB) {
	r.Use(middleware.DBMiddleware(db))

	r.GET("/health", controllers.HealthCheck)

	api := r.Group("/api")

	// Xác thực
	auth := api.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
		auth.POST("/google", controllers.GoogleLogin)
		auth.POST("/refresh", controllers.RefreshToken)
		auth.POST("/forgot-password", controllers.ForgotPassword)
		auth.POST("/reset-password", controllers.ResetPassword)
		auth.GET("/me", middleware.AuthMiddleware(), controllers.GetMe)
	}

	// Bộ đề công khai (ẩn bộ chưa xuất bản với người thường)
	exams := api.Group("/exams")
	exams.Use(middleware.OptionalAuthMiddleware())
	{
		exams.GET("", controllers.GetPublishedExamSets)
		exams.GET("/:id", controllers.GetExamSet)
	}

	// Luyện tập (học viên)
	practice := api.Group("/practice")
	practice.Use(middleware.AuthMiddleware())
	{
		practice.POST("/sessions", controllers.CreateSession)
		practice.GET("/sessions", controllers.GetUserSessions)
		practice.GET("/sessions/:id", controllers.GetSession)
		practice.GET("/sessions/:id/questions", controllers.GetSessionQuestions)
		practice.GET("/sessions/:id/result", controllers.GetSessionResult)
		practice.POST("/sessions/:id/answers", controllers.SubmitAnswer)
		practice.PATCH("/sessions/:id", controllers.UpdateSessionProgress)
		practice.POST("/sessions/:id/pause", controllers.PauseSession)
		practice.POST("/sessions/:id/resume", controllers.ResumeSession)
		practice.POST("/sessions/:id/complete", controllers.CompleteSession)
		practice.POST("/sessions/:id/abandon", controllers.AbandonSession)

		// AI chấm bài viết / bài nói
		practice.POST("/sessions/:id/writing/:question_id/grade", controllers.GradeWritingAnswer)
		practice.POST("/sessions/:id/speaking/:question_id/grade", controllers.GradeSpeakingAnswer)

		// Bản nháp tự lưu
		practice.POST("/drafts", controllers.AutoSaveDraft)
		practice.GET("/drafts", controllers.GetUserDrafts)
		practice.GET("/drafts/:id", controllers.GetDraft)
		practice.DELETE("/drafts/:id", controllers.DeleteDraft)
		practice.DELETE("/sessions/:id/drafts", controllers.DeleteSessionDrafts)

		practice.GET("/statistics", controllers.GetUserStatistics)
	}

	// Thông báo
	notifications := api.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("", controllers.GetNotifications)
		notifications.PATCH("/:id/read", controllers.MarkNotificationRead)
		notifications.PATCH("/read-all", controllers.MarkAllNotificationsRead)
		notifications.DELETE("/:id", controllers.DeleteNotification)
	}

	// Chat học viên - giáo viên
	chat := api.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.POST("/rooms", controllers.CreateChatRoom)
		chat.GET("/rooms", controllers.GetChatRooms)
		chat.POST("/rooms/:id/join", controllers.JoinChatRoom)
		chat.GET("/rooms/:id/messages", controllers.GetChatMessages)
		chat.POST("/rooms/:id/messages", controllers.SendChatMessage)
	}

	// Quản trị nội dung (admin + teacher)
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRoles("admin", "teacher"))
	{
		admin.POST("/exam-sets", controllers.CreateExamSet)
		admin.PUT("/exam-sets/:id", controllers.UpdateExamSet)
		admin.POST("/exam-sets/:id/publish", controllers.PublishExamSet)
		admin.POST("/exam-sets/:id/archive", controllers.ArchiveExamSet)
		admin.POST("/exam-sets/:id/sections", controllers.CreateSection)

		admin.PUT("/sections/:id", controllers.UpdateSection)
		admin.DELETE("/sections/:id", controllers.DeleteSection)
		admin.POST("/sections/:id/passages", controllers.CreatePassage)

		admin.PUT("/passages/:id", controllers.UpdatePassage)
		admin.DELETE("/passages/:id", controllers.DeletePassage)
		admin.POST("/passages/:id/audio", controllers.SynthesizePassageAudio)
		admin.POST("/passages/:id/image", controllers.UploadPassageImage)

		admin.POST("/questions", controllers.CreateQuestion)
		admin.GET("/questions", controllers.GetQuestions)
		admin.GET("/questions/:id", controllers.GetQuestion)
		admin.PUT("/questions/:id", controllers.UpdateQuestion)
		admin.DELETE("/questions/:id", controllers.DeactivateQuestion)
		admin.POST("/questions/:id/approve", controllers.ApproveQuestion)
		admin.POST("/questions/import-pdf", controllers.ImportQuestionsFromPDF)
		admin.POST("/questions/:id/tags", controllers.AttachTags)
		admin.DELETE("/questions/:id/tags/:tag_id", controllers.DetachTag)

		admin.POST("/tags", controllers.CreateTag)
		admin.GET("/tags", controllers.GetTags)
	}

	// Websocket
	r.GET("/ws/notifications", ws.ServeNotifications)
	r.GET("/ws/chat/:room_id", ws.ServeChatRoom)
}
