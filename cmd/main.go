package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ntloc/vstep-practice-backend/config"
	"github.com/ntloc/vstep-practice-backend/routes"
	"github.com/ntloc/vstep-practice-backend/services"
	"github.com/ntloc/vstep-practice-backend/ws"
)

func main() {
	// Load .env, production dùng ENV trực tiếp nên thiếu file không sao
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Không tìm thấy file .env, dùng biến môi trường hệ thống")
	}

	config.InitDB()

	r := gin.Default()

	origins := []string{"http://localhost:5173"}
	if fe := os.Getenv("FRONTEND_URL"); fe != "" {
		origins = append(origins, fe)
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Hub websocket cho thông báo + chat
	go ws.H.Run()

	// Quét phiên luyện tập quá hạn mỗi phút
	services.StartSessionExpirySweeper(context.Background(), config.DB, time.Minute)

	routes.SetupRouter(r, config.DB)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logrus.Infof("Server chạy tại cổng %s", port)
	if err := r.Run(":" + port); err != nil {
		logrus.Fatal("Không thể khởi động server: ", err)
	}
}
