package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
)

// ExpireOverdueSessions đánh dấu expired các phiên in_progress đã quá
// expires_at. Trả về số phiên bị chuyển trạng thái.
func ExpireOverdueSessions(db *gorm.DB) (int64, error) {
	now := time.Now()
	result := db.Model(&models.PracticeSession{}).
		Where("status = ?", models.StatusInProgress).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]interface{}{
			"status":       models.StatusExpired,
			"completed_at": now,
		})
	return result.RowsAffected, result.Error
}

// StartSessionExpirySweeper chạy nền, mỗi interval quét một lần.
// Kết hợp với kiểm tra lazy khi đọc phiên: sweeper đảm bảo phiên bỏ dở
// cũng được chốt expired chứ không treo in_progress vô hạn.
func StartSessionExpirySweeper(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logrus.Info("Session expiry sweeper stopped")
				return
			case <-ticker.C:
				expired, err := ExpireOverdueSessions(db)
				if err != nil {
					logrus.WithError(err).Error("Quét phiên hết hạn thất bại")
					continue
				}
				if expired > 0 {
					logrus.Infof("Đã chuyển %d phiên sang expired", expired)
				}
			}
		}
	}()
}
