package controllers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parsePositiveFormInt đọc form field dạng số không âm
func parsePositiveFormInt(c *gin.Context, key string) (int, error) {
	raw := c.PostForm(key)
	if raw == "" {
		return 0, errors.New("empty")
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid")
	}
	return v, nil
}

// parsePositiveQueryInt đọc query param dạng số, bỏ qua nếu không hợp lệ
func parsePositiveQueryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, errors.New("empty")
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid")
	}
	return v, nil
}
