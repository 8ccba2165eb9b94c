package controllers

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/ntloc/vstep-practice-backend/models"
	"github.com/ntloc/vstep-practice-backend/utils"
)

type RegisterInput struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Đăng ký tài khoản học viên
func Register(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email đã được sử dụng"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xử lý mật khẩu"})
		return
	}

	user := models.User{
		FullName: input.FullName,
		Email:    input.Email,
		Password: string(hashed),
		Role:     models.RoleStudent,
	}
	if err := db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo tài khoản"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Đăng ký thành công",
		"user":    user,
	})
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Đăng nhập bằng email + mật khẩu, trả cặp access/refresh token
func Login(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email hoặc mật khẩu không đúng"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email hoặc mật khẩu không đúng"})
		return
	}

	if user.Status != nil && !*user.Status {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tài khoản đã bị tạm khóa"})
		return
	}

	respondWithTokens(c, &user)
}

type GoogleLoginInput struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Đăng nhập bằng Google: xác thực id_token, tự tạo tài khoản nếu chưa có
func GoogleLogin(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input GoogleLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := idtoken.Validate(c.Request.Context(), input.IDToken, os.Getenv("GOOGLE_CLIENT_ID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token Google không hợp lệ"})
		return
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token Google thiếu email"})
		return
	}

	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	if err != nil {
		// Tài khoản Google mới: mật khẩu ngẫu nhiên, không dùng để đăng nhập thường
		randomPass, genErr := generateResetCode(32)
		if genErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo tài khoản"})
			return
		}
		hashed, hashErr := bcrypt.GenerateFromPassword([]byte(randomPass), bcrypt.DefaultCost)
		if hashErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo tài khoản"})
			return
		}
		user = models.User{
			FullName: name,
			Email:    email,
			Password: string(hashed),
			Role:     models.RoleStudent,
		}
		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo tài khoản"})
			return
		}
	}

	if user.Status != nil && !*user.Status {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tài khoản đã bị tạm khóa"})
		return
	}

	respondWithTokens(c, &user)
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Cấp lại access token từ refresh token
func RefreshToken(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := utils.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token không hợp lệ hoặc đã hết hạn"})
		return
	}

	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Tài khoản không tồn tại"})
		return
	}
	if user.Status != nil && !*user.Status {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tài khoản đã bị tạm khóa"})
		return
	}

	respondWithTokens(c, &user)
}

// Lấy thông tin tài khoản hiện tại
func GetMe(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy tài khoản"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

// Gửi mã đặt lại mật khẩu qua email. Luôn trả 200 để không lộ email nào
// đã đăng ký.
func ForgotPassword(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input ForgotPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Nếu email tồn tại, mã đặt lại đã được gửi"})
		return
	}

	code, err := generateResetCode(6)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo mã đặt lại"})
		return
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	if err := db.Create(&reset).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo mã đặt lại"})
		return
	}

	if err := utils.SendPasswordResetEmail(user.Email, code); err != nil {
		logrus.WithError(err).Error("Gửi email đặt lại mật khẩu thất bại")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Nếu email tồn tại, mã đặt lại đã được gửi"})
}

type ResetPasswordInput struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// Đặt lại mật khẩu bằng mã đã gửi qua email
func ResetPassword(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mã đặt lại không hợp lệ hoặc đã hết hạn"})
		return
	}

	var reset models.PasswordReset
	err := db.Where("user_id = ? AND code = ? AND used = ? AND expires_at > ?",
		user.ID, input.Code, false, time.Now()).
		Order("created_at DESC").
		First(&reset).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mã đặt lại không hợp lệ hoặc đã hết hạn"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xử lý mật khẩu"})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", string(hashed)).Error; err != nil {
			return err
		}
		return tx.Model(&reset).Update("used", true).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đặt lại mật khẩu"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đặt lại mật khẩu thành công"})
}

func respondWithTokens(c *gin.Context, user *models.User) {
	accessToken, err := utils.GenerateToken(user.ID.String(), string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo token"})
		return
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID.String(), string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Đăng nhập thành công",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// generateResetCode sinh chuỗi chữ-số ngẫu nhiên độ dài n
func generateResetCode(n int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[idx.Int64()]
	}
	return string(code), nil
}
