package util

import (
	"quiz_platform_backend/internal/model"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID uint           `json:"user_id"`
	Role   model.UserRole `json:"role"`
	Email  string         `json:"email"`
	jwt.RegisteredClaims
}

func GenerateJWT(user *model.User, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, err
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// NonceClaims 答题令牌，打开测验页面时签发，提交时校验。
// 令牌与 (quizID, userID) 绑定，防止伪造或跨测验重放。
type NonceClaims struct {
	UserID uint `json:"user_id"`
	QuizID uint `json:"quiz_id"`
	jwt.RegisteredClaims
}

func GenerateQuizNonce(userID, quizID uint, secret string) (string, error) {
	claims := &NonceClaims{
		UserID: userID,
		QuizID: quizID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(QuizNonceTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyQuizNonce 校验答题令牌是否属于该用户和测验
func VerifyQuizNonce(tokenString string, userID, quizID uint, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, &NonceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidNonce
	}

	claims, ok := token.Claims.(*NonceClaims)
	if !ok || claims.UserID != userID || claims.QuizID != quizID {
		return ErrInvalidNonce
	}

	return nil
}
