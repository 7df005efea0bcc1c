package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"healthmate.app/health-assistant/internal/config"
)

// GenerateJWT issues a token carrying the user id and the id of the
// server-side working session created at login.
func GenerateJWT(userID int64, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"sid": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func ValidateJWT(tokenString string) (userID int64, sessionID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, "", fmt.Errorf("invalid token subject")
	}
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil {
		return 0, "", fmt.Errorf("invalid token subject")
	}

	sessionID, ok = claims["sid"].(string)
	if !ok || sessionID == "" {
		return 0, "", fmt.Errorf("invalid token session")
	}

	return userID, sessionID, nil
}
