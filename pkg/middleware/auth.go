package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sendpool/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccountIDKey = "account_id"
	RoleKey      = "role"
)

// Claims carries the account id in the standard subject claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func IssueToken(secret string, accountID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func abort(c *gin.Context, err error) {
	be, _ := errutil.As(err)
	c.AbortWithStatusJSON(be.Code.HTTPStatus(), be.JSON())
}

func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, errutil.Unauthorized("authorization header required", nil))
			return
		}

		var claims Claims
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			abort(c, errutil.Unauthorized("invalid token", err))
			return
		}

		accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			abort(c, errutil.Unauthorized("invalid token subject", err))
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must follow AuthRequired.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[c.GetString(RoleKey)] {
			abort(c, errutil.Forbidden("insufficient role", nil))
			return
		}
		c.Next()
	}
}

func AccountID(c *gin.Context) int64 {
	return c.GetInt64(AccountIDKey)
}
