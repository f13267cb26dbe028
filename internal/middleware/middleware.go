package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/config"
	apierrors "github.com/wanderhq/wanderlust/internal/errors"
	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/logging"
	"github.com/wanderhq/wanderlust/internal/models"
)

// Context key for the caller identity
const ContextKeyIdentity = "caller_identity"

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWT validation errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTAuthenticator handles JWT token validation
type JWTAuthenticator struct {
	config *config.JWTConfig
}

// NewJWTAuthenticator creates a new JWT authenticator
func NewJWTAuthenticator(cfg *config.JWTConfig) *JWTAuthenticator {
	return &JWTAuthenticator{
		config: cfg,
	}
}

// JWTAuth creates a middleware that validates JWT tokens from the
// Authorization header and stores the caller identity in the context.
// Requests without a valid token are rejected.
func (j *JWTAuthenticator) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithError(c, apierrors.ErrUnauthenticatedError)
			c.Abort()
			return
		}

		tokenString, err := extractBearerToken(authHeader)
		if err != nil {
			respondWithError(c, apierrors.ErrInvalidCredentialsError)
			c.Abort()
			return
		}

		ident, err := j.identityFromToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondWithError(c, apierrors.ErrTokenExpiredError)
			} else {
				respondWithError(c, apierrors.ErrInvalidCredentialsError)
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyIdentity, ident)
		c.Next()
	}
}

// OptionalAuth resolves an identity when a token is present but lets
// anonymous requests through. Public reads use it so that owners and
// admins see their full visibility scope on the same routes.
func (j *JWTAuthenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenString, err := extractBearerToken(authHeader)
		if err != nil {
			c.Next()
			return
		}

		ident, err := j.identityFromToken(tokenString)
		if err != nil {
			// A present but broken token is rejected rather than silently
			// downgraded to anonymous.
			if errors.Is(err, ErrTokenExpired) {
				respondWithError(c, apierrors.ErrTokenExpiredError)
			} else {
				respondWithError(c, apierrors.ErrInvalidCredentialsError)
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyIdentity, ident)
		c.Next()
	}
}

// identityFromToken validates an access token and builds the identity.
func (j *JWTAuthenticator) identityFromToken(tokenString string) (identity.Identity, error) {
	claims, err := j.validateToken(tokenString)
	if err != nil {
		return identity.Anonymous, err
	}

	if claims.Subject != "access" {
		return identity.Anonymous, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return identity.Anonymous, ErrInvalidToken
	}

	return identity.Identity{
		ID:       userID,
		Username: claims.Username,
		Role:     models.Role(claims.Role),
	}, nil
}

// validateToken parses and validates a JWT token
func (j *JWTAuthenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// extractBearerToken extracts the token from a Bearer authorization header
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidToken
	}
	return authHeader[len(bearerPrefix):], nil
}

// RequireAdmin checks that the resolved identity carries the admin role.
// Must be used after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := IdentityFromContext(c)
		if !ident.IsAdmin() {
			logging.LogSecurityEvent("admin_access_denied", ident.ID.String(), c.ClientIP(), c.Request.URL.Path)
			respondWithError(c, apierrors.ErrForbiddenError)
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFromContext extracts the caller identity from the gin context.
// Returns the anonymous identity if none was resolved.
func IdentityFromContext(c *gin.Context) identity.Identity {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return identity.Anonymous
	}
	ident, ok := v.(identity.Identity)
	if !ok {
		return identity.Anonymous
	}
	return ident
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// Check if origin is allowed
		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200") // 12 hours
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, c.GetString("request_id")))
}
