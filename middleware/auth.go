package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"papanskor/internal/permission"
	"papanskor/pkg/logger"
)

type contextKey string

const CallerKey contextKey = "caller"

var errNoToken = errors.New("no token provided")

// Auth validates Supabase-issued HS256 tokens.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// CallerFrom returns the caller stored by Required or Optional; the zero Caller is an unauthenticated visitor.
func CallerFrom(ctx context.Context) permission.Caller {
	c, _ := ctx.Value(CallerKey).(permission.Caller)
	return c
}

// Required rejects requests without a valid token.
func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.caller(r)
		if errors.Is(err, errNoToken) {
			http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
			return
		}
		if err != nil {
			logger.Sugar.Infof("Invalid token: %v", err)
			http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CallerKey, caller)))
	})
}

// Optional lets visitors through as an unauthenticated caller; share-link viewers need no account.
// A token that is present but invalid is still rejected.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.caller(r)
		if err != nil && !errors.Is(err, errNoToken) {
			logger.Sugar.Infof("Invalid token: %v", err)
			http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CallerKey, caller)))
	})
}

func (a *Auth) caller(r *http.Request) (permission.Caller, error) {
	// Browsers cannot set headers on WebSocket upgrades, so the query string is checked first.
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		return permission.Caller{}, errNoToken
	}
	return a.Parse(tokenString)
}

// Parse validates a token and maps its claims to a caller: sub, is_anonymous and tier.
func (a *Auth) Parse(tokenString string) (permission.Caller, error) {
	if len(a.secret) == 0 {
		return permission.Caller{}, fmt.Errorf("server is not configured to validate JWTs")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return permission.Caller{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return permission.Caller{}, fmt.Errorf("could not parse token claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return permission.Caller{}, fmt.Errorf("user ID (sub) claim is missing or invalid")
	}
	anonymous, _ := claims["is_anonymous"].(bool)
	tier, _ := claims["tier"].(string)

	caller := permission.Caller{
		UserID:        userID,
		Authenticated: true,
		Anonymous:     anonymous,
		Tier:          permission.ParseTier(tier),
	}
	// A signed-in account without a subscription record still gets the free tier.
	if caller.Tier == permission.TierNone && tier == "" {
		caller.Tier = permission.TierFree
	}
	return caller, nil
}
