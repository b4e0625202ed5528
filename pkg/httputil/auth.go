package httputil

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/permissions"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// Auth validates the Bearer token and populates user, actor and tenant
// context from its claims. Use this when the service runs without a
// gateway in front; behind a gateway, TenantMiddleware consumes the
// forwarded headers instead.
func Auth(cfg *config.JWTConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.Secret), nil
			})
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				if strings.Contains(err.Error(), "expired") {
					Error(w, errors.TokenExpired())
				} else {
					Error(w, errors.TokenInvalid())
				}
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				Error(w, errors.TokenInvalid())
				return
			}

			userID, _ := claims["sub"].(string)
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)
			firstName, _ := claims["first_name"].(string)
			lastName, _ := claims["last_name"].(string)

			var perms []string
			if raw, ok := claims["permissions"].([]interface{}); ok {
				for _, p := range raw {
					if s, ok := p.(string); ok {
						perms = append(perms, s)
					}
				}
			}

			tenantID, _ := claims["tenant_id"].(string)
			tenantSlug, _ := claims["tenant_slug"].(string)
			tenantSchema, _ := claims["tenant_schema"].(string)

			if tenantID == "" || tenantSchema == "" {
				Error(w, errors.Forbidden("missing tenant context in token"))
				return
			}

			ctx := WithUserContext(r.Context(), userID, email, role)
			ctx = WithUserPermissions(ctx, perms)
			ctx = tenant.WithTenantContext(ctx, tenantID, tenantSlug, tenantSchema)
			ctx = actor.WithActor(ctx, &actor.Actor{
				ID:        userID,
				FirstName: firstName,
				LastName:  lastName,
				Email:     email,
				TenantID:  tenantID,
				RoleName:  role,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission guards a route behind a permission string. Must be
// mounted after Auth so the permissions claim is already in context.
func RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms := GetUserPermissions(r.Context())
			if !permissions.HasPermission(perms, required) {
				Error(w, errors.Forbidden("missing permission: "+required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
