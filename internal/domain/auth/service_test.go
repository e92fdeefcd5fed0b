package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"columbarium/internal/core/apperror"
	appctx "columbarium/internal/core/context"
	"columbarium/internal/domain/auth"
	"columbarium/internal/infrastructure/storage/memstore"
)

func newService(t *testing.T, maxAttempts int) (*auth.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	cfg := auth.DefaultServiceConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.MaxLoginAttempts = maxAttempts
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	return auth.NewService(store.Users(), store, jwtSvc, cfg), store
}

func TestLogin_IssuesValidToken(t *testing.T) {
	svc, _ := newService(t, 5)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, auth.CreateUserRequest{
		Username: " Vendedor ", Password: "s3cret-pass", FullName: "Ana Vendedora", Role: appctx.RoleSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, "vendedor", user.Username)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	token, logged, err := svc.Login(ctx, auth.Credentials{Username: "VENDEDOR", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	require.NotNil(t, logged.LastLoginAt)

	actor, err := svc.JWT().ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), actor.UserID)
	assert.Equal(t, "vendedor", actor.Username)
	assert.Equal(t, appctx.RoleSeller, actor.Role)
}

func TestLogin_Rejections(t *testing.T) {
	svc, _ := newService(t, 2)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, auth.CreateUserRequest{
		Username: "admin", Password: "admin-pass", Role: appctx.RoleAdmin,
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "nobody", Password: "x"})
	assert.Equal(t, apperror.CodeUnauthorized, apperror.CodeOf(err))

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "admin", Password: "wrong"})
	assert.Equal(t, apperror.CodeUnauthorized, apperror.CodeOf(err))
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "admin", Password: "wrong"})
	assert.Equal(t, apperror.CodeUnauthorized, apperror.CodeOf(err))

	// Locked after two failures, even with the right password.
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "admin", Password: "admin-pass"})
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _ := newService(t, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		req  auth.CreateUserRequest
		code string
	}{
		{"short password", auth.CreateUserRequest{Username: "ana", Password: "short", Role: appctx.RoleViewer}, apperror.CodeValidation},
		{"short username", auth.CreateUserRequest{Username: "a", Password: "long-enough", Role: appctx.RoleViewer}, apperror.CodeValidation},
		{"unknown role", auth.CreateUserRequest{Username: "ana", Password: "long-enough", Role: "root"}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}

	_, err := svc.CreateUser(ctx, auth.CreateUserRequest{Username: "ana", Password: "long-enough", Role: appctx.RoleViewer})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, auth.CreateUserRequest{Username: "ANA", Password: "long-enough", Role: appctx.RoleViewer})
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))
}

func TestJWT_Rejects(t *testing.T) {
	user := auth.NewUser("ana", "hash", "Ana", appctx.RoleViewer)

	short := auth.DefaultJWTConfig("secret")
	short.AccessTokenTTL = time.Nanosecond
	expired, _, err := auth.NewJWTService(short).GenerateAccessToken(user)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	validator := auth.NewJWTService(auth.DefaultJWTConfig("secret"))
	_, err = validator.ValidateToken(expired)
	assert.Error(t, err)

	other, _, err := auth.NewJWTService(auth.DefaultJWTConfig("other-secret")).GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = validator.ValidateToken(other)
	assert.Error(t, err)

	_, err = validator.ValidateToken("not-a-token")
	assert.Error(t, err)
}
