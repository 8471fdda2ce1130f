package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage/memory"
)

func TestAuthService_Register(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{
		Email:    "test@example.com",
		Password: "Password123!",
		Username: "testuser",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, domain.TierFree, user.Tier)
	assert.True(t, user.IsActive)
	// 密码不以明文存储
	assert.NotEqual(t, "Password123!", user.PasswordHash)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	_, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	_, err = service.Register(RegisterInput{Email: "Test@Example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	_, err := service.Register(RegisterInput{Email: "not-an-email", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = service.Register(RegisterInput{Email: "test@example.com", Password: "short"})
	assert.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	registered, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	user, err := service.Login(LoginInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	// 最后登录时间已更新
	fresh, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, fresh.LastLoginAt)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	_, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "WrongPassword!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(LoginInput{Email: "missing@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	user.IsActive = false
	require.NoError(t, store.UpdateUser(user))

	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_ChangePassword(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	// 旧密码错误
	err = service.ChangePassword(user.ID, "WrongOld!", "NewPassword456!")
	assert.Error(t, err)

	require.NoError(t, service.ChangePassword(user.ID, "Password123!", "NewPassword456!"))

	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "NewPassword456!"})
	assert.NoError(t, err)
}

func TestAuthService_UpdateNotifyOnOpen(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.False(t, user.NotifyOnOpen)

	require.NoError(t, service.UpdateNotifyOnOpen(user.ID, true))

	fresh, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.NotifyOnOpen)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	// 密码不匹配时拒绝删除
	err = service.DeleteAccount(user.ID, "WrongPassword!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, service.DeleteAccount(user.ID, "Password123!"))

	_, err = service.GetUserByID(user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
