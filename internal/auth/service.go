package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mailsight/backend/internal/domain"
)

var (
	// ErrInvalidEmail 无效的邮箱格式
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("invalid password")
	// ErrEmailExists 邮箱已存在
	ErrEmailExists = errors.New("email already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserRepository 用户存储接口
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
	DeleteUser(userID string) error
}

// Service 认证服务
type Service struct {
	userRepo UserRepository
}

// NewService 创建认证服务
func NewService(userRepo UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput 登录输入
type LoginInput struct {
	Email    string
	Password string
}

// Register 用户注册
func (s *Service) Register(input RegisterInput) (*domain.User, error) {
	// 验证邮箱格式
	if !ValidateEmail(input.Email) {
		return nil, ErrInvalidEmail
	}

	// 验证密码强度
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(input.Email)

	// 检查邮箱是否已存在
	if user, err := s.userRepo.GetUserByEmail(email); err == nil && user != nil {
		return nil, ErrEmailExists
	}

	// 哈希密码
	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     input.Username,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser, // 默认为普通用户
		Tier:         domain.TierFree,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login 用户登录
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	user, err := s.userRepo.GetUserByEmail(strings.ToLower(input.Email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 检查用户是否激活
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 验证密码
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// 更新最后登录时间
	_ = s.userRepo.UpdateLastLogin(user.ID)

	return user, nil
}

// GetUserByID 根据 ID 获取用户
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	// 验证旧密码
	if !CheckPassword(oldPassword, user.PasswordHash) {
		return errors.New("invalid old password")
	}

	// 验证新密码强度
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.userRepo.UpdateUser(user)
}

// UpdateNotifyOnOpen 更新首次打开邮件通知开关
func (s *Service) UpdateNotifyOnOpen(userID string, enabled bool) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	user.NotifyOnOpen = enabled
	return s.userRepo.UpdateUser(user)
}

// DeleteAccount 删除账号（需要密码确认）
func (s *Service) DeleteAccount(userID, password string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	if !CheckPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	return s.userRepo.DeleteUser(userID)
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword 验证密码强度
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 characters")
	}
	return nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
