package service

import (
	"errors"

	"mailsight/backend/internal/domain"
)

var (
	// ErrAdminUserNotFound 用户不存在
	ErrAdminUserNotFound = errors.New("user not found")
	// ErrCannotModifySelf 不能修改自己
	ErrCannotModifySelf = errors.New("cannot modify self")
	// ErrCannotModifySuper 不能修改超级管理员
	ErrCannotModifySuper = errors.New("cannot modify super admin")
)

// AdminService 管理服务
type AdminService struct {
	store domain.Store
}

// NewAdminService 创建管理服务
func NewAdminService(store domain.Store) *AdminService {
	return &AdminService{store: store}
}

// ListUsersInput 列出用户的输入参数
type ListUsersInput struct {
	Page     int
	PageSize int
	Search   string // 搜索关键词（邮箱/用户名）
}

// ListUsersOutput 列出用户的输出结果
type ListUsersOutput struct {
	Users      []domain.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// ListUsers 列出所有用户（需要管理员权限）
func (s *AdminService) ListUsers(input ListUsersInput) (*ListUsersOutput, error) {
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	users, total, err := s.store.ListUsers(input.Page, input.PageSize, input.Search)
	if err != nil {
		return nil, err
	}

	totalPages := (total + input.PageSize - 1) / input.PageSize

	return &ListUsersOutput{
		Users:      users,
		Total:      total,
		Page:       input.Page,
		PageSize:   input.PageSize,
		TotalPages: totalPages,
	}, nil
}

// GetUser 获取用户详情（需要管理员权限）
func (s *AdminService) GetUser(userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, ErrAdminUserNotFound
	}
	return user, nil
}

// SetUserActive 启用或禁用用户。
// 操作者不能修改自己，也不能修改超级管理员。
func (s *AdminService) SetUserActive(operatorID, userID string, active bool) (*domain.User, error) {
	if operatorID == userID {
		return nil, ErrCannotModifySelf
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, ErrAdminUserNotFound
	}
	if user.IsSuper() {
		return nil, ErrCannotModifySuper
	}

	user.IsActive = active
	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser 删除用户及其全部数据（需要管理员权限）。
func (s *AdminService) DeleteUser(operatorID, userID string) error {
	if operatorID == userID {
		return ErrCannotModifySelf
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return ErrAdminUserNotFound
	}
	if user.IsSuper() {
		return ErrCannotModifySuper
	}

	return s.store.DeleteUser(userID)
}

// GetSystemStatistics 返回系统级统计（需要管理员权限）。
func (s *AdminService) GetSystemStatistics() (*domain.SystemStatistics, error) {
	return s.store.GetSystemStatistics()
}
