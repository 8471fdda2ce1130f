package cached

import (
	"time"

	"mailsight/backend/internal/cache"
	"mailsight/backend/internal/domain"
)

// Store 在任意存储实现外罩一层进程内像素缓存。
//
// 只配置了数据库、没有 Redis 时由它承担像素热路径的
// 点查询加速。底层存储始终是真实数据源，缓存只存正向
// 命中，删除邮件或用户时同步失效。
type Store struct {
	domain.Store
	pixels *cache.Cache
}

// NewStore 创建带进程内像素缓存的存储
func NewStore(inner domain.Store, pixelTTL time.Duration) *Store {
	return &Store{
		Store:  inner,
		pixels: cache.New(pixelTTL),
	}
}

// SavePixel 保存追踪像素并预热缓存
func (s *Store) SavePixel(pixel *domain.TrackingPixel) error {
	if err := s.Store.SavePixel(pixel); err != nil {
		return err
	}
	s.pixels.Set(pixel.PixelCode, *pixel)
	return nil
}

// GetPixelByCode 根据像素代码获取像素（缓存优先）
func (s *Store) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	if val, ok := s.pixels.Get(code); ok {
		pixel := val.(domain.TrackingPixel)
		return &pixel, nil
	}

	pixel, err := s.Store.GetPixelByCode(code)
	if err != nil {
		return nil, err
	}

	s.pixels.Set(code, *pixel)
	return pixel, nil
}

// DeleteMailItem 删除追踪邮件并使其像素缓存失效
func (s *Store) DeleteMailItem(id string) error {
	pixel, pixelErr := s.Store.GetPixelByMailID(id)

	if err := s.Store.DeleteMailItem(id); err != nil {
		return err
	}

	if pixelErr == nil {
		s.pixels.Delete(pixel.PixelCode)
	}
	return nil
}

// DeleteUser 删除用户及其全部追踪数据，并清理其像素缓存
func (s *Store) DeleteUser(userID string) error {
	// 先收集该用户的像素代码
	mails, _ := s.Store.ListMailItemsByUserID(userID)
	codes := make([]string, 0, len(mails))
	for _, mail := range mails {
		if pixel, err := s.Store.GetPixelByMailID(mail.ID); err == nil {
			codes = append(codes, pixel.PixelCode)
		}
	}

	if err := s.Store.DeleteUser(userID); err != nil {
		return err
	}

	for _, code := range codes {
		s.pixels.Delete(code)
	}
	return nil
}

// Close 停止缓存回收并关闭底层存储
func (s *Store) Close() error {
	s.pixels.Close()
	return s.Store.Close()
}
