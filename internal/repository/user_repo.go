package repository

import (
	"Tandem/internal/model"
	"Tandem/internal/pkg/util"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRepo interface {
	GetUserById(ctx context.Context, id uint64) (*model.User, error)
	GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
	GetUserByToken(ctx context.Context, token string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateLastSeen(ctx context.Context, id uint64, lastSeen time.Time) error
	SearchByName(ctx context.Context, excludeID uint64, query string, limit int) ([]*model.User, error)
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

func (s *UserRepoImpl) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).First(user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return user, nil
}

func (s *UserRepoImpl) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	users := make([]*model.User, 0)
	if len(ids) == 0 {
		return users, nil
	}
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

func (s *UserRepoImpl) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).Where("token_identifier = ?", token).First(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return user, nil
}

func (s *UserRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// UpdateProfile 同步身份提供方的资料字段，image 允许置空
// 写回新的 updated_at，索引以它作为版本号
func (s *UserRepoImpl) UpdateProfile(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Model(user).
		Where("id = ?", user.ID).
		Select("name", "email", "image", "last_seen").
		Updates(user).Error
}

func (s *UserRepoImpl) UpdateLastSeen(ctx context.Context, id uint64, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_seen", lastSeen).Error
}

// SearchByName 按名称子串模糊查询，排除当前用户
func (s *UserRepoImpl) SearchByName(ctx context.Context, excludeID uint64, query string, limit int) ([]*model.User, error) {
	users := make([]*model.User, 0)
	tx := s.db.WithContext(ctx).Where("id <> ?", excludeID)
	if query != "" {
		tx = tx.Where("LOWER(name) LIKE ? ESCAPE '"+util.LikeEscapeChar+"'", "%"+util.EscapeLike(strings.ToLower(query))+"%")
	}
	result := tx.Order("name ASC").Limit(limit).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}
