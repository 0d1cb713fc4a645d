package service

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/model"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/pkg/security"
	"Tandem/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

const searchLimit = 50

// UserSearcher 可选的外部用户检索，返回按相关度排序的用户 ID
type UserSearcher interface {
	IndexUser(ctx context.Context, user *model.User) error
	SearchUsers(ctx context.Context, excludeID uint64, query string, limit int) ([]uint64, error)
}

type UserService interface {
	Store(ctx context.Context, identity *security.Identity) (uint64, error)
	Resolve(ctx context.Context, tokenIdentifier string) (uint64, error)
	Logout(ctx context.Context, token string, expiresAt time.Time) error
	GetMe(ctx context.Context, userID uint64) (*dto.UserDTO, error)
	UpdatePresence(ctx context.Context, userID uint64, online *bool) error
	Search(ctx context.Context, userID uint64, query string) ([]*dto.UserDTO, error)
}

type UserServiceImpl struct {
	userRepo repository.UserRepo
	searcher UserSearcher
	opts     Options
}

func NewUserService(userRepo repository.UserRepo, searcher UserSearcher, opts Options) UserService {
	return &UserServiceImpl{
		userRepo: userRepo,
		searcher: searcher,
		opts:     opts,
	}
}

// Store 首次见到外部身份时创建本地用户，资料变化时同步
func (s *UserServiceImpl) Store(ctx context.Context, identity *security.Identity) (uint64, error) {
	if identity == nil || identity.Subject == "" {
		return 0, UnauthorizedError
	}
	now := s.opts.now()
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = consts.DefaultUserName
	}

	user, err := s.userRepo.GetUserByToken(ctx, identity.Subject)
	if err != nil {
		return 0, err
	}
	if user == nil {
		user = &model.User{
			TokenIdentifier: identity.Subject,
			Name:            name,
			Email:           identity.Email,
			Image:           identity.Picture,
			LastSeen:        now,
		}
		if err = s.userRepo.CreateUser(ctx, user); err != nil {
			if !repository.IsDuplicateKey(err) {
				return 0, fmt.Errorf("创建用户失败: %w", err)
			}
			// 并发首次登录，以先写入者为准
			user, err = s.userRepo.GetUserByToken(ctx, identity.Subject)
			if err != nil {
				return 0, err
			}
			if user == nil {
				return 0, UnExpectedError
			}
			return user.ID, nil
		}
		s.index(ctx, user)
		return user.ID, nil
	}

	if user.Name != name || user.Email != identity.Email || !sameString(user.Image, identity.Picture) {
		user.Name = name
		user.Email = identity.Email
		user.Image = identity.Picture
		user.LastSeen = now
		if err = s.userRepo.UpdateProfile(ctx, user); err != nil {
			return 0, fmt.Errorf("更新用户资料失败: %w", err)
		}
		s.index(ctx, user)
	}
	return user.ID, nil
}

// Resolve 外部身份到本地用户 ID，未知身份返回 0
func (s *UserServiceImpl) Resolve(ctx context.Context, tokenIdentifier string) (uint64, error) {
	if tokenIdentifier == "" {
		return 0, nil
	}
	user, err := s.userRepo.GetUserByToken(ctx, tokenIdentifier)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, nil
	}
	return user.ID, nil
}

// Logout 将 Token 签名加入黑名单直至其过期
func (s *UserServiceImpl) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return UnauthorizedError
	}
	ttl := expiresAt.Sub(s.opts.now())
	if ttl <= 0 {
		return nil
	}
	return redis.SetWithExpiration(ctx, consts.TokenRevokedKey+signature, true, ttl)
}

func (s *UserServiceImpl) GetMe(ctx context.Context, userID uint64) (*dto.UserDTO, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toUserDTO(user, s.opts.now(), s.opts.OnlineThreshold), nil
}

// UpdatePresence 心跳刷新 last_seen，online=false 时直接置为离线
func (s *UserServiceImpl) UpdatePresence(ctx context.Context, userID uint64, online *bool) error {
	if userID == 0 {
		return nil
	}
	lastSeen := s.opts.now()
	if online != nil && !*online {
		lastSeen = lastSeen.Add(-s.opts.OnlineThreshold)
	}
	return s.userRepo.UpdateLastSeen(ctx, userID, lastSeen)
}

// Search 按名称模糊搜索，排除自己
func (s *UserServiceImpl) Search(ctx context.Context, userID uint64, query string) ([]*dto.UserDTO, error) {
	res := make([]*dto.UserDTO, 0)
	if userID == 0 {
		return res, nil
	}
	query = strings.TrimSpace(query)

	var users []*model.User
	var err error
	if s.searcher != nil {
		users, err = s.searchIndex(ctx, userID, query)
	} else {
		users, err = s.userRepo.SearchByName(ctx, userID, query, searchLimit)
	}
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	for _, u := range users {
		res = append(res, toUserDTO(u, now, s.opts.OnlineThreshold))
	}
	return res, nil
}

func (s *UserServiceImpl) searchIndex(ctx context.Context, userID uint64, query string) ([]*model.User, error) {
	ids, err := s.searcher.SearchUsers(ctx, userID, query, searchLimit)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	// 保持检索结果的相关度顺序，last_seen 以数据库为准
	byID := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok && id != userID {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

func (s *UserServiceImpl) index(ctx context.Context, user *model.User) {
	if s.searcher == nil {
		return
	}
	if err := s.searcher.IndexUser(ctx, user); err != nil {
		log.WarnContext(ctx, "index user failed", "user_id", user.ID, "err", err)
	}
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
