package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/security"
	"context"
	"sync"
	"time"
)

type markReadCall struct {
	userID uint64
	convID uint64
}

type stubUserService struct {
	mu        sync.Mutex
	presence  []*bool
	resolveID uint64
}

func (s *stubUserService) Store(context.Context, *security.Identity) (uint64, error) { return 1, nil }
func (s *stubUserService) Resolve(context.Context, string) (uint64, error) {
	return s.resolveID, nil
}
func (s *stubUserService) Logout(context.Context, string, time.Time) error { return nil }
func (s *stubUserService) GetMe(context.Context, uint64) (*dto.UserDTO, error) {
	return nil, nil
}
func (s *stubUserService) UpdatePresence(_ context.Context, _ uint64, online *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence = append(s.presence, online)
	return nil
}
func (s *stubUserService) Search(context.Context, uint64, string) ([]*dto.UserDTO, error) {
	return nil, nil
}

type stubIMService struct {
	mu        sync.Mutex
	reads     []markReadCall
	limits    []int
	createErr error
}

func (s *stubIMService) GetOrCreateConversation(_ context.Context, _, _ uint64) (uint64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	return 42, nil
}
func (s *stubIMService) GetConversationList(_ context.Context, _ uint64, req *dto.PageReq) (*dto.ConversationPageDTO, error) {
	s.mu.Lock()
	s.limits = append(s.limits, req.Limit)
	s.mu.Unlock()
	return &dto.ConversationPageDTO{Page: []*dto.ConversationDTO{}, IsDone: true}, nil
}
func (s *stubIMService) MarkAsRead(_ context.Context, userID, convID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, markReadCall{userID: userID, convID: convID})
	return nil
}

type stubTypingService struct {
	mu   sync.Mutex
	sets []uint64
}

func (s *stubTypingService) Set(_ context.Context, _, convID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, convID)
	return nil
}
func (s *stubTypingService) Get(context.Context, uint64, uint64) (*dto.TypingDTO, error) {
	return &dto.TypingDTO{Names: []string{}}, nil
}
