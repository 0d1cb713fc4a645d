package job

import (
	"Tandem/internal/pkg/logger"
	"Tandem/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// MemberRepairJob 修复未读标记与未读数不一致的成员行
type MemberRepairJob struct {
	convRepo repository.ConversationRepo
	timeout  time.Duration
}

func NewMemberRepairJob(convRepo repository.ConversationRepo) *MemberRepairJob {
	return &MemberRepairJob{
		convRepo: convRepo,
		timeout:  time.Minute,
	}
}

func (s *MemberRepairJob) Run() {
	traceID := "job-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	affected, err := s.convRepo.RepairUnreadFlags(ctx)
	if err != nil {
		log.ErrorContext(ctx, "repair member unread flags error", "err", err)
		return
	}
	if affected > 0 {
		log.WarnContext(ctx, "repaired member unread flags", "rows", affected)
		return
	}
	log.InfoContext(ctx, "member unread flags consistent")
}
