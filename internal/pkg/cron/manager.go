package cron

import (
	"Tandem/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

const defaultRepairSpec = "@every 10m"

type Manager struct {
	engine          *cron.Cron
	memberRepairJob *job.MemberRepairJob
	repairSpec      string
}

func NewCronManager(memberRepairJob *job.MemberRepairJob, repairSpec string) *Manager {
	if repairSpec == "" {
		repairSpec = defaultRepairSpec
	}
	return &Manager{
		engine:          cron.New(cron.WithSeconds()),
		memberRepairJob: memberRepairJob,
		repairSpec:      repairSpec,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.repairSpec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.memberRepairJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
