package cron

import (
	log "log/slog"

	"Bazaar/internal/job"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine   *cron.Cron
	staleJob *job.StaleModerationJob
	spec     string
}

// NewCronManager spec 为带秒的 cron 表达式
func NewCronManager(staleJob *job.StaleModerationJob, spec string) *Manager {
	return &Manager{
		engine:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		staleJob: staleJob,
		spec:     spec,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.spec, s.staleJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "stale_spec", s.spec)
	s.engine.Start()
}

// Stop 等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
