// Package scheduler 定时任务：发件箱中继与过期合约巡检。
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job 定时任务函数，ctx 在 Stop 时取消
type Job func(ctx context.Context) error

// Scheduler cron 调度器，同一任务上一次未结束时跳过本次触发
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel, logger: logger.With("module", "scheduler")}
}

// Add 注册任务，spec 支持六段式与 @every 描述
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("job failed", "job", name, "error", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Debug("job finished", "job", name, "elapsed", time.Since(start))
	})
	if err != nil {
		return err
	}
	s.logger.Info("job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止触发并等待运行中的任务退出
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweeper 过期巡检
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// Relayer 发件箱中继
type Relayer interface {
	RelayOnce(ctx context.Context) (int, error)
}

// Config 任务表达式，空串表示不注册
type Config struct {
	OutboxRelay string
	ExpirySweep string
	BatchSize   int
}

// Register 注册期权服务的两个定时任务；relayer 为 nil 时跳过中继
func Register(s *Scheduler, cfg Config, sweeper Sweeper, relayer Relayer) error {
	if cfg.ExpirySweep != "" && sweeper != nil {
		if err := s.Add("expiry_sweep", cfg.ExpirySweep, func(ctx context.Context) error {
			_, err := sweeper.SweepExpired(ctx, cfg.BatchSize)
			return err
		}); err != nil {
			return err
		}
	}
	if cfg.OutboxRelay != "" && relayer != nil {
		if err := s.Add("outbox_relay", cfg.OutboxRelay, func(ctx context.Context) error {
			// 一次触发内把积压消息投完
			for {
				n, err := relayer.RelayOnce(ctx)
				if err != nil || n == 0 {
					return err
				}
				if cfg.BatchSize > 0 && n < cfg.BatchSize {
					return nil
				}
			}
		}); err != nil {
			return err
		}
	}
	return nil
}
