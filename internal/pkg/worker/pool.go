package worker

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"runtime/debug"
	"sync"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task 提交到池中执行的任务，ctx 在 Stop 后被取消
type Task func(ctx context.Context)

// Pool 固定数量 worker + 有界队列，队列满时直接拒绝
type Pool struct {
	name    string
	tasks   chan Task
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewPool 创建 worker 池，workers/queueSize 非正数时使用默认值
func NewPool(name string, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 128
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:    name,
		tasks:   make(chan Task, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动 worker，可重复调用
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.loop(i)
		}
		log.Info("worker pool started", "pool", p.name, "workers", p.workers, "queue", cap(p.tasks))
	})
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker task panic", "pool", p.name, "worker", id, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}

// Submit 非阻塞提交
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending 队列中尚未被领取的任务数
func (p *Pool) Pending() int {
	return len(p.tasks)
}

// Stop 停止接收新任务并等待队列排空；ctx 到期后取消正在执行的任务并返回
func (p *Pool) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.tasks)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			p.cancel()
			<-done
			err = ctx.Err()
		}
		p.cancel()
		log.Info("worker pool stopped", "pool", p.name)
	})
	return err
}
