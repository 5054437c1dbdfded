package logger

import (
	"context"
	log "log/slog"
	"sync/atomic"
)

// remoteSink 本地日志全部输出；远端只收带 trace_id 的请求链路日志和 Warn 以上的日志
type remoteSink struct {
	local   log.Handler
	remote  log.Handler
	dropped *atomic.Int64
}

func newRemoteSink(local, remote log.Handler) *remoteSink {
	return &remoteSink{local: local, remote: remote, dropped: &atomic.Int64{}}
}

func (s *remoteSink) Enabled(ctx context.Context, level log.Level) bool {
	return s.local.Enabled(ctx, level) || s.remote.Enabled(ctx, level)
}

func (s *remoteSink) Handle(ctx context.Context, r log.Record) error {
	var err error
	if s.local.Enabled(ctx, r.Level) {
		err = s.local.Handle(ctx, r.Clone())
	}
	if !s.shipRemote(ctx, r) {
		return err
	}
	// 远端不可用不影响本地日志
	if rerr := s.remote.Handle(ctx, r); rerr != nil {
		s.dropped.Add(1)
	}
	return err
}

func (s *remoteSink) shipRemote(ctx context.Context, r log.Record) bool {
	if !s.remote.Enabled(ctx, r.Level) {
		return false
	}
	return r.Level >= log.LevelWarn || TraceID(ctx) != ""
}

// Dropped 远端写入失败的条数
func (s *remoteSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *remoteSink) WithAttrs(attrs []log.Attr) log.Handler {
	return &remoteSink{local: s.local.WithAttrs(attrs), remote: s.remote.WithAttrs(attrs), dropped: s.dropped}
}

func (s *remoteSink) WithGroup(name string) log.Handler {
	return &remoteSink{local: s.local.WithGroup(name), remote: s.remote.WithGroup(name), dropped: s.dropped}
}
