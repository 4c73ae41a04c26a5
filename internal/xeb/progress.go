package xeb

import (
	"sync"

	"go.uber.org/zap"
)

// Reporter receives progress of a long-running operation. Begin is called
// once with the total amount of work, Advance as work completes and End when
// the operation returns.
type Reporter interface {
	Begin(total int)
	Advance(n int)
	End()
}

// NoProgress discards progress reports
type NoProgress struct{}

func (NoProgress) Begin(int)   {}
func (NoProgress) Advance(int) {}
func (NoProgress) End()        {}

// LogProgress writes progress to a zap logger
type LogProgress struct {
	logger *zap.Logger
	label  string

	mutex sync.Mutex
	total int
	done  int
}

// NewLogProgress creates a reporter logging under label. A nil logger uses
// the global logger.
func NewLogProgress(logger *zap.Logger, label string) *LogProgress {
	if logger == nil {
		logger = zap.L()
	}
	return &LogProgress{logger: logger, label: label}
}

func (p *LogProgress) Begin(total int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.total, p.done = total, 0
	p.logger.Info("started", zap.String("operation", p.label), zap.Int("total", total))
}

func (p *LogProgress) Advance(n int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.done += n
	p.logger.Info("progress", zap.String("operation", p.label), zap.Int("done", p.done), zap.Int("total", p.total))
}

func (p *LogProgress) End() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.logger.Info("finished", zap.String("operation", p.label), zap.Int("done", p.done))
}

// Done returns the amount of work reported so far
func (p *LogProgress) Done() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.done
}
