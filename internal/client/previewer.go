package client

import (
	"context"
	"sync"
	"time"

	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"go.uber.org/zap"
)

type PreviewClassifier interface {
	Classify(ctx context.Context, draft task.Draft) (classifier.Result, error)
}

// RulesPreview - локальная классификация для гостевого режима
type RulesPreview struct {
	Rules classifier.Rules
}

func (p RulesPreview) Classify(ctx context.Context, draft task.Draft) (classifier.Result, error) {
	return p.Rules.Classify(classifier.Input{
		Title:       draft.Title,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
	}), nil
}

// Previewer - живая подсказка классификации при наборе текста. Каждый новый запрос
// отменяет предыдущий, доставляется только результат самого свежего.
// deliver не должен синхронно вызывать Request или Stop.
type Previewer struct {
	classifier PreviewClassifier
	delay      time.Duration

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

func NewPreviewer(c PreviewClassifier, delay time.Duration) *Previewer {
	return &Previewer{classifier: c, delay: delay}
}

func (p *Previewer) Request(draft task.Draft, deliver func(classifier.Result)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.gen++
	gen := p.gen

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.timer = time.AfterFunc(p.delay, func() {
		result, err := p.classifier.Classify(ctx, draft)

		// доставка под блокировкой: новый Request дождётся её и устаревший ответ не проскочит
		p.mu.Lock()
		defer p.mu.Unlock()

		if gen != p.gen {
			return
		}
		if err != nil {
			logger.Debug("Client: Подсказка классификации недоступна", zap.Error(err))
			return
		}
		deliver(result)
	})
}

func (p *Previewer) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop отменяет ожидающий запрос
func (p *Previewer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
}
