package function

import (
	"errors"
	"sync"
)

// ErrResultSent возвращается при записи после терминального результата.
var ErrResultSent = errors.New("last result already sent")

// ResultSender — канал результатов вызова. Отправка не блокирует вызывающего.
type ResultSender interface {
	SendResult(r Result) error
	LastResult(r Result) error
}

// Collector накапливает результаты одного вызова.
type Collector struct {
	mu      sync.Mutex
	results []Result
	closed  bool
	done    chan struct{}
}

// NewCollector создает пустой сборщик.
func NewCollector() *Collector {
	return &Collector{done: make(chan struct{})}
}

// SendResult добавляет промежуточный результат.
func (c *Collector) SendResult(r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrResultSent
	}
	c.results = append(c.results, r)
	return nil
}

// LastResult добавляет терминальный результат и закрывает поток.
func (c *Collector) LastResult(r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrResultSent
	}
	c.results = append(c.results, r)
	c.closed = true
	close(c.done)
	return nil
}

// Done закрывается после терминального результата.
func (c *Collector) Done() <-chan struct{} { return c.done }

// Terminated сообщает, был ли отправлен терминальный результат.
func (c *Collector) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Results возвращает копию накопленных результатов.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}
