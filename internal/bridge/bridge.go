package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gridadmin/internal/command"
)

var errEmptyIdentifier = errors.New("empty identifier")

// Processor принимает каноническую командную строку и возвращает
// отрендеренный ответ.
type Processor interface {
	ProcessCommand(ctx context.Context, line string) (string, error)
}

// ProcessorFunc адаптирует функцию к Processor.
type ProcessorFunc func(ctx context.Context, line string) (string, error)

func (f ProcessorFunc) ProcessCommand(ctx context.Context, line string) (string, error) {
	return f(ctx, line)
}

// Filter — фильтры участников. Member == nil означает "без фильтра".
type Filter struct {
	Member *string
	Groups []string
}

// Request — структурированный запрос к durable-клиенту.
type Request struct {
	ClientID string
	CQName   string
	Filter   Filter
}

// ParseRequest строит Request из percent-encoded сегментов пути и query.
// rawCQName может быть пустым.
func ParseRequest(rawClientID, rawCQName string, query url.Values) (Request, error) {
	clientID, err := decode(rawClientID)
	if err != nil {
		return Request{}, fmt.Errorf("durable client id: %w", err)
	}
	if clientID == "" {
		return Request{}, fmt.Errorf("durable client id: %w", errEmptyIdentifier)
	}
	var cqName string
	if rawCQName != "" {
		if cqName, err = decode(rawCQName); err != nil {
			return Request{}, fmt.Errorf("durable cq name: %w", err)
		}
	}
	return Request{ClientID: clientID, CQName: cqName, Filter: ParseFilter(query)}, nil
}

// ParseFilter читает member (одно значение) и group (повторяемый,
// допускает список через запятую).
func ParseFilter(query url.Values) Filter {
	var f Filter
	if vals, ok := query[command.OptionMember]; ok && len(vals) > 0 {
		member := vals[0]
		f.Member = &member
	}
	for _, v := range query[command.OptionGroup] {
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				f.Groups = append(f.Groups, g)
			}
		}
	}
	return f
}

func decode(raw string) (string, error) {
	return url.PathUnescape(raw)
}

func addFilter(b *command.Builder, f Filter) *command.Builder {
	if f.Member != nil {
		b.AddOption(command.OptionMember, *f.Member)
	}
	if len(f.Groups) > 0 {
		b.AddValues(command.OptionGroup, f.Groups)
	}
	return b
}

// ListDurableCQsCommand кодирует запрос списка CQ клиента.
func ListDurableCQsCommand(req Request) string {
	b := command.NewBuilder(command.ListDurableCQs).
		AddOption(command.OptionDurableClientID, req.ClientID)
	return addFilter(b, req.Filter).String()
}

// CountDurableCQEventsCommand кодирует подсчет событий; CQName опционален.
func CountDurableCQEventsCommand(req Request) string {
	return countEvents(req.ClientID, req.CQName, req.Filter)
}

func countEvents(clientID, cqName string, f Filter) string {
	b := command.NewBuilder(command.CountDurableCQEvents).
		AddOption(command.OptionDurableClientID, clientID)
	if cqName != "" {
		b.AddOption(command.OptionDurableCQName, cqName)
	}
	return addFilter(b, f).String()
}

// CloseDurableClientCommand кодирует закрытие durable-клиента.
func CloseDurableClientCommand(req Request) string {
	b := command.NewBuilder(command.CloseDurableClient).
		AddOption(command.OptionDurableClientID, req.ClientID)
	return addFilter(b, req.Filter).String()
}

// CloseDurableCQCommand кодирует закрытие одной CQ.
func CloseDurableCQCommand(req Request) string {
	b := command.NewBuilder(command.CloseDurableCQ).
		AddOption(command.OptionDurableClientID, req.ClientID).
		AddOption(command.OptionDurableCQName, req.CQName)
	return addFilter(b, req.Filter).String()
}

// DestroyRegionCommand кодирует удаление региона.
func DestroyRegionCommand(path string, f Filter) string {
	b := command.NewBuilder(command.DestroyRegion).AddOption(command.OptionName, path)
	return addFilter(b, f).String()
}

// ListDeployedCommand кодирует список развернутых jar.
func ListDeployedCommand(f Filter) string {
	return addFilter(command.NewBuilder(command.ListDeployed), f).String()
}

// Bridge передает закодированные команды единственному процессору.
type Bridge struct {
	processor Processor
}

// New создает мост поверх процессора.
func New(p Processor) *Bridge {
	return &Bridge{processor: p}
}

func (b *Bridge) ListDurableCQs(ctx context.Context, req Request) (string, error) {
	return b.processor.ProcessCommand(ctx, ListDurableCQsCommand(req))
}

func (b *Bridge) CountDurableCQEvents(ctx context.Context, req Request) (string, error) {
	return b.processor.ProcessCommand(ctx, CountDurableCQEventsCommand(req))
}

func (b *Bridge) CloseDurableClient(ctx context.Context, req Request) (string, error) {
	return b.processor.ProcessCommand(ctx, CloseDurableClientCommand(req))
}

// CloseDurableCQ требует непустое имя CQ.
func (b *Bridge) CloseDurableCQ(ctx context.Context, req Request) (string, error) {
	if req.CQName == "" {
		return "", fmt.Errorf("durable cq name: %w", errEmptyIdentifier)
	}
	return b.processor.ProcessCommand(ctx, CloseDurableCQCommand(req))
}

func (b *Bridge) DestroyRegion(ctx context.Context, path string, f Filter) (string, error) {
	if path == "" {
		return "", fmt.Errorf("region path: %w", errEmptyIdentifier)
	}
	return b.processor.ProcessCommand(ctx, DestroyRegionCommand(path, f))
}

func (b *Bridge) ListDeployed(ctx context.Context, f Filter) (string, error) {
	return b.processor.ProcessCommand(ctx, ListDeployedCommand(f))
}

// ParseRegionPath декодирует percent-encoded путь региона и добавляет
// ведущий разделитель.
func ParseRegionPath(raw string) (string, error) {
	path, err := decode(strings.TrimPrefix(raw, "/"))
	if err != nil {
		return "", fmt.Errorf("region path: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("region path: %w", errEmptyIdentifier)
	}
	return "/" + path, nil
}
