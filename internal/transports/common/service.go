package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridadmin/internal/bridge"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/storage"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// unknownModule подставляется в аудит для команд без модуля.
const unknownModule = "unknown"

// Service объединяет общий пайплайн parse->authz->ratelimit->core->audit.
type Service struct {
	Source      string
	Registry    *core.Registry
	Authorizer  core.Authorizer
	RateLimiter *RateLimiter
	AuditSink   storage.AuditWriter
}

// ExecuteText разбирает командную строку и выполняет ее от имени subject.
func (s *Service) ExecuteText(ctx context.Context, subjectID, line string) (core.Response, error) {
	cmd, err := command.Parse(line)
	if err != nil {
		return core.Failed("bad_command", err.Error()), err
	}
	return s.Execute(ctx, subjectID, cmd)
}

// Execute проводит разобранную команду через авторизацию, лимит и аудит.
func (s *Service) Execute(ctx context.Context, subjectID string, cmd command.Command) (core.Response, error) {
	module, known := s.Registry.Module(cmd.Keyword)
	if !known {
		module = unknownModule
	}
	subject := core.Subject{Source: s.Source, ID: subjectID}
	action := core.Action{Module: module, Command: cmd.Keyword}
	// Неизвестное ключевое слово не авторизуется: реестр ответит command_not_found,
	// но лимит и аудит действуют.
	if known && s.Authorizer != nil {
		if err := s.Authorizer.Authorize(subject, action); err != nil {
			s.writeAudit(ctx, subject, action, "denied", cmd, "access_denied")
			return core.Failed("access_denied", ""), fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	if s.RateLimiter != nil {
		if !s.RateLimiter.Allow(fmt.Sprintf("%s:%s", s.Source, subjectID), time.Now()) {
			s.writeAudit(ctx, subject, action, "rate_limited", cmd, "rate_limited")
			return core.Failed("rate_limited", ""), ErrRateLimited
		}
	}
	resp, execErr := s.Registry.Execute(ctx, cmd)
	status := core.StatusOK
	if execErr != nil || resp.Status == core.StatusError {
		status = core.StatusError
	}
	s.writeAudit(ctx, subject, action, status, cmd, resp.ErrorCode)
	return resp, execErr
}

// Processor возвращает bridge.Processor, исполняющий строки от имени subject.
func (s *Service) Processor(subjectID string) bridge.Processor {
	return bridge.ProcessorFunc(func(ctx context.Context, line string) (string, error) {
		resp, err := s.ExecuteText(ctx, subjectID, line)
		rendered, renderErr := core.Render(resp)
		if renderErr != nil {
			return "", renderErr
		}
		return rendered, err
	})
}

func (s *Service) writeAudit(ctx context.Context, subject core.Subject, action core.Action, status string, cmd command.Command, errorCode string) {
	if s.AuditSink == nil {
		return
	}
	_ = s.AuditSink.Write(ctx, storage.AuditEvent{
		Subject:   subject.ID,
		Action:    fmt.Sprintf("%s:%s", action.Module, action.Command),
		Source:    subject.Source,
		Status:    status,
		RequestID: requestID(ctx),
		Payload:   buildAuditPayload(action.Module, cmd, errorCode),
	})
}
