package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gridadmin/internal/bridge"
	"gridadmin/internal/command"
	"gridadmin/internal/core"
	"gridadmin/internal/storage"
	"gridadmin/internal/transports/common"
)

type executeRequest struct {
	Command string `json:"command"`
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id":  requestIDFromContext(r.Context()),
		"subject":     id.Subject,
		"roles":       id.Roles,
		"auth_method": id.Method,
	})
}

func (a *Adapter) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      a.service.Registry.Providers(),
		"commands":   a.service.Registry.Commands(),
	})
}

func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if dec.More() {
		writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_command")
		return
	}
	resp, err := a.service.ExecuteText(r.Context(), subjectIDFromContext(r.Context()), req.Command)
	a.writeResponse(w, r, resp, err)
}

// viaBridge отдает структурированный запрос мосту и пишет ответ пайплайна.
func (a *Adapter) viaBridge(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, b *bridge.Bridge) (string, error)) {
	var (
		resp    core.Response
		execErr error
		ran     bool
	)
	subjectID := subjectIDFromContext(r.Context())
	b := bridge.New(bridge.ProcessorFunc(func(ctx context.Context, line string) (string, error) {
		ran = true
		resp, execErr = a.service.ExecuteText(ctx, subjectID, line)
		return core.Render(resp)
	}))
	if _, err := call(r.Context(), b); err != nil && !ran {
		writeError(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	a.writeResponse(w, r, resp, execErr)
}

func (a *Adapter) durableRequest(w http.ResponseWriter, r *http.Request) (bridge.Request, bool) {
	var rawCQ string
	if r.PathValue("cq") != "" {
		rawCQ = rawSegment(r, 3)
	}
	req, err := bridge.ParseRequest(rawSegment(r, 1), rawCQ, r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_identifier")
		return bridge.Request{}, false
	}
	return req, true
}

func (a *Adapter) handleListDurableCQs(w http.ResponseWriter, r *http.Request) {
	req, ok := a.durableRequest(w, r)
	if !ok {
		return
	}
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.ListDurableCQs(ctx, req)
	})
}

func (a *Adapter) handleCountEvents(w http.ResponseWriter, r *http.Request) {
	req, ok := a.durableRequest(w, r)
	if !ok {
		return
	}
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.CountDurableCQEvents(ctx, req)
	})
}

func (a *Adapter) handleCloseDurableClient(w http.ResponseWriter, r *http.Request) {
	if !requireCloseOp(w, r) {
		return
	}
	req, ok := a.durableRequest(w, r)
	if !ok {
		return
	}
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.CloseDurableClient(ctx, req)
	})
}

func (a *Adapter) handleCloseDurableCQ(w http.ResponseWriter, r *http.Request) {
	if !requireCloseOp(w, r) {
		return
	}
	req, ok := a.durableRequest(w, r)
	if !ok {
		return
	}
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.CloseDurableCQ(ctx, req)
	})
}

func (a *Adapter) handleDestroyRegion(w http.ResponseWriter, r *http.Request) {
	path, err := bridge.ParseRegionPath(strings.TrimPrefix(r.URL.EscapedPath(), "/v1/regions/"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_identifier")
		return
	}
	filter := bridge.ParseFilter(r.URL.Query())
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.DestroyRegion(ctx, path, filter)
	})
}

func (a *Adapter) handleListDeployed(w http.ResponseWriter, r *http.Request) {
	filter := bridge.ParseFilter(r.URL.Query())
	a.viaBridge(w, r, func(ctx context.Context, b *bridge.Bridge) (string, error) {
		return b.ListDeployed(ctx, filter)
	})
}

func requireCloseOp(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("op") != "close" {
		writeError(w, r, http.StatusBadRequest, "unsupported_op")
		return false
	}
	return true
}

// rawSegment возвращает i-й сегмент пути без percent-декодирования.
func rawSegment(r *http.Request, i int) string {
	parts := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/v1/"), "/")
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}

func (a *Adapter) writeResponse(w http.ResponseWriter, r *http.Request, resp core.Response, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
		return
	}
	if err != nil && resp.ErrorCode == "" {
		a.logger.Error("command failed", "request_id", requestIDFromContext(r.Context()), "err", err)
		resp = core.Failed("internal_error", "")
	}
	writeJSON(w, r, statusFor(resp, err), map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"status":     resp.Status,
		"message":    resp.Message,
		"data":       resp.Data,
		"error_code": resp.ErrorCode,
	})
}

// statusFor сопоставляет ответ пайплайна HTTP-статусу.
func statusFor(resp core.Response, err error) int {
	switch {
	case errors.Is(err, common.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, command.ErrMalformed), errors.Is(err, command.ErrEmptyCommand),
		errors.Is(err, command.ErrDuplicateOption), errors.Is(err, command.ErrMissingOption):
		return http.StatusBadRequest
	}
	if resp.Status != core.StatusError {
		return http.StatusOK
	}
	switch resp.ErrorCode {
	case "bad_command", "invalid_arguments":
		return http.StatusBadRequest
	case "command_not_found", "no_members", "not_found", "region_not_found", "member_not_found":
		return http.StatusNotFound
	case "illegal_state":
		return http.StatusConflict
	case "cache_closed":
		return http.StatusServiceUnavailable
	case "command_failed", "list_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *Adapter) handleLatestMetric(w http.ResponseWriter, r *http.Request) {
	subjectID := subjectIDFromContext(r.Context())
	member := r.URL.Query().Get("module")
	if member == "" {
		writeError(w, r, http.StatusBadRequest, "module_required")
		return
	}

	rec, err := a.store.LatestMetric(r.Context(), member)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			return
		}
		writeError(w, r, http.StatusNotFound, "metric_not_found")
		a.writeAudit(r.Context(), subjectID, "web:metrics_latest", "error", map[string]string{"module": member})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"module":     rec.Module,
		"ts":         rec.TS.UTC().Format(time.RFC3339),
		"payload":    json.RawMessage(rec.Payload),
	})
	a.writeAudit(r.Context(), subjectID, "web:metrics_latest", "ok", map[string]string{"module": member})
}

func (a *Adapter) handleAudit(w http.ResponseWriter, r *http.Request) {
	subjectID := subjectIDFromContext(r.Context())
	q := storage.AuditQuery{
		Subject: r.URL.Query().Get("subject"),
		Limit:   parseLimit(r.URL.Query().Get("limit")),
	}
	for param, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		v := r.URL.Query().Get(param)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_"+param)
			return
		}
		*dst = ts
	}

	events, err := a.store.QueryAudit(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "query_failed")
		return
	}

	type eventDTO struct {
		Subject   string          `json:"subject"`
		Action    string          `json:"action"`
		Source    string          `json:"source"`
		Status    string          `json:"status"`
		RequestID string          `json:"request_id"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		TS        string          `json:"ts"`
	}
	items := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		items = append(items, eventDTO{
			Subject:   ev.Subject,
			Action:    ev.Action,
			Source:    ev.Source,
			Status:    ev.Status,
			RequestID: ev.RequestID,
			Payload:   json.RawMessage(ev.Payload),
			TS:        ev.TS.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      items,
	})
	a.writeAudit(r.Context(), subjectID, "web:audit_query", "ok", map[string]string{"items": strconv.Itoa(len(items))})
}

func (a *Adapter) handleConfigEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := a.store.ConfigEntities(r.Context(), r.URL.Query().Get("group"), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "query_failed")
		return
	}
	type entityDTO struct {
		Group     string `json:"group"`
		Kind      string `json:"kind"`
		Name      string `json:"attribute_name"`
		Value     string `json:"attribute_value"`
		UpdatedAt string `json:"updated_at"`
	}
	items := make([]entityDTO, 0, len(entities))
	for _, e := range entities {
		items = append(items, entityDTO{
			Group:     e.Group,
			Kind:      e.Kind,
			Name:      e.AttributeName,
			Value:     e.AttributeValue,
			UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      items,
	})
}

func requestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxRequestID).(string)
	if !ok || v == "" {
		return newRequestID()
	}
	return v
}

func (a *Adapter) writeAudit(ctx context.Context, subject, action, status string, payload map[string]string) {
	if a.store == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := a.store.SaveAudit(ctx, storage.AuditEvent{
		Subject:   subject,
		Action:    action,
		Source:    Source,
		Status:    status,
		RequestID: requestIDFromContext(ctx),
		Payload:   raw,
	}); err != nil {
		a.logger.Warn("audit write failed", "action", action, "err", err)
	}
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 50
	}
	return n
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code string) {
	writeJSON(w, r, statusCode, map[string]string{
		"request_id": requestIDFromContext(r.Context()),
		"error_code": code,
		"message":    errorMessage(code),
	})
}

func errorMessage(code string) string {
	switch code {
	case "auth_required":
		return "authentication is required"
	case "invalid_token":
		return "token is invalid"
	case "access_denied":
		return "access denied"
	case "payload_too_large":
		return "request payload is too large"
	case "request_timeout":
		return "request timeout"
	case "bad_identifier":
		return "path identifier is empty or badly escaped"
	case "unsupported_op":
		return "only op=close is supported"
	case "cors_denied", "cors_method_denied":
		return "cors policy denied request"
	default:
		return code
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestIDFromContext(r.Context()))
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
