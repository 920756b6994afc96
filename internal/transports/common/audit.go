package common

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gridadmin/internal/command"
)

type requestIDKey struct{}

// WithRequestID привязывает id запроса транспорта к контексту для аудита.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return newRequestID()
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func buildAuditPayload(module string, cmd command.Command, errorCode string) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"module":     module,
		"command":    cmd.String(),
		"error_code": errorCode,
	})
	return payload
}
