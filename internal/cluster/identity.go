package cluster

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/host"
)

var memberSeq atomic.Int64

// hostName берет имя узла из gopsutil; при ошибке — "localhost".
func hostName(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info.Hostname == "" {
		return "localhost"
	}
	return info.Hostname
}

// NewMemberID строит системный id вида "host(name:pid)<vN>".
func NewMemberID(ctx context.Context, name string) string {
	seq := memberSeq.Add(1)
	return fmt.Sprintf("%s(%s:%d)<v%d>", hostName(ctx), name, os.Getpid(), seq)
}
