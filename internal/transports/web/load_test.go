package web

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"gridadmin/internal/storage"
)

// TestWebLoadMixedTraffic гоняет 100 RPS смешанного трафика (метрики и
// маршрут моста) и проверяет p95 и долю ошибок.
func TestWebLoadMixedTraffic(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	t.Parallel()

	env := newTestEnv(t, Config{})
	env.store.latest = &storage.MetricRecord{Module: "server1", Payload: []byte(`{"cpu":1}`), TS: time.Now().UTC()}
	handler := env.adapter.Handler()

	const (
		rps      = 100
		duration = 5 * time.Second
	)
	targets := []string{
		"/v1/metrics/latest?module=server1",
		"/v1/metrics/latest?module=server1",
		"/v1/metrics/latest?module=server1",
		"/v1/durable-clients/client%231/cqs?member=server1",
	}

	var (
		mu        sync.Mutex
		latencies []time.Duration
		failed    int
		wg        sync.WaitGroup
	)
	ticker := time.NewTicker(time.Second / rps)
	defer ticker.Stop()
	total := int(duration.Seconds()) * rps
	for i := 0; i < total; i++ {
		<-ticker.C
		target := targets[i%len(targets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.Header.Set("Authorization", "Bearer "+testToken)
			rr := httptest.NewRecorder()
			start := time.Now()
			handler.ServeHTTP(rr, req)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			latencies = append(latencies, elapsed)
			if rr.Code != http.StatusOK {
				failed++
			}
		}()
	}
	wg.Wait()

	if len(latencies) != total {
		t.Fatalf("collected %d samples, want %d", len(latencies), total)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p95 := latencies[(len(latencies)*95+99)/100-1]
	errorRate := float64(failed) / float64(total)
	t.Logf("load summary: requests=%d failed=%d error_rate=%.4f p95=%s", total, failed, errorRate, p95)

	if p95 >= 250*time.Millisecond {
		t.Fatalf("p95 too high: got %s, want < 250ms", p95)
	}
	if errorRate > 0.01 {
		t.Fatalf("error rate too high: got %.4f, want <= 0.01", errorRate)
	}
}
