package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	infraredis "docquiz/internal/infra/redis"
	"docquiz/internal/timer"
)

func TestTimerSurvivesRestartEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	records := infraredis.NewRecordStore(redisClient, 5*time.Minute)

	base := time.Now()
	now := base
	clock := func() time.Time { return now }

	first := timer.New("session-restart", 120, records, timer.WithClock(clock))
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first engine: %v", err)
	}
	if got := first.Remaining(); got != 120 {
		t.Fatalf("expected 120s remaining on fresh start, got %d", got)
	}

	// The first engine is abandoned without Stop, as a crashed client would
	// leave it. Thirty seconds later a new process picks up the same session.
	now = base.Add(30 * time.Second)
	second := timer.New("session-restart", 120, records, timer.WithClock(clock))
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start second engine: %v", err)
	}
	if got := second.Remaining(); got != 90 {
		t.Fatalf("expected 90s remaining after restart, got %d", got)
	}

	if err := second.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Stop cleared the record, so the next start counts from scratch.
	now = base.Add(45 * time.Second)
	third := timer.New("session-restart", 120, records, timer.WithClock(clock))
	if err := third.Start(ctx); err != nil {
		t.Fatalf("start third engine: %v", err)
	}
	if got := third.Remaining(); got != 120 {
		t.Fatalf("expected fresh 120s after cleared record, got %d", got)
	}
	if err := third.Stop(ctx); err != nil {
		t.Fatalf("stop third engine: %v", err)
	}
}

func TestExpiredDeadlineResolvesAcrossRestart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	records := infraredis.NewRecordStore(redisClient, 5*time.Minute)

	base := time.Now()
	now := base
	clock := func() time.Time { return now }

	first := timer.New("session-expired", 10, records, timer.WithClock(clock))
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Come back long after the deadline. The restarted engine must land in
	// the expired state immediately rather than restarting the countdown.
	now = base.Add(time.Minute)
	expired := make(chan struct{})
	second := timer.New("session-expired", 10, records,
		timer.WithClock(clock),
		timer.WithGrace(0),
		timer.WithOnExpire(func() { close(expired) }),
	)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected immediate expiry on restart past the deadline")
	}
	if got := second.Remaining(); got != 0 {
		t.Fatalf("expected 0s remaining, got %d", got)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
