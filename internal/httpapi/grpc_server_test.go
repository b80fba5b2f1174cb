package httpapi

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type flakyProbe struct{ down atomic.Bool }

func (p *flakyProbe) Check(context.Context) error {
	if p.down.Load() {
		return errors.New("db unreachable")
	}
	return nil
}

// healthClient serves s over an in-memory listener.
func healthClient(t *testing.T, s *GRPCServer) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	s.Register(srv)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCHealthFollowsReadiness(t *testing.T) {
	probe := &flakyProbe{}
	probe.down.Store(true)
	s := NewGRPCServer(probe)
	client := healthClient(t, s)
	ctx := context.Background()

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, serviceName))
	require.False(t, s.Refresh(ctx))

	probe.down.Store(false)
	require.True(t, s.Refresh(ctx))
	for _, svc := range []string{"", serviceName} {
		require.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, svc), "service %q", svc)
	}
}

func TestGRPCHealthUnknownService(t *testing.T) {
	client := healthClient(t, NewGRPCServer(&flakyProbe{}))
	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "billing"})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCWatchShutsDown(t *testing.T) {
	s := NewGRPCServer(&flakyProbe{})
	client := healthClient(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return checkStatus(t, client, serviceName) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, serviceName))
}
