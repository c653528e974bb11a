package grpc_control

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	datasource "options-observer/src/data_source"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeSession struct {
	state     string
	logoutErr error
	logouts   int
}

func (f *fakeSession) StateName() string { return f.state }
func (f *fakeSession) RetryCount() int   { return 1 }
func (f *fakeSession) Logout(ctx context.Context) error {
	f.logouts++
	f.state = "unauthenticated"
	return f.logoutErr
}

type fakeScrips struct {
	err error
}

func (f fakeScrips) Refresh(ctx context.Context) (*datasource.ScripSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return datasource.NewScripSnapshot([]models.MInstrumentRecord{{Token: "1"}, {Token: "2"}}, time.Date(2025, 5, 26, 3, 0, 0, 0, time.UTC)), nil
}

func (f fakeScrips) Stats() datasource.ScripStats {
	return datasource.ScripStats{Rows: 120000, Fetches: 2, Failures: 1, FetchedAt: time.Date(2025, 5, 26, 3, 0, 0, 0, time.UTC)}
}

type fakeHub struct{}

func (fakeHub) SubscriberCount() int      { return 3 }
func (fakeHub) WatchedExpiries() []string { return []string{"2025-05-29"} }

func startBufconn(t *testing.T, svc ControlServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(&models.MConfig{}, svc, logger.NewNopLogger())
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// -----------------------------------------------------------------------------

func TestControl_Status(t *testing.T) {
	metrics := utils.NewMetricsManager(10)
	metrics.Record(models.MCycleMetrics{Kind: models.CycleMarket, Error: "boom"})
	svc := NewControlService(&fakeSession{state: "authenticated"}, fakeScrips{}, fakeHub{}, metrics, logger.NewNopLogger())
	client := NewControlClient(startBufconn(t, svc))

	out, err := client.Status(context.Background())
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, "authenticated", fields["sessionState"])
	assert.Equal(t, 3.0, fields["subscribers"])
	assert.Equal(t, 120000.0, fields["scripRows"])
	assert.Equal(t, "2025-05-26T03:00:00Z", fields["scripFetchedAt"])
	assert.Equal(t, []interface{}{"2025-05-29"}, fields["watchedExpiries"])
	assert.Equal(t, map[string]interface{}{"market": 1.0}, fields["cycleFailures"])
}

func TestControl_RefreshScripMaster(t *testing.T) {
	tests := []struct {
		name   string
		scrips fakeScrips
		code   codes.Code
	}{
		{name: "ok", scrips: fakeScrips{}, code: codes.OK},
		{name: "download fails", scrips: fakeScrips{err: errors.New("timeout")}, code: codes.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewControlService(&fakeSession{}, tt.scrips, fakeHub{}, nil, logger.NewNopLogger())
			client := NewControlClient(startBufconn(t, svc))

			out, err := client.RefreshScripMaster(context.Background())
			assert.Equal(t, tt.code, status.Code(err))
			if tt.code == codes.OK {
				assert.Equal(t, 2.0, out.AsMap()["rows"])
			}
		})
	}
}

func TestControl_Logout(t *testing.T) {
	session := &fakeSession{state: "authenticated", logoutErr: errors.New("upstream logout: 500")}
	svc := NewControlService(session, fakeScrips{}, fakeHub{}, nil, logger.NewNopLogger())
	client := NewControlClient(startBufconn(t, svc))

	out, err := client.Logout(context.Background())
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, true, fields["loggedOut"])
	assert.Equal(t, "unauthenticated", fields["sessionState"])
	assert.Contains(t, fields["upstreamError"], "500")
	assert.Equal(t, 1, session.logouts)
}

func TestControl_Health(t *testing.T) {
	svc := NewControlService(&fakeSession{}, fakeScrips{}, fakeHub{}, nil, logger.NewNopLogger())
	conn := startBufconn(t, svc)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
