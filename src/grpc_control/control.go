package grpc_control

import (
	"context"
	"time"

	datasource "options-observer/src/data_source"
	"options-observer/src/logger"
	"options-observer/src/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionControl is the part of the session manager the control plane uses.
type SessionControl interface {
	StateName() string
	RetryCount() int
	Logout(ctx context.Context) error
}

// ScripControl is the part of the scrip-master cache the control plane uses.
type ScripControl interface {
	Refresh(ctx context.Context) (*datasource.ScripSnapshot, error)
	Stats() datasource.ScripStats
}

// HubStatus reports websocket state.
type HubStatus interface {
	SubscriberCount() int
	WatchedExpiries() []string
}

// -----------------------------------------------------------------------------

// ControlService implements ControlServer
type ControlService struct {
	Session SessionControl
	Scrips  ScripControl
	Hub     HubStatus
	Metrics *utils.MetricsManager
	Logger  *logger.Logger
	started time.Time
}

// NewControlService creates a new instance of ControlService
func NewControlService(session SessionControl, scrips ScripControl, hub HubStatus, metrics *utils.MetricsManager, log *logger.Logger) *ControlService {
	return &ControlService{
		Session: session,
		Scrips:  scrips,
		Hub:     hub,
		Metrics: metrics,
		Logger:  log,
		started: time.Now(),
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.Scrips.Stats()

	expiries := []interface{}{}
	for _, e := range s.Hub.WatchedExpiries() {
		expiries = append(expiries, e)
	}

	fields := map[string]interface{}{
		"version":         utils.AppVersion,
		"uptimeSeconds":   time.Since(s.started).Seconds(),
		"sessionState":    s.Session.StateName(),
		"refreshRetries":  s.Session.RetryCount(),
		"subscribers":     s.Hub.SubscriberCount(),
		"watchedExpiries": expiries,
		"scripRows":       stats.Rows,
		"scripFetches":    stats.Fetches,
		"scripFailures":   stats.Failures,
		"scripStale":      stats.Stale,
		"scripFetchedAt":  formatTime(stats.FetchedAt),
	}
	if s.Metrics != nil {
		summary := s.Metrics.Summary()
		failures := map[string]interface{}{}
		for kind, n := range summary.Failures {
			failures[kind] = n
		}
		fields["cycleFailures"] = failures
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding status: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) RefreshScripMaster(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.Scrips.Refresh(ctx)
	if err != nil {
		s.Logger.Error("gRPC: scrip master refresh failed: %v", err)
		return nil, status.Errorf(codes.Unavailable, "scrip master refresh failed: %v", err)
	}

	s.Logger.Info("gRPC: scrip master refreshed, %d rows", snap.Len())
	return structpb.NewStruct(map[string]interface{}{
		"rows":      snap.Len(),
		"fetchedAt": formatTime(snap.FetchedAt),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) Logout(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]interface{}{"loggedOut": true}
	if err := s.Session.Logout(ctx); err != nil {
		s.Logger.Warning("gRPC: logout: %v", err)
		fields["upstreamError"] = err.Error()
	}
	fields["sessionState"] = s.Session.StateName()
	return structpb.NewStruct(fields)
}

// -----------------------------------------------------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
