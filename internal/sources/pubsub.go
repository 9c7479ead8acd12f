package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	undeliveredMessagesMetric = "pubsub.googleapis.com/subscription/num_undelivered_messages"
	// Pub/Sub metrics are sampled every 60s and can lag by a few minutes.
	backlogLookback = 5 * time.Minute
)

var errNoBacklogData = errors.New("no backlog data points")

// BacklogReader returns the number of undelivered messages of a subscription.
type BacklogReader interface {
	UndeliveredMessages(ctx context.Context, projectID, subscription string) (int64, error)
}

// MonitoringBacklogReader reads the backlog from Cloud Monitoring.
type MonitoringBacklogReader struct {
	client *monitoring.MetricClient
	now    func() time.Time
}

func NewMonitoringBacklogReader(client *monitoring.MetricClient) *MonitoringBacklogReader {
	return &MonitoringBacklogReader{client: client, now: time.Now}
}

func backlogRequest(projectID, subscription string, now time.Time) *monitoringpb.ListTimeSeriesRequest {
	return &monitoringpb.ListTimeSeriesRequest{
		Name: "projects/" + projectID,
		Filter: fmt.Sprintf(
			`metric.type = %q AND resource.labels.subscription_id = %q`,
			undeliveredMessagesMetric, subscription,
		),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(now.Add(-backlogLookback)),
			EndTime:   timestamppb.New(now),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
	}
}

// latestPoint picks the newest point of the first series. Points are
// returned newest first.
func latestPoint(series *monitoringpb.TimeSeries) (int64, bool) {
	points := series.GetPoints()
	if len(points) == 0 {
		return 0, false
	}
	value := points[0].GetValue()
	if d, ok := value.GetValue().(*monitoringpb.TypedValue_DoubleValue); ok {
		return int64(d.DoubleValue), true
	}
	return value.GetInt64Value(), true
}

func (r *MonitoringBacklogReader) UndeliveredMessages(ctx context.Context, projectID, subscription string) (int64, error) {
	it := r.client.ListTimeSeries(ctx, backlogRequest(projectID, subscription, r.now()))
	for {
		series, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return 0, errNoBacklogData
		}
		if err != nil {
			return 0, err
		}
		if v, ok := latestPoint(series); ok {
			return v, nil
		}
	}
}

// PubSubSource reports the undelivered message count of a subscription.
type PubSubSource struct {
	reader       BacklogReader
	projectID    string
	subscription string
}

func NewPubSubSource(reader BacklogReader, projectID, subscription string) *PubSubSource {
	return &PubSubSource{reader: reader, projectID: projectID, subscription: subscription}
}

func (s *PubSubSource) Kind() Kind { return KindPubSub }

func (s *PubSubSource) ID() string {
	return fmt.Sprintf("pubsub:projects/%s/subscriptions/%s", s.projectID, s.subscription)
}

func (s *PubSubSource) Read(ctx context.Context) (float64, error) {
	n, err := s.reader.UndeliveredMessages(ctx, s.projectID, s.subscription)
	if err != nil {
		return 0, unavailable(s, err)
	}
	return float64(n), nil
}
