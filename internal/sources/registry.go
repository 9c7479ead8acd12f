package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/redis/go-redis/v9"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/resilience"
	"github.com/OldStager01/generalscaler/pkg/models"
)

const (
	DefaultPrometheusURL = "http://prometheus:9090"
	DefaultRedisHost     = "redis"
	DefaultRedisPort     = 6379
)

type Config struct {
	Prometheus    PrometheusConfig
	RedisHost     string
	RedisPort     int
	RedisPassword string
	// PubSubProject is used when a pubsub source names no project_id.
	PubSubProject string
	Resilience    ResilienceConfig
}

// Factory resolves the opaque config of one source kind.
type Factory func(params models.Params) (Source, error)

// Registry resolves MetricSourceConfigs into Sources and owns the clients
// they share.
type Registry struct {
	cfg       Config
	factories map[Kind]Factory

	mu           sync.Mutex
	promClients  map[string]promv1.API
	redisClients map[string]*redis.Client
	backlog      BacklogReader
	metricClient *monitoring.MetricClient
	breakers     map[string]*resilience.CircuitBreaker
	onCircuit    func(source string, state resilience.State)
}

type Option func(*Registry)

// WithFactory replaces the factory for kind.
func WithFactory(kind Kind, f Factory) Option {
	return func(r *Registry) { r.factories[kind] = f }
}

func WithPrometheusAPI(url string, client promv1.API) Option {
	return func(r *Registry) { r.promClients[url] = client }
}

func WithRedisClient(client *redis.Client) Option {
	return func(r *Registry) {
		opts := client.Options()
		r.redisClients[redisKey(opts.Addr, opts.DB)] = client
	}
}

// WithCircuitObserver is told every breaker state change.
func WithCircuitObserver(fn func(source string, state resilience.State)) Option {
	return func(r *Registry) { r.onCircuit = fn }
}

func WithBacklogReader(reader BacklogReader) Option {
	return func(r *Registry) { r.backlog = reader }
}

func NewRegistry(cfg Config, opts ...Option) *Registry {
	if cfg.Prometheus.URL == "" {
		cfg.Prometheus.URL = DefaultPrometheusURL
	}
	if cfg.Prometheus.Timeout <= 0 {
		cfg.Prometheus.Timeout = 10 * time.Second
	}
	if cfg.RedisHost == "" {
		cfg.RedisHost = DefaultRedisHost
	}
	if cfg.RedisPort == 0 {
		cfg.RedisPort = DefaultRedisPort
	}

	r := &Registry{
		cfg:          cfg,
		promClients:  make(map[string]promv1.API),
		redisClients: make(map[string]*redis.Client),
		breakers:     make(map[string]*resilience.CircuitBreaker),
	}
	r.factories = map[Kind]Factory{
		KindPrometheus: r.newPrometheus,
		KindRedis:      r.newRedis,
		KindPubSub:     r.newPubSub,
		KindStatic:     newStaticFromParams,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build resolves one MetricSourceConfig. Unknown kinds and invalid
// parameters are configuration errors.
func (r *Registry) Build(cfg models.MetricSourceConfig) (Source, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no adapter", models.ErrUnknownSource, kind)
	}

	src, err := factory(models.Params(cfg.Config))
	if err != nil {
		return nil, err
	}
	if !r.cfg.Resilience.Enabled || kind == KindStatic {
		return src, nil
	}
	return NewResilientSource(src, r.breaker(src.ID()), r.cfg.Resilience.RetryAttempts, r.cfg.Resilience.RetryDelay), nil
}

func (r *Registry) breaker(id string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[id]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        id,
			MaxFailures: r.cfg.Resilience.MaxFailures,
			OpenTimeout: r.cfg.Resilience.OpenTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.WithField("source", name).Warnf("Circuit breaker %s -> %s", from, to)
				if r.onCircuit != nil {
					r.onCircuit(name, to)
				}
			},
		})
		r.breakers[id] = cb
	}
	return cb
}

// CircuitStates reports the breaker state of every resilient source built so far.
func (r *Registry) CircuitStates() map[string]resilience.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]resilience.State, len(r.breakers))
	for id, cb := range r.breakers {
		out[id] = cb.State()
	}
	return out
}

func (r *Registry) newPrometheus(params models.Params) (Source, error) {
	query, err := requiredString(KindPrometheus, params, "query")
	if err != nil {
		return nil, err
	}
	url, err := params.String("url", r.cfg.Prometheus.URL)
	if err != nil {
		return nil, invalidConfig(KindPrometheus, "url: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.promClients[url]
	if !ok {
		cfg := r.cfg.Prometheus
		cfg.URL = url
		client, err = NewPrometheusAPI(cfg)
		if err != nil {
			return nil, invalidConfig(KindPrometheus, "%v", err)
		}
		r.promClients[url] = client
	}
	return NewPrometheusSource(client, url, query, r.cfg.Prometheus.Timeout), nil
}

func (r *Registry) newRedis(params models.Params) (Source, error) {
	key, err := requiredString(KindRedis, params, "queue_key")
	if err != nil {
		return nil, err
	}
	host, err := params.String("host", r.cfg.RedisHost)
	if err != nil {
		return nil, invalidConfig(KindRedis, "host: %v", err)
	}
	port, err := params.Int("port", r.cfg.RedisPort)
	if err != nil || port <= 0 || port > 65535 {
		return nil, invalidConfig(KindRedis, "port must be a valid TCP port")
	}
	db, err := params.Int("db", 0)
	if err != nil || db < 0 {
		return nil, invalidConfig(KindRedis, "db must be a non-negative integer")
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	cacheKey := redisKey(addr, db)

	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.redisClients[cacheKey]
	if !ok {
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: r.cfg.RedisPassword,
			DB:       db,
		})
		r.redisClients[cacheKey] = client
	}
	return NewRedisSource(client, key), nil
}

func redisKey(addr string, db int) string {
	return fmt.Sprintf("%s/%d", addr, db)
}

func (r *Registry) newPubSub(params models.Params) (Source, error) {
	project, err := params.String("project_id", r.cfg.PubSubProject)
	if err != nil {
		return nil, invalidConfig(KindPubSub, "project_id: %v", err)
	}
	if project == "" {
		return nil, invalidConfig(KindPubSub, "project_id is required")
	}
	subscription, err := requiredString(KindPubSub, params, "subscription")
	if err != nil {
		return nil, err
	}

	reader, err := r.backlogReader()
	if err != nil {
		return nil, fmt.Errorf("%w: pubsub: %v", models.ErrSourceUnavailable, err)
	}
	return NewPubSubSource(reader, project, subscription), nil
}

// backlogReader creates the Cloud Monitoring client on first use, since it
// needs application default credentials.
func (r *Registry) backlogReader() (BacklogReader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backlog != nil {
		return r.backlog, nil
	}
	client, err := monitoring.NewMetricClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create monitoring client: %w", err)
	}
	r.metricClient = client
	r.backlog = NewMonitoringBacklogReader(client)
	return r.backlog, nil
}

// Close releases every client the registry created.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for addr, client := range r.redisClients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis %s: %w", addr, err))
		}
	}
	r.redisClients = make(map[string]*redis.Client)

	if r.metricClient != nil {
		if err := r.metricClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("monitoring: %w", err))
		}
		r.metricClient = nil
		r.backlog = nil
	}
	return errors.Join(errs...)
}
