package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/featureflag"
	"github.com/aukilabs/voxcull/graph"
	voxcullhttp "github.com/aukilabs/voxcull/http"
	"github.com/aukilabs/voxcull/smoketest"
	vwebsocket "github.com/aukilabs/voxcull/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The voxcull version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "voxcull_info",
		Help:        "Voxcull information.",
		ConstLabels: prometheus.Labels{"version": version},
	})

	enginePanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxcull_engine_panics",
		Help: "The number of internal faults reported by the engine.",
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string          `cli:""        env:"VOXCULL_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string          `cli:""        env:"VOXCULL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string          `cli:""        env:"VOXCULL_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	AuthToken          string          `cli:""        env:"VOXCULL_AUTH_TOKEN"           help:"The bearer token clients must present. Empty disables authentication."`
	LogLevel           string          `cli:""        env:"VOXCULL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"VOXCULL_LOG_INDENT"           help:"Indent logs."`
	ClientIdleTimeout  time.Duration   `cli:",hidden" env:"VOXCULL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"VOXCULL_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	SmokeTest          smokeTestConfig `cli:",hidden" env:"-"                            help:"Smoke test configuration."`
	Events             eventsConfig    `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string        `cli:",hidden" env:"VOXCULL_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                            help:"Show version."`
	Help               bool            `cli:""        env:"-"                            help:"Show help."`
}

type smokeTestConfig struct {
	Iterations int           `cli:",hidden" env:"VOXCULL_SMOKE_TEST_ITERATIONS" help:"The number of mutations and searches of the concurrent phase."`
	Timeout    time.Duration `cli:",hidden" env:"VOXCULL_SMOKE_TEST_TIMEOUT"    help:"The maximum duration of a smoke test."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"VOXCULL_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"VOXCULL_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"VOXCULL_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"VOXCULL_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18290",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		SmokeTest: smokeTestConfig{
			Iterations: 256,
			Timeout:    time.Second * 30,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the voxcull visibility server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "voxcull",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	err := engine.Init(engine.Options{
		PanicHandler: func(msg string) {
			enginePanics.Inc()
			logs.WithTag("version", version).
				Warn(errors.New("engine panic").
					WithType(engine.ErrTypeInternal).
					WithTag("panic", msg))
		},
		Allocator: graph.DefaultAllocator,
	})
	if err != nil {
		logs.Fatal(errors.New("initializing engine failed").Wrap(err))
	}
	defer engine.Shutdown()

	featureFlags := featureflag.New(conf.FeatureFlags)

	var service http.ServeMux

	service.Handle("/health", voxcullhttp.HandleWithCORS(http.HandlerFunc(voxcullhttp.HandleHealthCheck)))
	service.Handle("/version", voxcullhttp.HandleWithCORS(voxcullhttp.HandleVersion(version)))
	service.Handle("/ready", voxcullhttp.HandleWithCORS(voxcullhttp.HandleReadyCheck(engine.Supported)))

	service.HandleFunc("/smoke-test", voxcullhttp.VerifyAuthTokenHandler(conf.AuthToken, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Iterations:   conf.SmokeTest.Iterations,
		Timeout:      conf.SmokeTest.Timeout,
		Endpoint:     conf.PublicEndpoint,
		UserAgent:    fmt.Sprintf("Voxcull %s", version),
		AuthToken:    conf.AuthToken,
		FeatureFlags: featureFlags,
	})))

	service.Handle("/", voxcullhttp.HandleWithCORS(websocket.Server{
		Handshake: voxcullhttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var vh vwebsocket.Handler = &vwebsocket.VisibilityHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				FeatureFlags:      featureFlags,
			}
			h := vwebsocket.HandlerWithLogs(vh, conf.LogSummaryInterval)
			h = vwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			vwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", voxcullhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", voxcullhttp.HandleReadyCheck(engine.Supported))
	admin.HandleFunc("/debug/graphs", voxcullhttp.HandleGraphDebug(engine.Default))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", conf.FeatureFlags).
		WithTag("auth", conf.AuthToken != "").
		Info("starting voxcull server")

	voxcullhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			voxcullhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

var knownFeatureFlags = map[featureflag.Flag]struct{}{
	featureflag.FlagDisableOcclusionCulling: {},
	featureflag.FlagDisableSearchReceipts:   {},
	featureflag.FlagDisableFrameStamping:    {},
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be positive").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	for _, f := range conf.FeatureFlags {
		if _, ok := knownFeatureFlags[featureflag.Flag(f)]; !ok {
			return errors.New("unknown feature flag").
				WithTag("flag", f)
		}
	}

	return nil
}
