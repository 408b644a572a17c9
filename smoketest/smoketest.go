// Package smoketest checks that a running service culls as expected. It runs
// the built-in scenarios, a concurrent mutate and search phase and a render
// decoding phase. When an endpoint is given, the scenarios are also replayed
// over the visibility service.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/featureflag"
	"github.com/aukilabs/voxcull/scenario"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultIterations = 256
	defaultTimeout    = 30 * time.Second
)

type Options struct {
	// The engine where the concurrent phase creates its graph. engine.Default
	// is used when nil.
	Engine *engine.Engine

	// The number of mutations and searches of the concurrent phase.
	Iterations int

	// The seed of the random mutations of the concurrent phase.
	Seed uint64

	// The visibility service where scenarios are replayed. Empty skips the
	// replay.
	Endpoint  string
	UserAgent string

	// The bearer token presented to the visibility service.
	AuthToken string

	// DISABLE_FRAME_STAMPING turns off frame stamping in the render phase.
	FeatureFlags featureflag.FeatureFlag

	Timeout time.Duration

	// Called with the results of every run, when set.
	SendResult func(context.Context, Results) error
}

// Results is the outcome of a smoke test.
type Results struct {
	Status     string            `json:"status"`
	Scenarios  []scenario.Report `json:"scenarios"`
	Concurrent ConcurrentReport  `json:"concurrent"`
	Render     RenderReport      `json:"render"`
	Remote     []RemoteReport    `json:"remote,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

func (r *Results) fail(err error) {
	r.Status = StatusFailed
	r.Errors = append(r.Errors, err.Error())
}

// Run runs the smoke test. Failed checks are reported in the results; the
// error is returned when the test could not run to completion.
func Run(ctx context.Context, opts Options) (Results, error) {
	start := time.Now()
	opts = withDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	res := Results{Status: StatusSuccess}

	scenarios, err := scenario.Builtin()
	if err != nil {
		return res, errors.New("loading built-in scenarios failed").Wrap(err)
	}

	for _, s := range scenarios {
		report, err := s.Run()
		if err != nil {
			res.fail(err)
			continue
		}
		if !report.Passed {
			res.Status = StatusFailed
		}
		res.Scenarios = append(res.Scenarios, report)
	}

	res.Concurrent, err = runConcurrentPhase(ctx, opts)
	if err != nil {
		res.fail(err)
	}

	res.Render, err = runRenderPhase(opts)
	if err != nil {
		res.fail(err)
	}

	if opts.Endpoint != "" {
		res.Remote = replay(ctx, opts, scenarios, res.Scenarios)
		for _, r := range res.Remote {
			if !r.Passed {
				res.Status = StatusFailed
			}
		}
	}

	res.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return res, errors.New("smoke test interrupted").Wrap(err)
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Engine == nil {
		opts.Engine = engine.Default
	}
	if opts.Iterations <= 0 {
		opts.Iterations = defaultIterations
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "voxcull smoke test"
	}
	return opts
}

// SmokeTestRequest overrides the options of a smoke test run over HTTP.
type SmokeTestRequest struct {
	Endpoint   string        `json:"endpoint,omitempty"`
	Iterations int           `json:"iterations,omitempty"`
	Seed       uint64        `json:"seed,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// HandleSmokeTest runs a smoke test and responds with its results. The
// request body is optional.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		runOpts := opts
		if len(b) != 0 {
			var req SmokeTestRequest
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			if req.Endpoint != "" {
				runOpts.Endpoint = req.Endpoint
			}
			if req.Iterations != 0 {
				runOpts.Iterations = req.Iterations
			}
			if req.Seed != 0 {
				runOpts.Seed = req.Seed
			}
			if req.Timeout != 0 {
				runOpts.Timeout = req.Timeout
			}
		}

		res, err := Run(ctx, runOpts)
		if err != nil {
			logs.WithTag("endpoint", runOpts.Endpoint).Warn(err)
			res.fail(err)
		}

		if opts.SendResult != nil {
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", runOpts.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}

		body, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test result failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Status != StatusSuccess {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(body)
	}
}
