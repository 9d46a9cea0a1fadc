package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-gate/compat"
	"github.com/wippyai/wasm-gate/errors"
)

// DefaultCacheSize is the number of verdicts kept when Config.CacheSize is 0.
const DefaultCacheSize = 256

// Config holds configuration for runtime creation
type Config struct {
	// MemoryLimitPages caps the memory a module may declare, in 64KB pages.
	// 0 means wazero's default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Interpreter compiles with wazero's interpreter instead of the
	// optimizing compiler.
	Interpreter bool

	// CacheSize is the number of admission verdicts kept, keyed by the
	// SHA-256 of the module. 0 means DefaultCacheSize, negative disables
	// the cache.
	CacheSize int
}

type options struct {
	cfg        Config
	checker    *compat.Checker
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option configures a Runtime.
type Option func(*options)

// WithConfig sets engine and cache configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithChecker sets the admission checker. Defaults to compat.DefaultContract.
func WithChecker(c *compat.Checker) Option {
	return func(o *options) { o.checker = c }
}

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the runtime's metrics with reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Runtime admits modules against a contract and compiles the admitted ones.
// It is safe for concurrent use.
type Runtime struct {
	engine   wazero.Runtime
	checker  *compat.Checker
	verdicts *lru.Cache[[sha256.Size]byte, verdict]
	metrics  *metrics
	logger   *zap.Logger
}

type verdict struct {
	err     error
	imports []string
	exports []string
}

// New creates a Runtime. Close it to release the wazero engine.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.checker == nil {
		o.checker = compat.MustDefault()
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "register metrics")
	}

	r := &Runtime{
		checker: o.checker,
		metrics: m,
		logger:  o.logger,
	}

	size := o.cfg.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		r.verdicts, err = lru.New[[sha256.Size]byte, verdict](size)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "create verdict cache")
		}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if o.cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	if o.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(o.cfg.MemoryLimitPages)
	}
	r.engine = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	return r, nil
}

// Close releases all runtime resources, including every compiled module.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Checker returns the admission checker.
func (r *Runtime) Checker() *compat.Checker {
	return r.checker
}

// Admit returns the admission verdict for code without compiling it.
// Verdicts are cached by module digest.
func (r *Runtime) Admit(code []byte) error {
	_, v := r.admit(code)
	return v.err
}

// Load admits code and compiles it. A rejected module is never compiled;
// the returned error is the checker's verdict unchanged.
func (r *Runtime) Load(ctx context.Context, code []byte) (*Module, error) {
	digest, v := r.admit(code)
	if v.err != nil {
		return nil, v.err
	}

	compiled, err := r.engine.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	r.logger.Debug("module loaded",
		zap.String("digest", hex.EncodeToString(digest[:8])),
		zap.Int("imports", len(v.imports)),
		zap.Int("exports", len(v.exports)))

	return &Module{
		compiled: compiled,
		digest:   digest,
		imports:  v.imports,
		exports:  v.exports,
	}, nil
}

func (r *Runtime) admit(code []byte) ([sha256.Size]byte, verdict) {
	start := time.Now()
	digest := sha256.Sum256(code)

	if r.verdicts != nil {
		if v, ok := r.verdicts.Get(digest); ok {
			r.metrics.cacheHits.Inc()
			r.metrics.observe(v.err, time.Since(start))
			return digest, v
		}
	}

	var v verdict
	syms, err := r.checker.Extract(code)
	if err == nil {
		err = r.checker.CheckSymbols(syms)
	}
	v = verdict{err: err, imports: syms.Imports(), exports: syms.Exports()}

	if r.verdicts != nil {
		r.verdicts.Add(digest, v)
	}
	r.metrics.observe(v.err, time.Since(start))

	if v.err != nil {
		r.logger.Info("module refused",
			zap.String("digest", hex.EncodeToString(digest[:8])),
			zap.String("contract", r.checker.Version()),
			zap.Error(v.err))
	}
	return digest, v
}
