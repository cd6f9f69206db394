// Package bootstrap assembles a ready-to-use support.Service from config:
// secrets, the provider adapter, the optional cache and transcript store.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/go-support-desk/src/config"
	"github.com/Protocol-Lattice/go-support-desk/src/metrics"
	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/secrets"
	"github.com/Protocol-Lattice/go-support-desk/src/support"
	"github.com/Protocol-Lattice/go-support-desk/src/transcript"
)

// Runtime owns everything Build opened; call Close on shutdown.
type Runtime struct {
	Service  *support.Service
	LLM      models.LLM
	Store    transcript.Store
	Metrics  *metrics.Metrics
	Provider string
	Model    string
	// APIKeys are the resolved inbound keys for the JSON API.
	APIKeys []string
	closers []func(context.Context) error
}

func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// NewResolver registers the secret sources enabled in cfg.
func NewResolver(ctx context.Context, cfg *config.Config) (*secrets.Resolver, func() error, error) {
	r := secrets.NewResolver()
	closeFn := func() error { return nil }
	if cfg.Secrets.File != "" {
		src, err := secrets.LoadFileSource(cfg.Secrets.File)
		if err != nil {
			return nil, nil, err
		}
		r.Register(secrets.SchemeFile, src)
	}
	if cfg.Secrets.GCP {
		src, err := secrets.NewGCPSource(ctx)
		if err != nil {
			return nil, nil, err
		}
		r.Register(secrets.SchemeGCP, src)
		closeFn = src.Close
	}
	return r, closeFn, nil
}

// Build wires the service. reg may be nil to skip metric registration.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (_ *Runtime, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	resolver, closeSecrets, err := NewResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return closeSecrets() })

	provider, ok := models.CanonicalProvider(cfg.LLM.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.LLM.Provider)
	}
	var apiKey string
	if models.RequiresAPIKey(provider) {
		apiKey, err = resolver.ResolveFirst(ctx, cfg.KeyRefs()...)
		if err != nil {
			return nil, fmt.Errorf("%s credential (%s): %w", provider, strings.Join(cfg.KeyRefs(), ", "), err)
		}
	}

	settings := cfg.Settings(apiKey)
	llm, err := models.NewLLMProvider(ctx, settings)
	if err != nil {
		return nil, err
	}
	model := settings.Model
	if model == "" {
		model = models.DefaultModel(provider)
	}
	var closeLLM func() error
	if closer, ok := llm.(interface{ Close() error }); ok {
		closeLLM = closer.Close
	}
	if cfg.Cache.Enabled {
		cached := models.NewCachedLLM(llm, cfg.Cache.Size, cfg.Cache.TTL, cfg.Cache.Path, provider+"/"+model)
		closeLLM = cached.Close
		llm = cached
	}
	if closeLLM != nil {
		rt.closers = append(rt.closers, func(context.Context) error { return closeLLM() })
	}

	store, err := openStore(ctx, cfg, resolver)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, store.Close)

	for _, ref := range cfg.Server.APIKeyRefs {
		k, err := resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("server api key: %w", err)
		}
		rt.APIKeys = append(rt.APIKeys, k)
	}

	tmpl, err := cfg.Template()
	if err != nil {
		return nil, err
	}
	m := metrics.New(reg)

	svc, err := support.New(llm,
		support.WithTemplate(tmpl),
		support.WithMaxInFlight(cfg.LLM.MaxInFlight),
		support.WithTimeout(cfg.LLM.Timeout),
		support.WithProvider(provider, model),
		support.WithLogger(logger),
		support.WithMetrics(m),
		support.WithTranscript(store),
	)
	if err != nil {
		return nil, err
	}

	rt.Service = svc
	rt.LLM = llm
	rt.Store = store
	rt.Metrics = m
	rt.Provider = provider
	rt.Model = model
	logger.Info("support pipeline ready",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.String("transcript_backend", cfg.Transcript.Backend),
	)
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config, resolver *secrets.Resolver) (transcript.Store, error) {
	opts := transcript.Options{
		Backend:     cfg.Transcript.Backend,
		Database:    cfg.Transcript.Database,
		Collection:  cfg.Transcript.Collection,
		MemoryLimit: cfg.Transcript.MemoryLimit,
	}
	if cfg.Transcript.DSNRef != "" {
		dsn, err := resolver.Resolve(ctx, cfg.Transcript.DSNRef)
		if err != nil {
			return nil, fmt.Errorf("transcript dsn: %w", err)
		}
		opts.DSN = dsn
	}
	store, err := transcript.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	if cfg.Transcript.Redact {
		if _, nop := store.(transcript.NopStore); !nop {
			return transcript.WithRedaction(store, nil), nil
		}
	}
	return store, nil
}
