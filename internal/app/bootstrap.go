package app

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"quant_go/internal/barmerge"
	"quant_go/internal/domain"
	"quant_go/internal/engine"
	"quant_go/internal/event"
	"quant_go/internal/execution"
	"quant_go/internal/index"
	"quant_go/internal/infra"
	"quant_go/internal/infra/feed"
	"quant_go/internal/infra/storage"
	"quant_go/internal/module"
	"quant_go/internal/strategy"
)

const tickChanSize = 1024

// Bootstrap wires the whole runtime: storage, registry, simulated venue
// accounts, index synthesizers, module hubs and the market data feed,
// all funneled through one dispatcher.
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Registry   *domain.MemoryRegistry
	Dispatcher *engine.Dispatcher
	Hubs       []*module.Hub
	Accounts   map[string]*execution.SimAccount
	Feed       *feed.Worker

	ticks  chan domain.Tick
	logger *slog.Logger
}

// NewBootstrap creates an empty bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Accounts: make(map[string]*execution.SimAccount)}
}

// Initialize loads configuration and builds every component, ready to Run.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Quant Go...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	b.logger = logger

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	b.Registry = domain.NewMemoryRegistry(cfg.Contracts...)
	b.Dispatcher = engine.NewDispatcher(0, logger)
	b.ticks = make(chan domain.Tick, tickChanSize)

	b.wireAccounts()
	if err := b.wireIndexes(); err != nil {
		return err
	}
	if err := b.wireModules(); err != nil {
		return err
	}

	if cfg.Feed.WSURL != "" {
		b.Feed = feed.NewWorker(cfg.Feed.WSURL, cfg.Feed.Token, cfg.Feed.Symbols, b.ticks, logger)
	}

	return nil
}

// wireAccounts builds the simulated venue accounts. Each account consumes
// every tick (to fill resting limit orders) and reports acks and fills
// back through the dispatcher inbox.
func (b *Bootstrap) wireAccounts() {
	for _, ac := range b.Config.Accounts {
		sim := execution.NewSimAccount(ac.ID, b.logger)
		sim.Bind(b.Dispatcher.PostOrder, b.Dispatcher.PostTrade)
		b.Dispatcher.AddTickSink(sim)
		b.Accounts[ac.ID] = sim
		slog.Info("✅ Sim account ready", slog.String("account", ac.ID))
	}
}

// synthSink adapts a Synthesizer to the dispatcher's tick sink surface.
type synthSink struct{ synth *index.Synthesizer }

func (s synthSink) OnTick(tick domain.Tick) { s.synth.UpdateByTick(tick) }

// wireIndexes builds one synthesizer per configured basket. Composite
// ticks are posted back into the dispatcher so downstream consumers see
// them exactly like venue ticks.
func (b *Bootstrap) wireIndexes() error {
	for _, ic := range b.Config.Indexes {
		members := make([]domain.Contract, 0, len(ic.Members))
		for _, symbol := range ic.Members {
			c, err := b.Registry.Contract(symbol)
			if err != nil {
				return fmt.Errorf("index %s: %w", ic.Name, err)
			}
			members = append(members, c)
		}
		synth, err := index.NewSynthesizer(members, b.Dispatcher.PostTick, b.logger)
		if err != nil {
			return fmt.Errorf("index %s: %w", ic.Name, err)
		}
		b.Registry.Register(synth.Contract())
		b.Dispatcher.AddTickSink(synthSink{synth})
		slog.Info("✅ Index synthesizer ready",
			slog.String("index", synth.Contract().UnifiedSymbol),
			slog.Int("members", len(members)))
	}
	return nil
}

// wireModules builds one hub per configured module and attaches it to the
// dispatcher. A previously persisted runtime overrides the configured
// enabled flag so a restart resumes where the module left off.
func (b *Bootstrap) wireModules() error {
	for _, mc := range b.Config.Modules {
		strat, err := buildStrategy(mc)
		if err != nil {
			return fmt.Errorf("module %s: %w", mc.ModuleName, err)
		}

		accounts := make(map[string]module.VenueAccount, len(b.Accounts))
		for id, sim := range b.Accounts {
			accounts[id] = sim
		}

		hub, err := module.NewHub(strat, descriptionOf(mc), module.Deps{
			Registry: b.Registry,
			Accounts: accounts,
			Repo:     b.Storage,
			Merger:   barmerge.NewRegistry(),
			Logger:   infra.NewModuleLogger(b.Config, mc.ModuleName),
			Metrics:  infra.GlobalMetrics,
		})
		if err != nil {
			return fmt.Errorf("module %s: %w", mc.ModuleName, err)
		}

		enabled := mc.Enabled
		if saved, err := b.Storage.FindRuntime(mc.ModuleName); err == nil && saved != nil {
			enabled = saved.Enabled
		}

		for _, binding := range mc.Bindings {
			b.Dispatcher.TrackBars(binding.UnifiedSymbol)
		}
		b.Dispatcher.AddHub(hub)
		b.Hubs = append(b.Hubs, hub)

		hub.OnReady()
		hub.SetEnabled(enabled)
		slog.Info("✅ Module ready",
			slog.String("module", mc.ModuleName),
			slog.String("strategy", mc.Strategy),
			slog.Bool("enabled", enabled))
	}
	return nil
}

// descriptionOf maps the yaml module section onto the hub description.
func descriptionOf(mc infra.ModuleConfig) module.Description {
	bindings := make([]module.ContractBinding, 0, len(mc.Bindings))
	for _, bc := range mc.Bindings {
		bindings = append(bindings, module.ContractBinding{
			UnifiedSymbol: bc.UnifiedSymbol,
			AccountID:     bc.AccountID,
		})
	}
	return module.Description{
		ModuleName:       mc.ModuleName,
		InitBalance:      mc.InitBalance,
		CacheSize:        mc.CacheSize,
		DefaultVolume:    mc.DefaultVolume,
		NumOfMinPerBar:   mc.NumOfMinPerBar,
		OrderPlusTick:    mc.OrderPlusTick,
		MarginRatio:      mc.MarginRatio,
		CommissionPerLot: mc.CommissionPerLot,
		ClosingPolicy:    mc.ClosingPolicy,
		MaxOrdersPerDay:  mc.MaxOrdersPerDay,
		Bindings:         bindings,
	}
}

// buildStrategy constructs the configured strategy. Params are re-encoded
// through yaml so each strategy declares its own typed parameter struct.
func buildStrategy(mc infra.ModuleConfig) (strategy.TradeStrategy, error) {
	raw, err := yaml.Marshal(mc.Params)
	if err != nil {
		return nil, err
	}
	switch mc.Strategy {
	case "sma_cross":
		var params strategy.SMACrossParams
		if err := yaml.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		return strategy.NewSMACross(params)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidConfiguration, mc.Strategy)
	}
}

// Run starts the event loop and the feed, then blocks until ctx is done.
func (b *Bootstrap) Run(ctx context.Context) error {
	event.Warmup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Dispatcher.Run(ctx)
	}()

	go b.pumpTicks(ctx)

	if b.Feed != nil {
		if err := b.Feed.Connect(ctx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "✅ Feed worker started",
			slog.Int("symbols", len(b.Config.Feed.Symbols)))
	}

	slog.InfoContext(ctx, "✨ Quant Go fully operational. Press Ctrl+C to exit.")
	<-ctx.Done()

	if b.Feed != nil {
		b.Feed.Disconnect()
	}
	<-done

	b.shutdown()
	return nil
}

// pumpTicks moves feed ticks into the dispatcher inbox.
func (b *Bootstrap) pumpTicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-b.ticks:
			b.Dispatcher.PostTick(tick)
		}
	}
}

// shutdown finalizes open bars and persists a last runtime snapshot per
// module. Runs after the dispatcher loop has exited.
func (b *Bootstrap) shutdown() {
	b.Dispatcher.FlushBars()
	for _, hub := range b.Hubs {
		if err := b.Storage.SaveRuntime(hub.RuntimeDescription(false)); err != nil {
			slog.Error("final snapshot failed",
				slog.String("module", hub.Name()), slog.Any("error", err))
		}
	}
	slog.Info("👋 Shutdown complete")
}
