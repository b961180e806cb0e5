package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/config"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/core/event"
	coresys "github.com/locogo/server/internal/core/system"
	"github.com/locogo/server/internal/data"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/handler"
	"github.com/locogo/server/internal/journal"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/netsync"
	"github.com/locogo/server/internal/notify"
	"github.com/locogo/server/internal/persist"
	"github.com/locogo/server/internal/scripting"
	"github.com/locogo/server/internal/system"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, companies int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              locogo  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       運輸大亨模擬核心 · Go 伺服器        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(公司數: %d)\033[0m\n\n", serverName, companies)
}

// displayWidth counts CJK characters as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	cfgFlag := flag.String("config", "config.toml", "config file (overridden by "+config.EnvPath+")")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, len(cfg.Server.Companies))

	// 3. Static data
	printSection("資料載入")

	prices, err := data.LoadPriceList(cfg.Data.Prices)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	printStat("車輛型號", len(prices.Vehicles))

	strs, err := messages.LoadTable(cfg.Data.Strings)
	if err != nil {
		return fmt.Errorf("load strings: %w", err)
	}
	printStat("訊息字串", strs.Count())

	engine, err := scripting.NewEngine(cfg.Data.Scripts, log)
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}
	defer engine.Close()
	printOK("Lua 腳本載入完成")

	// 4. World state and entity pool
	ws := world.NewState(company.ID(cfg.Server.LocalCompany))
	for i, name := range cfg.Server.Companies {
		if err := ws.Companies.Add(company.Company{ID: company.ID(i), Name: name}); err != nil {
			return fmt.Errorf("company %q: %w", name, err)
		}
	}
	if cfg.Server.Editor {
		ws.SetMode(world.ModeEditor)
	}
	ws.SetNetworked(cfg.NetSync.Enabled)

	entities, err := entity.New(entity.Options{
		Capacity:     cfg.Entities.Capacity,
		MoneyReserve: cfg.Entities.MoneyReserve,
		GeneralFloor: cfg.Entities.GeneralFloor,
		MaxMisc:      cfg.Entities.MaxMisc,
		QuadrantSize: cfg.Entities.QuadrantSize,
		MapTiles:     cfg.Entities.MapTiles,
		Immediate:    cfg.Entities.Immediate,
	}, log)
	if err != nil {
		return fmt.Errorf("entity pool: %w", err)
	}
	printStat("實體容量", entities.Capacity())
	fmt.Println()

	// 5. Ledger and its store
	printSection("帳本")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.Ledger, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger := finance.NewLedger(log)
	balances, err := store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	for i := range cfg.Server.Companies {
		id := company.ID(i)
		cash, ok := balances[id]
		if !ok {
			cash = prices.StartingCash
		}
		ledger.Open(id, cash)
	}
	printStat("已還原帳戶", len(balances))
	fmt.Println()

	// 6. Command table
	printSection("指令表")
	b := command.NewBuilder()
	rows, err := data.LoadCommandTable(cfg.Data.Commands, b)
	if err != nil {
		return fmt.Errorf("load command table: %w", err)
	}
	if err := handler.RegisterAll(b, &handler.Deps{
		World:    ws,
		Entities: entities,
		Prices:   prices,
		Refunds:  engine,
		Log:      log,
	}); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}
	table := b.Build()
	printStat("指令種類", rows)
	printStat("已綁定處理器", table.Bound())
	fmt.Println()

	// 7. Dispatcher and its collaborators
	bus := event.NewBus()
	runner := coresys.NewRunner()
	presenter := notify.NewPresenter(strs, 0, log)

	deps := command.Deps{
		Game:      ws,
		Ledger:    ledger,
		Afford:    ledger,
		Effects:   entities,
		Presenter: presenter,
		Legacy:    engine,
		Bus:       bus,
		Ticks:     runner,
		Log:       log,
	}

	var sync *netsync.Sync
	if cfg.NetSync.Enabled {
		sync = netsync.New(table, netsync.Options{
			Name:         cfg.Server.Name,
			InQueueSize:  cfg.NetSync.InQueueSize,
			OutQueueSize: cfg.NetSync.OutQueueSize,
			WriteTimeout: cfg.NetSync.WriteTimeout,
		}, log)
		defer sync.Close()
		deps.Sync = sync
	}
	dispatcher := command.NewDispatcher(table, deps)

	if cfg.Journal.Enabled {
		j := journal.New(cfg.Journal.Dir, log)
		j.Attach(bus)
		defer func() {
			if err := j.Close(); err != nil {
				log.Warn("關閉指令日誌失敗", zap.Error(err))
			}
		}()
	}

	// 8. Systems
	local := system.NewLocalQueue(table, ws.LocalCompany(), cfg.NetSync.InQueueSize)
	var remote <-chan netsync.Remote
	if sync != nil {
		remote = sync.Inbox()
	}
	persistence := system.NewPersistenceSystem(ledger, store, bus, log,
		int(cfg.Ledger.FlushInterval/cfg.Server.TickRate))

	runner.Register(system.NewInputSystem(dispatcher, local.C(), remote, ws.LocalCompany, cfg.NetSync.MaxPerTick, log))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewVehicleSystem(entities, ws.Tiles, log))
	runner.Register(system.NewEffectSystem(entities, log))
	runner.Register(persistence)
	runner.Register(system.NewCleanupSystem(entities))

	// 9. Listener for peers and local commands
	var srv *http.Server
	if cfg.NetSync.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/command", local)
		if sync != nil {
			mux.Handle("/sync", sync.Handler())
		}
		srv = &http.Server{Addr: cfg.NetSync.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP 監聽失敗", zap.Error(err))
			}
		}()
	}
	if sync != nil && cfg.NetSync.PeerURL != "" {
		if err := sync.Dial(ctx, cfg.NetSync.PeerURL); err != nil {
			return fmt.Errorf("netsync: %w", err)
		}
		printOK("已連線同步節點 " + cfg.NetSync.PeerURL)
	}

	// 10. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	printSection("伺服器就緒")
	if srv != nil {
		printReady(fmt.Sprintf("監聽位址 %s", cfg.NetSync.Listen))
	}
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Server.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Step(cfg.Server.TickRate)
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			if srv != nil {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				_ = srv.Shutdown(shutdownCtx)
				cancelShutdown()
			}
			// Deliver the last tick's events so the command log is complete.
			runner.StepPhase(coresys.PhasePreUpdate, 0)
			persistence.Flush()
			log.Info("伺服器已停止", zap.Uint64("tick", runner.Tick()))
			return nil
		}
	}
}

// openStore picks the ledger backend named by ledger.driver.
func openStore(ctx context.Context, cfg config.LedgerConfig, log *zap.Logger) (persist.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := persist.NewDB(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		printOK("PostgreSQL 連線成功")
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
		return persist.NewPaymentRepo(db), nil
	case "sqlite":
		s, err := persist.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		printOK("SQLite 帳本開啟 " + cfg.SQLitePath)
		return s, nil
	default:
		printOK("使用記憶體帳本")
		return persist.NewMemoryStore(), nil
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
