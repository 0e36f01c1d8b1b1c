package app

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/vendlink/vendlink/config"
	"github.com/vendlink/vendlink/internal/domain"
	"github.com/vendlink/vendlink/internal/mercadopago"
	"github.com/vendlink/vendlink/internal/vend"
	"github.com/vendlink/vendlink/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron

	catalog    *vend.Catalog
	devices    *vend.DeviceStore
	ledger     *vend.Ledger
	gateway    mercadopago.Client
	issuer     *vend.Issuer
	rotator    *vend.Rotator
	reconciler *vend.Reconciler
}

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

func (a *Application) Catalog() *vend.Catalog {
	return a.catalog
}

func (a *Application) DeviceStore() *vend.DeviceStore {
	return a.devices
}

func (a *Application) Ledger() *vend.Ledger {
	return a.ledger
}

func (a *Application) Issuer() *vend.Issuer {
	return a.issuer
}

func (a *Application) Reconciler() *vend.Reconciler {
	return a.reconciler
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// OverrideGateway replaces the payment gateway client and rebuilds the
// components that hold it (used in tests).
func (a *Application) OverrideGateway(gateway mercadopago.Client) {
	a.gateway = gateway
	a.buildCore()
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.catalog = vend.NewCatalog(catalogItems(cfg.Catalog))
	if a.catalog.Len() == 0 {
		zap.L().Warn("catalog is empty, no device can request a link")
	}
	a.gateway = mercadopago.NewClient(cfg.Mercadopago)
	a.buildCore()

	a.initJob()
}

// InitLite wires the catalog, gateway and in-memory core without touching
// the logger, database, metrics or scheduler (used in tests).
func (a *Application) InitLite() {
	a.catalog = vend.NewCatalog(catalogItems(a.appConfig.Catalog))
	a.gateway = mercadopago.NewClient(a.appConfig.Mercadopago)
	a.buildCore()
}

// buildCore wires the store, issuer, rotator and reconciler around the
// current gateway client.
func (a *Application) buildCore() {
	cfg := a.appConfig
	a.devices = vend.NewDeviceStore(a.catalog)
	a.ledger = vend.NewLedger(a.gormDB)
	a.issuer = vend.NewIssuer(a.catalog, a.devices, a.gateway, cfg.NotifyURL(), cfg.Mercadopago.TestMode)
	a.rotator = vend.NewRotator(a.issuer,
		time.Duration(cfg.Rotation.Delay)*time.Second,
		time.Duration(cfg.Rotation.BaseDelay)*time.Second,
		cfg.Rotation.MaxAttempts)
	a.reconciler = vend.NewReconciler(a.catalog, a.devices, a.ledger, a.gateway, a.rotator)
}

func catalogItems(items []config.CatalogItem) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.CatalogItem{
			Device:   it.Device,
			Title:    it.Title,
			Price:    it.Price,
			Currency: it.Currency,
		})
	}
	return out
}

func (a *Application) MigrateDB() error {
	return a.gormDB.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// WarmupLinks issues an initial preference for every catalog device so a
// link is ready before the first poll. Best effort: a gateway failure here
// is logged and recovered by the lazy path on the device's next poll.
func (a *Application) WarmupLinks(ctx context.Context) {
	for _, dev := range a.catalog.Devices() {
		if _, err := a.issuer.IssueLazy(ctx, dev); err != nil {
			zap.L().Warn("initial link issuance failed",
				zap.String("device", dev), zap.Error(err))
		}
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
