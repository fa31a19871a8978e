// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

// newGormLogger создает новый логгер для GORM
func newGormLogger(zapLogger *zap.Logger, level logger.LogLevel) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  level,
	}
}

// LogMode реализация интерфейса logger.Interface
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

// Info реализация интерфейса logger.Interface
func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

// Warn реализация интерфейса logger.Interface
func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

// Error реализация интерфейса logger.Interface
func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace реализация интерфейса logger.Interface
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Debug("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Options tunes the connection pool.
type Options struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

func NewStorage(dsn string, opts Options, zapLogger *zap.Logger) (storage.Storage, error) {
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	gormLogger := newGormLogger(zapLogger.Named("gorm"), level)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 10
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 100
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}, nil
}

// RunMigrations использует GORM AutoMigrate под advisory lock
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(101)")

	err = p.db.AutoMigrate(
		&models.Receipt{},
		&models.Trade{},
		&models.PairSnapshot{},
		&models.PositionSnapshot{},
		&models.TaskHistory{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.logger.Info("Migrations applied")
	return nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *postgresStorage) SaveReceipt(ctx context.Context, r *models.Receipt) error {
	err := p.db.WithContext(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicate
	}
	return err
}

func (p *postgresStorage) GetReceipt(ctx context.Context, txID uint64) (*models.Receipt, error) {
	var r models.Receipt
	err := p.db.WithContext(ctx).Where("tx_id = ?", txID).First(&r).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (p *postgresStorage) ListReceipts(ctx context.Context, sender string, limit, offset int) ([]*models.Receipt, error) {
	var rs []*models.Receipt
	q := p.db.WithContext(ctx)
	if sender != "" {
		q = q.Where("sender = ?", sender)
	}
	err := q.Order("tx_id desc").
		Limit(limit).
		Offset(offset).
		Find(&rs).Error
	return rs, err
}

func (p *postgresStorage) SaveTrades(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).CreateInBatches(trades, 100).Error
}

func (p *postgresStorage) ListTrades(ctx context.Context, token string, limit int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := p.db.WithContext(ctx).
		Where("token = ?", token).
		Order("tx_id desc, id desc").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

func (p *postgresStorage) SavePairSnapshot(ctx context.Context, s *models.PairSnapshot) error {
	return p.db.WithContext(ctx).Create(s).Error
}

func (p *postgresStorage) LatestPairSnapshot(ctx context.Context, pair string) (*models.PairSnapshot, error) {
	var s models.PairSnapshot
	err := p.db.WithContext(ctx).Where("pair = ?", pair).Order("id desc").First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (p *postgresStorage) SavePositionSnapshot(ctx context.Context, s *models.PositionSnapshot) error {
	return p.db.WithContext(ctx).Create(s).Error
}

func (p *postgresStorage) LatestPositionSnapshot(ctx context.Context, token string) (*models.PositionSnapshot, error) {
	var s models.PositionSnapshot
	err := p.db.WithContext(ctx).Where("token = ?", token).Order("id desc").First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (p *postgresStorage) SaveTaskHistory(ctx context.Context, history *models.TaskHistory) error {
	return p.db.WithContext(ctx).Create(history).Error
}

func (p *postgresStorage) GetTaskStats(ctx context.Context, taskName string) (*models.TaskHistory, error) {
	var history models.TaskHistory
	err := p.db.WithContext(ctx).Where("task_name = ?", taskName).Order("id desc").First(&history).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &history, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
