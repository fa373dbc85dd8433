package persistence

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository is the core-consumed interface, narrowed to the
// operations the pipeline and orchestrator actually call.
type Repository interface {
	InsertSignal(row *SignalRow) (uint, error)
	UpdateSignalStatus(id uint, status string) error
	GetActiveSignals(date time.Time, now time.Time) ([]SignalRow, error)
	ExpireStaleSignals(now time.Time) error
	InsertTrade(row *TradeRow) (uint, error)
	CloseTrade(id uint, exitPrice, pnlAbs, pnlPct string, reason string, exitedAt time.Time) error
	GetActiveTrades() ([]TradeRow, error)
	GetActiveTradeCount() (int, error)
	GetTradesClosedSince(since time.Time) ([]TradeRow, error)
	HasSignalForStockToday(symbol string, date time.Time) (bool, error)
	GetUserConfig() (*UserConfigRow, error)
	SetUserConfig(totalCapital string) error
	GetStrategyPerformance(strategy string) (*StrategyPerformanceRow, error)
	UpsertStrategyPerformance(strategy, fiveDayWinRate, tenDayWinRate string) error
	ListWatchlist() ([]WatchlistRow, error)
	AddWatchlistEntry(symbol string) error
	RemoveWatchlistEntry(symbol string) error
	HasEarningsToday(symbol string, today time.Time) (bool, error)
}

// GormRepository is the concrete gorm/mysql-backed Repository.
type GormRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to the relational store and migrates the schema.
func Open(log *zap.Logger, dsn string) (*GormRepository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, err
	}
	return &GormRepository{db: db, log: log.Named("persistence")}, nil
}

// NewWithDB wraps an already-open *gorm.DB (used by sqlmock-backed tests).
func NewWithDB(log *zap.Logger, db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, log: log.Named("persistence")}
}

func (r *GormRepository) InsertSignal(row *SignalRow) (uint, error) {
	if err := r.db.Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *GormRepository) UpdateSignalStatus(id uint, status string) error {
	return r.db.Model(&SignalRow{}).Where("id = ?", id).Update("status", status).Error
}

func (r *GormRepository) GetActiveSignals(date, now time.Time) ([]SignalRow, error) {
	var rows []SignalRow
	err := r.db.Where("trade_date = ? AND status = ? AND expires_at > ?", date, "sent", now).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) ExpireStaleSignals(now time.Time) error {
	return r.db.Model(&SignalRow{}).
		Where("status = ? AND expires_at <= ?", "sent", now).
		Update("status", "expired").Error
}

func (r *GormRepository) InsertTrade(row *TradeRow) (uint, error) {
	if err := r.db.Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *GormRepository) CloseTrade(id uint, exitPrice, pnlAbs, pnlPct string, reason string, exitedAt time.Time) error {
	return r.db.Model(&TradeRow{}).Where("id = ?", id).Updates(map[string]any{
		"exit_price":       exitPrice,
		"realized_pnl_abs": pnlAbs,
		"realized_pnl_pct": pnlPct,
		"exit_reason":      reason,
		"exited_at":        exitedAt,
		"closed":           true,
	}).Error
}

func (r *GormRepository) GetActiveTrades() ([]TradeRow, error) {
	var rows []TradeRow
	err := r.db.Where("closed = ?", false).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetActiveTradeCount() (int, error) {
	var count int64
	err := r.db.Model(&TradeRow{}).Where("closed = ?", false).Count(&count).Error
	return int(count), err
}

func (r *GormRepository) GetTradesClosedSince(since time.Time) ([]TradeRow, error) {
	var rows []TradeRow
	err := r.db.Where("closed = ? AND exited_at >= ?", true, since).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) HasSignalForStockToday(symbol string, date time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&SignalRow{}).Where("symbol = ? AND trade_date = ?", symbol, date).Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) GetUserConfig() (*UserConfigRow, error) {
	var row UserConfigRow
	err := r.db.First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &row, err
}

func (r *GormRepository) SetUserConfig(totalCapital string) error {
	existing, err := r.GetUserConfig()
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(&UserConfigRow{TotalCapital: totalCapital}).Error
	}
	return r.db.Model(existing).Update("total_capital", totalCapital).Error
}

func (r *GormRepository) GetStrategyPerformance(strategy string) (*StrategyPerformanceRow, error) {
	var row StrategyPerformanceRow
	err := r.db.Where("strategy = ?", strategy).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &row, err
}

func (r *GormRepository) UpsertStrategyPerformance(strategy, fiveDayWinRate, tenDayWinRate string) error {
	existing, err := r.GetStrategyPerformance(strategy)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(&StrategyPerformanceRow{
			Strategy: strategy, FiveDayWinRate: fiveDayWinRate, TenDayWinRate: tenDayWinRate,
		}).Error
	}
	return r.db.Model(existing).Updates(map[string]any{
		"five_day_win_rate": fiveDayWinRate,
		"ten_day_win_rate":  tenDayWinRate,
	}).Error
}

func (r *GormRepository) ListWatchlist() ([]WatchlistRow, error) {
	var rows []WatchlistRow
	err := r.db.Find(&rows).Error
	return rows, err
}

func (r *GormRepository) AddWatchlistEntry(symbol string) error {
	return r.db.FirstOrCreate(&WatchlistRow{Symbol: symbol}, "symbol = ?", symbol).Error
}

func (r *GormRepository) RemoveWatchlistEntry(symbol string) error {
	return r.db.Where("symbol = ?", symbol).Delete(&WatchlistRow{}).Error
}

func (r *GormRepository) HasEarningsToday(symbol string, today time.Time) (bool, error) {
	var count int64
	date := today.Truncate(24 * time.Hour)
	err := r.db.Model(&EarningsCalendarRow{}).Where("symbol = ? AND earnings_date = ?", symbol, date).Count(&count).Error
	return count > 0, err
}
