package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Executed order legs, append-only
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		order_id TEXT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		tradingsymbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		fees REAL NOT NULL DEFAULT 0,
		trade_type TEXT NOT NULL,
		simulated INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Option positions (wheel legs)
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		tradingsymbol TEXT NOT NULL,
		type TEXT NOT NULL,
		strike REAL NOT NULL,
		expiry DATETIME NOT NULL,
		quantity INTEGER NOT NULL,
		lot_size INTEGER NOT NULL,
		entry_premium REAL NOT NULL,
		exit_premium REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME,
		realized_pnl REAL NOT NULL DEFAULT 0,
		fees REAL NOT NULL DEFAULT 0,
		rolled_to TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-symbol strategy state, latest row wins
	CREATE TABLE IF NOT EXISTS strategy_state (
		symbol TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		position_id TEXT,
		shares_quantity INTEGER NOT NULL DEFAULT 0,
		share_entry_price REAL NOT NULL DEFAULT 0,
		consecutive_errors INTEGER NOT NULL DEFAULT 0,
		cycles_run INTEGER NOT NULL DEFAULT 0,
		last_cycle_at DATETIME,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_trades_position ON trades(position_id);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
	CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTrade inserts a trade row.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, position_id, order_id, timestamp, symbol, tradingsymbol, exchange, side, quantity, price, fees, trade_type, simulated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.PositionID, trade.OrderID, trade.Timestamp, trade.Symbol,
		trade.Tradingsymbol, string(trade.Exchange), string(trade.Side),
		trade.Quantity, trade.Price, trade.Fees, string(trade.TradeType), boolToInt(trade.Simulated))
	if err != nil {
		return fmt.Errorf("saving trade: %w", err)
	}
	return nil
}

// GetTrades queries trades with optional filters, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `SELECT id, position_id, order_id, timestamp, symbol, tradingsymbol, exchange, side, quantity, price, fees, trade_type, simulated FROM trades`
	var conds []string
	var args []interface{}

	if filter.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.PositionID != "" {
		conds = append(conds, "position_id = ?")
		args = append(args, filter.PositionID)
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.EndDate)
	}
	if filter.Side != "" {
		conds = append(conds, "side = ?")
		args = append(args, filter.Side)
	}
	if filter.Simulated != nil {
		conds = append(conds, "simulated = ?")
		args = append(args, boolToInt(*filter.Simulated))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var simulated int
		var exchange, side, tradeType string
		if err := rows.Scan(&t.ID, &t.PositionID, &t.OrderID, &t.Timestamp, &t.Symbol,
			&t.Tradingsymbol, &exchange, &side, &t.Quantity, &t.Price, &t.Fees, &tradeType, &simulated); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Exchange = models.Exchange(exchange)
		t.Side = models.OrderSide(side)
		t.TradeType = models.TradeType(tradeType)
		t.Simulated = simulated != 0
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SavePosition upserts a position row.
func (s *SQLiteStore) SavePosition(ctx context.Context, p *models.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, symbol, tradingsymbol, type, strike, expiry, quantity, lot_size, entry_premium, exit_premium, status, opened_at, closed_at, realized_pnl, fees, rolled_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exit_premium = excluded.exit_premium,
			status = excluded.status,
			closed_at = excluded.closed_at,
			realized_pnl = excluded.realized_pnl,
			fees = excluded.fees,
			rolled_to = excluded.rolled_to`,
		p.ID, p.Symbol, p.Tradingsymbol, string(p.Type), p.Strike, p.Expiry,
		p.Quantity, p.LotSize, p.EntryPremium, p.ExitPremium, string(p.Status),
		p.OpenedAt, p.ClosedAt, p.RealizedPnL, p.Fees, p.RolledTo)
	if err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	return nil
}

// GetPosition fetches one position by ID.
func (s *SQLiteStore) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, tradingsymbol, type, strike, expiry, quantity, lot_size, entry_premium, exit_premium, status, opened_at, closed_at, realized_pnl, fees, rolled_to
		FROM positions WHERE id = ?`, id)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying position: %w", err)
	}
	return p, nil
}

// GetOpenPositions returns open positions, optionally filtered by symbol.
func (s *SQLiteStore) GetOpenPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	query := `SELECT id, symbol, tradingsymbol, type, strike, expiry, quantity, lot_size, entry_premium, exit_premium, status, opened_at, closed_at, realized_pnl, fees, rolled_to
		FROM positions WHERE status = ?`
	args := []interface{}{string(models.PositionOpen)}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY opened_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying open positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// GetClosedPositions returns settled positions (closed, rolled or
// assigned), oldest first, optionally filtered by symbol.
func (s *SQLiteStore) GetClosedPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	query := `SELECT id, symbol, tradingsymbol, type, strike, expiry, quantity, lot_size, entry_premium, exit_premium, status, opened_at, closed_at, realized_pnl, fees, rolled_to
		FROM positions WHERE status != ?`
	args := []interface{}{string(models.PositionOpen)}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY opened_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying closed positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// CountOpenPositions returns the number of open positions across symbols.
func (s *SQLiteStore) CountOpenPositions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE status = ?`, string(models.PositionOpen)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open positions: %w", err)
	}
	return n, nil
}

// OpenRiskAmount returns the summed worst-case loss across open
// positions: assignment value minus premium collected.
func (s *SQLiteStore) OpenRiskAmount(ctx context.Context) (float64, error) {
	var risk sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(strike * quantity - entry_premium * quantity)
		FROM positions WHERE status = ?`, string(models.PositionOpen)).Scan(&risk)
	if err != nil {
		return 0, fmt.Errorf("summing open risk: %w", err)
	}
	return risk.Float64, nil
}

// DailyRealizedPnL returns realized P&L of positions closed on the given day.
func (s *SQLiteStore) DailyRealizedPnL(ctx context.Context, day time.Time) (float64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var pnl sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(realized_pnl) FROM positions
		WHERE closed_at IS NOT NULL AND closed_at >= ? AND closed_at < ?`, start, end).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("summing daily pnl: %w", err)
	}
	return pnl.Float64, nil
}

// SaveState upserts the strategy state for a symbol.
func (s *SQLiteStore) SaveState(ctx context.Context, state *models.StrategyState) error {
	state.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_state (symbol, phase, position_id, shares_quantity, share_entry_price, consecutive_errors, cycles_run, last_cycle_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			phase = excluded.phase,
			position_id = excluded.position_id,
			shares_quantity = excluded.shares_quantity,
			share_entry_price = excluded.share_entry_price,
			consecutive_errors = excluded.consecutive_errors,
			cycles_run = excluded.cycles_run,
			last_cycle_at = excluded.last_cycle_at,
			updated_at = excluded.updated_at`,
		state.Symbol, string(state.Phase), state.PositionID, state.SharesQuantity,
		state.ShareEntryPrice, state.ConsecutiveErrors, state.CyclesRun,
		state.LastCycleAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving strategy state: %w", err)
	}
	return nil
}

// GetState fetches the strategy state for a symbol. A symbol never seen
// before gets a fresh NO_POSITION state.
func (s *SQLiteStore) GetState(ctx context.Context, symbol string) (*models.StrategyState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, phase, position_id, shares_quantity, share_entry_price, consecutive_errors, cycles_run, last_cycle_at, updated_at
		FROM strategy_state WHERE symbol = ?`, symbol)

	var state models.StrategyState
	var phase string
	var positionID sql.NullString
	var lastCycle sql.NullTime
	err := row.Scan(&state.Symbol, &phase, &positionID, &state.SharesQuantity,
		&state.ShareEntryPrice, &state.ConsecutiveErrors, &state.CyclesRun,
		&lastCycle, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.NewStrategyState(symbol), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying strategy state: %w", err)
	}

	state.Phase = models.StrategyPhase(phase)
	state.PositionID = positionID.String
	if lastCycle.Valid {
		state.LastCycleAt = lastCycle.Time
	}
	return &state, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var typ, status string
	var closedAt sql.NullTime
	var rolledTo sql.NullString
	err := row.Scan(&p.ID, &p.Symbol, &p.Tradingsymbol, &typ, &p.Strike, &p.Expiry,
		&p.Quantity, &p.LotSize, &p.EntryPremium, &p.ExitPremium, &status,
		&p.OpenedAt, &closedAt, &p.RealizedPnL, &p.Fees, &rolledTo)
	if err != nil {
		return nil, err
	}
	p.Type = models.OptionType(typ)
	p.Status = models.PositionStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	p.RolledTo = rolledTo.String
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements DataStore
var _ DataStore = (*SQLiteStore)(nil)
