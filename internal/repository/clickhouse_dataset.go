package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	applogger "EconCast/pkg/logger"
)

const (
	PeriodColumn = "Period"
	FlowColumn   = "Flow"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHDataset reads observations stored in long format
// (period, flow, indicator, value) and pivots them into one row per
// period and flow with a column per indicator.
type CHDataset struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHDataset(db *sql.DB, table string) (*CHDataset, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid observations table %q", table)
	}
	return &CHDataset{db: db, table: table}, nil
}

// SetLogger injects a structured logger.
func (s *CHDataset) SetLogger(l *applogger.Logger) { s.l = l }

// Schema returns the DDL for the observations table.
func (s *CHDataset) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            period    String,
            flow      String DEFAULT '',
            indicator LowCardinality(String),
            value     Nullable(Float64)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (indicator, flow, period)
    `, s.table)}
}

type observation struct {
	period    string
	flow      string
	indicator string
	value     sql.NullFloat64
}

func (s *CHDataset) Table(ctx context.Context) (*models.Table, error) {
	start := time.Now()
	const qtpl = `
        SELECT period, flow, indicator, value
        FROM %s
        ORDER BY period ASC, flow ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse dataset query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	obs := make([]observation, 0, 256)
	for rows.Next() {
		var o observation
		if err := rows.Scan(&o.period, &o.flow, &o.indicator, &o.value); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse dataset scan error",
					applogger.String("table", s.table),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse dataset rows error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}

	t := pivot(s.table, obs)
	if s.l != nil {
		s.l.Info("clickhouse dataset ok",
			applogger.String("table", s.table),
			applogger.Int("observations", len(obs)),
			applogger.Int("rows", t.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return t, nil
}

// pivot keeps first-seen order for both rows and indicator columns. NULL
// values stay unset. The Flow column is emitted only when some row has one.
func pivot(name string, obs []observation) *models.Table {
	type rowKey struct{ period, flow string }
	var (
		indicators []string
		seenInd    = map[string]bool{}
		index      = map[rowKey]int{}
		hasFlow    bool
		t          = &models.Table{Name: name}
	)
	for _, o := range obs {
		if !seenInd[o.indicator] {
			seenInd[o.indicator] = true
			indicators = append(indicators, o.indicator)
		}
		if o.flow != "" {
			hasFlow = true
		}
		k := rowKey{o.period, o.flow}
		i, ok := index[k]
		if !ok {
			i = len(t.Rows)
			index[k] = i
			t.Rows = append(t.Rows, models.Row{PeriodColumn: o.period, FlowColumn: o.flow})
		}
		if o.value.Valid {
			t.Rows[i][o.indicator] = o.value.Float64
		}
	}

	t.Columns = append(t.Columns, PeriodColumn)
	if hasFlow {
		t.Columns = append(t.Columns, FlowColumn)
	} else {
		for _, r := range t.Rows {
			delete(r, FlowColumn)
		}
	}
	t.Columns = append(t.Columns, indicators...)
	return t
}

var _ domrepo.DatasetReader = (*CHDataset)(nil)
