package insight

import (
	"database/sql"

	"github.com/frostline-io/frostline/pkg/plugin"
)

// migrations returns the Insight module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create insight tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS insight_reports (
						id           TEXT PRIMARY KEY,
						metric       TEXT NOT NULL,
						granularity  TEXT NOT NULL DEFAULT 'day',
						period       DATETIME NOT NULL,
						value        REAL NOT NULL,
						z_score      REAL NOT NULL,
						severity     TEXT NOT NULL DEFAULT 'WARNING',
						direction    TEXT NOT NULL DEFAULT 'ABOVE_BASELINE',
						detected_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_insight_reports_point
						ON insight_reports(metric, granularity, period)`,
					`CREATE INDEX IF NOT EXISTS idx_insight_reports_detected
						ON insight_reports(detected_at)`,

					`CREATE TABLE IF NOT EXISTS insight_geo (
						month            DATETIME NOT NULL,
						country          TEXT NOT NULL,
						country_code     TEXT NOT NULL DEFAULT '',
						region           TEXT NOT NULL DEFAULT '',
						score            REAL NOT NULL DEFAULT 0,
						band             TEXT NOT NULL DEFAULT 'Normal',
						total_revenue    REAL NOT NULL DEFAULT 0,
						order_count      INTEGER NOT NULL DEFAULT 0,
						unique_customers INTEGER NOT NULL DEFAULT 0,
						avg_order_value  REAL NOT NULL DEFAULT 0,
						revenue_zscore   REAL NOT NULL DEFAULT 0,
						orders_zscore    REAL NOT NULL DEFAULT 0,
						revenue_mom_pct  REAL,
						anomaly_types    TEXT NOT NULL DEFAULT '[]',
						scored_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (month, country)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_insight_geo_month ON insight_geo(month)`,
					`CREATE INDEX IF NOT EXISTS idx_insight_geo_score ON insight_geo(score)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
