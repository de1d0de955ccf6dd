package warehouse

import (
	"database/sql"

	"github.com/frostline-io/frostline/pkg/plugin"
)

// migrations returns the Warehouse module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create orders table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS warehouse_orders (
						order_key    INTEGER PRIMARY KEY,
						cust_key     INTEGER NOT NULL,
						status       TEXT NOT NULL DEFAULT 'O',
						total_price  REAL NOT NULL,
						order_date   DATETIME NOT NULL,
						priority     TEXT NOT NULL DEFAULT '',
						country      TEXT NOT NULL DEFAULT '',
						country_code TEXT NOT NULL DEFAULT '',
						region       TEXT NOT NULL DEFAULT '',
						product_type TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_warehouse_orders_date ON warehouse_orders(order_date)`,
					`CREATE INDEX IF NOT EXISTS idx_warehouse_orders_cust ON warehouse_orders(cust_key)`,
					`CREATE INDEX IF NOT EXISTS idx_warehouse_orders_country_date ON warehouse_orders(country, order_date)`,
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
