package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/internal/config"
	expensedomain "github.com/smallbiznis/atelier/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/atelier/internal/invoice/domain"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	vatperioddomain "github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres deployments (and sqlite tests) rely on gorm's schema
		// derivation instead of versioned SQL.
		return AutoMigrate(conn)
	}),
)

func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&messagedomain.Message{},
		&invoicedomain.Invoice{},
		&expensedomain.Expense{},
		&vatperioddomain.Record{},
		&auditdomain.AuditLog{},
	)
}
