package migration

import (
	anomalydomain "github.com/smallbiznis/ledgerlink/internal/anomaly/domain"
	"github.com/smallbiznis/ledgerlink/internal/config"
	identitydomain "github.com/smallbiznis/ledgerlink/internal/identity/domain"
	installmentdomain "github.com/smallbiznis/ledgerlink/internal/installment/domain"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	ledgerdomain "github.com/smallbiznis/ledgerlink/internal/ledger/domain"
	meteringdomain "github.com/smallbiznis/ledgerlink/internal/metering/domain"
	orderdomain "github.com/smallbiznis/ledgerlink/internal/order/domain"
	paymentdomain "github.com/smallbiznis/ledgerlink/internal/payment/domain"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	recondomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// non-postgres deployments (local sqlite, mysql) rely on
			// AutoMigrate instead of the versioned SQL
			return conn.AutoMigrate(
				&jobdomain.Job{},
				&rawdomain.RawEvent{},
				&orderdomain.Order{},
				&paymentdomain.Payment{},
				&identitydomain.ExternalRef{},
				&ledgerdomain.LedgerEntry{},
				&installmentdomain.Installment{},
				&meteringdomain.UsageCounter{},
				&anomalydomain.Anomaly{},
				&recondomain.BankTransaction{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
