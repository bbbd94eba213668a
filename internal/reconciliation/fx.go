package reconciliation

import (
	"github.com/smallbiznis/ledgerlink/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(service.NewService),
)
