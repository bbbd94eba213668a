package installment

import (
	"github.com/smallbiznis/ledgerlink/internal/installment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("installment.service",
	fx.Provide(service.NewService),
)
