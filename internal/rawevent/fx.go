package rawevent

import (
	"github.com/smallbiznis/ledgerlink/internal/rawevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rawevent.service",
	fx.Provide(service.NewService),
)
