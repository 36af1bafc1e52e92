package lp

import (
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("lp-handler",
	fx.Provide(httpsrv.AsRegistrar(NewLPHandler)),
)
