package rest

import (
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("rest-handler",
	fx.Provide(httpsrv.AsRegistrar(NewHandler)),
)
