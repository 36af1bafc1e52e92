package ws

import (
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(httpsrv.AsRegistrar(NewWSHandler)),
)
