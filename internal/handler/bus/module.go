package bus

import (
	"go.uber.org/fx"
)

var Module = fx.Module("bus-handler",
	fx.Provide(
		NewConsumers,
		NewWatermillRouter,
	),

	fx.Invoke((*Consumers).RegisterHandlers),
)
