package session

import (
	"go.uber.org/fx"
)

// Module provides the session manager
var Module = fx.Module("session",
	fx.Provide(NewManager),
)
