package representative

import (
	"github.com/smallbiznis/aula/internal/representative/service"
	"go.uber.org/fx"
)

var Module = fx.Module("representative.service",
	fx.Provide(service.New),
)
