package concept

import (
	"github.com/smallbiznis/aula/internal/concept/service"
	"go.uber.org/fx"
)

var Module = fx.Module("concept.service",
	fx.Provide(service.New),
)
