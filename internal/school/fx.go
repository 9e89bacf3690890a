package school

import (
	"github.com/smallbiznis/aula/internal/school/service"
	"go.uber.org/fx"
)

var Module = fx.Module("school.service",
	fx.Provide(service.New),
)
