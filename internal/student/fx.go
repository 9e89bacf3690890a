package student

import (
	"github.com/smallbiznis/aula/internal/student/service"
	"go.uber.org/fx"
)

var Module = fx.Module("student.service",
	fx.Provide(service.New),
)
