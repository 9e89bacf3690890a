package user

import (
	"github.com/smallbiznis/aula/internal/user/service"
	"github.com/smallbiznis/aula/internal/user/session"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(
		service.New,
		session.NewManager,
	),
)
