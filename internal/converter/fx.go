package converter

import (
	"github.com/smallbiznis/catalyser/internal/converter/repository"
	"github.com/smallbiznis/catalyser/internal/converter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("converter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
