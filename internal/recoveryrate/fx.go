package recoveryrate

import (
	"github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"github.com/smallbiznis/catalyser/internal/recoveryrate/repository"
	"github.com/smallbiznis/catalyser/internal/recoveryrate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recoveryrate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Provider { return svc }),
)
