package metalprice

import (
	"github.com/smallbiznis/catalyser/internal/metalprice/cache"
	"github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/metalprice/repository"
	"github.com/smallbiznis/catalyser/internal/metalprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metalprice.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.New),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Provider { return svc }),
)
