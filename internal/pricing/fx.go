package pricing

import (
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	"github.com/smallbiznis/catalyser/internal/pricing/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/repository"
	"github.com/smallbiznis/catalyser/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(calculator.New),
	fx.Provide(func(ledger creditdomain.Service) domain.Ledger { return ledger }),
	fx.Provide(service.New),
)
