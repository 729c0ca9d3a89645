package payment

import (
	"github.com/smallbiznis/atelier/internal/payment/adapters/stripe"
	"github.com/smallbiznis/atelier/internal/payment/repository"
	paymentservice "github.com/smallbiznis/atelier/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.New),
	fx.Provide(paymentservice.NewService),
)
