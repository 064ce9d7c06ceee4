package gateway_fx

import (
	"go.uber.org/fx"
	"log"

	"mentis/internal/gateway"
)

var Module = fx.Provide(provideGatewayClient)

func provideGatewayClient() gateway.Client {

	client, err := gateway.NewVindiClient(gateway.ConfigFromEnv())
	if err != nil {
		log.Printf("Error initializing gateway client: %v", err)
	}

	return client
}
