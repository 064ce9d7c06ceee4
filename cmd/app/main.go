package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"mentis/cmd/fx/billing_fx"
	"mentis/cmd/fx/customer_fx"
	"mentis/cmd/fx/cycle_fx"
	"mentis/cmd/fx/db_fx"
	"mentis/cmd/fx/gateway_fx"
	"mentis/cmd/fx/ledger_fx"
	"mentis/cmd/fx/mail_fx"
	"mentis/cmd/fx/plan_fx"
	"mentis/cmd/fx/scheduler_fx"
	"mentis/internal/api/controllers"
	"mentis/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	app := fx.New(
		db_fx.Module,
		gateway_fx.Module,
		mail_fx.Module,
		plan_fx.Module,
		customer_fx.Module,
		cycle_fx.Module,
		ledger_fx.Module,
		billing_fx.Module,
		scheduler_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := os.Getenv("PORT")
				if port == "" {
					port = "8080"
				}
				log.Printf("Starting HTTP server at :%s", port)
				if err := engine.Run(":" + port); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}

func ProvideRouter(
	planController *controllers.PlanController,
	customerController *controllers.CustomerController,
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController) *gin.Engine {

	r := gin.Default()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, planController, customerController, billingController, webhookController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	planController *controllers.PlanController,
	customerController *controllers.CustomerController,
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController) {

	r.GET("/plans", planController.ListPlans)
	r.POST("/customers/register", customerController.Register)
	r.POST("/customers/login", customerController.Login)
	r.POST("/webhooks/gateway", webhookController.HandleGatewayEvent)

	billing := r.Group("/billing")
	billing.Use(middleware.JWTAuthMiddleware())
	billing.POST("/purchase", billingController.Purchase)
	billing.GET("/subscription", billingController.GetSubscription)
	billing.POST("/cancel", billingController.Cancel)
	billing.POST("/upgrade", billingController.Upgrade)
	billing.POST("/downgrade", billingController.Downgrade)
	billing.POST("/consume", billingController.Consume)
	billing.GET("/ledger", billingController.Ledger)

	customers := r.Group("/customers")
	customers.Use(middleware.JWTAuthMiddleware())
	customers.GET("/me", customerController.Me)
}
