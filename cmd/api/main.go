package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/handlers"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/metrics"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/users"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "product catalog and order API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file loaded before the environment",
				EnvVars: []string{"STOREFRONT_ENV_FILE"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API locally or as a Lambda handler",
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "create demo users and sample products",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services is the wired application graph shared by every command.
type services struct {
	cfg     *config.Config
	log     *logrus.Logger
	auth    *auth.Service
	catalog *catalog.Service
	orders  *orders.Service
}

func bootstrap(c *cli.Context) (*services, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}
	log := cfg.NewLogger()

	clients, err := aws.NewAWSClients(c.Context, aws.Settings{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.AWSEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsEnabled {
		recorder = metrics.NewCloudWatch(clients.CloudWatch, cfg.MetricsNamespace, log)
	}

	userStore := users.NewStore(clients.DynamoDB, cfg.UsersTable)
	productStore := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable)

	return &services{
		cfg:     cfg,
		log:     log,
		auth:    auth.NewService(userStore, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), log, cfg.BcryptCost),
		catalog: catalog.NewService(productStore, log, cfg.ProductPageSize),
		orders: orders.NewService(orders.Deps{
			Store:            orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.ProductsTable),
			Products:         productStore,
			Users:            userStore,
			Idempotency:      idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
			Metrics:          recorder,
			Log:              log,
			DefaultListLimit: cfg.OrderPageSize,
		}),
	}, nil
}

func serve(c *cli.Context) error {
	svc, err := bootstrap(c)
	if err != nil {
		return err
	}
	if svc.cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := handlers.NewRouter(handlers.HandlerConfig{
		Auth:        svc.auth,
		RateLimiter: auth.NewRateLimiter(svc.cfg.RateLimitAttempts, svc.cfg.RateLimitWindow, svc.cfg.RateLimitCapacity),
		Catalog:     svc.catalog,
		Orders:      svc.orders,
		Log:         svc.log,
		Env:         svc.cfg.Env,
		Version:     svc.cfg.Version,
	})

	if svc.cfg.RunMode == config.RunLocal {
		addr := ":" + svc.cfg.Port
		svc.log.WithField("env", svc.cfg.Env).Infof("running local server on %s", addr)
		return r.Run(addr)
	}

	// lambda adapter
	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
	return nil
}
