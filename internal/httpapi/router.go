package httpapi

import (
	"context"
	"itemsvc/app/item"
	"itemsvc/internal/middleware"
	"itemsvc/pkg/events"
	"itemsvc/pkg/httperror"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Pinger reports whether the storage layer is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the HTTP surface. Publisher must be a nil interface,
// not a typed nil, when event publishing is disabled.
type Dependencies struct {
	Repository  item.Repository
	Pinger      Pinger
	Publisher   events.Publisher
	ServiceName string
}

func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		IdleTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Concurrency:  256 * 1024,
		ErrorHandler: writeError,
	})

	app.Use(recover.New())
	app.Use(middleware.NewRequestContextMiddleware())

	createItemHandler := item.NewCreateItemHandler(deps.Repository, deps.Publisher, deps.ServiceName)
	getItemsHandler := item.NewGetItemsHandler(deps.Repository)
	getItemHandler := item.NewGetItemHandler(deps.Repository)

	app.Post("/items/", handle[item.CreateItemRequest, item.CreateItemResponse](createItemHandler, fiber.StatusCreated))
	app.Get("/items/", handle[item.GetItemsRequest, item.GetItemsResponse](getItemsHandler, fiber.StatusOK))
	app.Get("/items/:id", handle[item.GetItemRequest, item.GetItemResponse](getItemHandler, fiber.StatusOK))

	app.Get("/healthz", healthHandler(deps.Pinger, deps.Publisher))

	return app
}

func healthHandler(pinger Pinger, publisher events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		body := fiber.Map{"status": "ok", "database": "up"}
		if publisher != nil {
			body["events"] = "up"
			if !publisher.IsHealthy() {
				body["events"] = "down"
			}
		}

		if pinger != nil {
			if err := pinger.Ping(ctx); err != nil {
				body["status"] = "unavailable"
				body["database"] = "down"
				return writeError(c, httperror.ServiceUnavailable("health.database_down", err.Error(), body))
			}
		}

		return c.JSON(body)
	}
}
