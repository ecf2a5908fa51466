package controller

import (
	"ai-docinsight-be/internal/pkg/serverutils"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

type ISystemController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
	LimiterState(ctx *fiber.Ctx) error
}

type systemController struct {
	contentCache *cache.ContentCache
	limiter      *ratelimit.Limiter
}

func NewSystemController(contentCache *cache.ContentCache, limiter *ratelimit.Limiter) ISystemController {
	return &systemController{
		contentCache: contentCache,
		limiter:      limiter,
	}
}

func (c *systemController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/system/v1")
	h.Get("health", c.Health)
	h.Get("cache-stats", c.CacheStats)
	h.Get("limiter", c.LimiterState)
}

func (c *systemController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

func (c *systemController) CacheStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get cache stats", c.contentCache.Stats()))
}

// LimiterState reports system health plus the caller's own limiter state
// when a user id is supplied.
func (c *systemController) LimiterState(ctx *fiber.Ctx) error {
	data := fiber.Map{
		"health":     c.limiter.Health(),
		"multiplier": c.limiter.HealthMultiplier(),
	}

	if userId := ctx.Query("user_id"); userId != "" {
		if state, ok := c.limiter.UserSnapshot(userId); ok {
			data["user"] = state
		}
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get limiter state", data))
}
