package controller

import (
	"eis-ingest-be/internal/pkg/serverutils"
	"eis-ingest-be/internal/service"
	"eis-ingest-be/pkg/eis"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Push(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/eis/v1")
	h.Post("/session/start", c.Start)
	h.Post("/session/sample", c.Push)
	h.Post("/session/end", c.End)
	h.Get("/session", c.Show)
}

// Protocol answers are always 200; ACK/NACK travels inside the result.

func (c *sessionController) Start(ctx *fiber.Ctx) error {
	var req eis.SessionMetadata
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest(err)
	}

	res := c.service.StartSession(ctx.UserContext(), &req)
	return ctx.JSON(serverutils.SuccessResponse("Start session", res))
}

func (c *sessionController) Push(ctx *fiber.Ctx) error {
	var req eis.Sample
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest(err)
	}

	res := c.service.PushSample(ctx.UserContext(), &req)
	return ctx.JSON(serverutils.SuccessResponse("Push sample", res))
}

func (c *sessionController) End(ctx *fiber.Ctx) error {
	res := c.service.EndSession(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("End session", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Current session", c.service.Snapshot()))
}
