package controller

import (
	"github.com/gofiber/fiber/v2"

	"ableton-smart-assistant/internal/dto"
	"ableton-smart-assistant/internal/pkg/serverutils"
	"ableton-smart-assistant/internal/service"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	ChatStepByStep(ctx *fiber.Ctx) error
	Step(ctx *fiber.Ctx) error
	ValidateStep(ctx *fiber.Ctx) error
	SessionStatus(ctx *fiber.Ctx) error
	SessionHistory(ctx *fiber.Ctx) error
}

type assistantController struct {
	service service.IAssistantService
}

func NewAssistantController(service service.IAssistantService) IAssistantController {
	return &assistantController{service: service}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assistant/v1")
	h.Post("/chat", c.Chat)
	h.Post("/chat/step-by-step", c.ChatStepByStep)
	h.Post("/step", c.Step)
	h.Post("/step/validate", c.ValidateStep)
	h.Get("/session/:id/status", c.SessionStatus)
	h.Get("/session/:id/history", c.SessionHistory)
}

func (c *assistantController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Chat(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success chat", res))
}

func (c *assistantController) ChatStepByStep(ctx *fiber.Ctx) error {
	var req dto.StepByStepRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ChatStepByStep(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start step-by-step", res))
}

func (c *assistantController) Step(ctx *fiber.Ctx) error {
	var req dto.StepRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Step(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process step", res))
}

func (c *assistantController) ValidateStep(ctx *fiber.Ctx) error {
	var req dto.ValidateStepRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ValidateStep(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success validate step", res))
}

func (c *assistantController) SessionStatus(ctx *fiber.Ctx) error {
	res, err := c.service.SessionStatus(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session status", res))
}

func (c *assistantController) SessionHistory(ctx *fiber.Ctx) error {
	res, err := c.service.SessionHistory(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}
