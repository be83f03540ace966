package controller

import (
	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/pkg/serverutils"
	"soul-journal-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IJournalController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type journalController struct {
	journalService service.IJournalService
	jwtGuard       fiber.Handler
}

func NewJournalController(journalService service.IJournalService, jwtGuard fiber.Handler) IJournalController {
	return &journalController{
		journalService: journalService,
		jwtGuard:       jwtGuard,
	}
}

func (c *journalController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/journal/v1")
	h.Use(c.jwtGuard)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
}

func (c *journalController) Create(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	var req dto.CreateJournalEntryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.journalService.Create(ctx.Context(), ownerID, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create journal entry", res))
}

func (c *journalController) Show(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse("invalid entry id"))
	}

	res, err := c.journalService.Show(ctx.Context(), ownerID, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show journal entry", res))
}

func (c *journalController) List(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.journalService.List(ctx.Context(), ownerID, limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list journal entries", res))
}

func (c *journalController) Update(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse("invalid entry id"))
	}

	var req dto.UpdateJournalEntryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.journalService.Update(ctx.Context(), ownerID, id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update journal entry", res))
}

func (c *journalController) Delete(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse("invalid entry id"))
	}

	if err := c.journalService.Delete(ctx.Context(), ownerID, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete journal entry", nil))
}
