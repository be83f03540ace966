package controller

import (
	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/pkg/serverutils"
	"soul-journal-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	Vocabulary(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService  service.IChatService
	vocabService service.IVocabularyService
	jwtGuard     fiber.Handler
}

func NewChatController(chatService service.IChatService, vocabService service.IVocabularyService, jwtGuard fiber.Handler) IChatController {
	return &chatController{
		chatService:  chatService,
		vocabService: vocabService,
		jwtGuard:     jwtGuard,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(c.jwtGuard)
	h.Post("query", c.Query)
	h.Get("vocabulary", c.Vocabulary)
}

func (c *chatController) Query(ctx *fiber.Ctx) error {
	ownerID, err := serverutils.RequesterID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Query(ctx.Context(), ownerID, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success query journal", res))
}

func (c *chatController) Vocabulary(ctx *fiber.Ctx) error {
	if _, err := serverutils.RequesterID(ctx); err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse("unauthenticated"))
	}

	vocab, err := c.vocabService.Vocabulary(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success fetch vocabulary", dto.VocabularyResponse{
		Themes:   vocab.Themes,
		Emotions: vocab.Emotions,
	}))
}
