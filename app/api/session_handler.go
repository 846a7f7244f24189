package api

import (
	"docfill/session"
	"docfill/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) HandleCreateSession(c *fiber.Ctx) error {
	var params types.CreateSessionParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	docID, err := uuid.Parse(params.DocumentID)
	if err != nil {
		return ErrInvalidID()
	}

	sess, err := h.manager.Create(c.Context(), docID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session_id": sess.ID, "document_id": sess.DocID})
}

func (h *SessionHandler) HandleGetSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	sess, progress, err := h.manager.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":          sess.ID,
		"document_id": sess.DocID,
		"state":       sess.State,
		"started_at":  sess.StartedAt,
		"progress":    progress,
	})
}

// HandleChat runs one conversational turn. Chatting on a complete
// session is allowed and treated as an edit.
func (h *SessionHandler) HandleChat(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	assistant, progress, err := h.manager.Chat(c.Context(), id, params.Message)
	if err != nil {
		return err
	}
	return c.JSON(types.ChatResponse{Assistant: assistant, Progress: progress})
}
