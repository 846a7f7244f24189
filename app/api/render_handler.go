package api

import (
	"docfill/render"
	"docfill/store"
	"docfill/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type RenderHandler struct {
	store store.Storer
	blobs store.BlobStorer
}

func NewRenderHandler(s store.Storer, blobs store.BlobStorer) *RenderHandler {
	return &RenderHandler{store: s, blobs: blobs}
}

// HandleRender produces the artifact from a consistent snapshot of the
// session's answers. Read-only with respect to session state, so it is
// safe to call concurrently with chat turns; missing answers never fail
// a render.
func (h *RenderHandler) HandleRender(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	mode := c.Query("mode", "preview")
	if mode != "final" && mode != "preview" {
		return NewError(fiber.StatusBadRequest, "mode must be 'final' or 'preview'")
	}

	// GetSession reads answers in one call: the render sees either all or
	// none of an in-flight turn's assignments.
	sess, err := h.store.GetSession(c.Context(), id)
	if err != nil {
		return err
	}
	doc, err := h.store.GetDocumentByID(c.Context(), sess.DocID)
	if err != nil {
		return err
	}
	defs, err := h.store.GetDefinitions(c.Context(), sess.DocID)
	if err != nil {
		return err
	}
	template, err := h.blobs.Get(TemplateBlobKey(sess.DocID))
	if err != nil {
		return types.ErrDocumentNotFound
	}

	if mode == "final" {
		out, err := render.Final(template, defs, sess.Answers)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+render.Filename(doc.Filename)+`"`)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Send(out)
	}

	out, err := render.Preview(template, defs, sess.Answers)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(out)
}
