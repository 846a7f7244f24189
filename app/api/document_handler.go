package api

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"docfill/extract"
	"docfill/model"
	"docfill/parser"
	"docfill/store"
	"docfill/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TemplateBlobKey addresses the uploaded template bytes in the blob store.
func TemplateBlobKey(docID uuid.UUID) string {
	return "tmpl/" + docID.String()
}

type DocumentHandler struct {
	store     store.Storer
	blobs     store.BlobStorer
	extractor *extract.Extractor
	converter *parser.PDFConverter
	embedder  model.Embedder
}

func NewDocumentHandler(s store.Storer, blobs store.BlobStorer, extractor *extract.Extractor, converter *parser.PDFConverter, embedder model.Embedder) *DocumentHandler {
	return &DocumentHandler{
		store:     s,
		blobs:     blobs,
		extractor: extractor,
		converter: converter,
		embedder:  embedder,
	}
}

// HandleUpload stores a template and registers the document. PDF uploads
// are converted to text here; everything downstream addresses text
// blocks only.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".txt", ".md":
		// plain text template, stored as-is
	case ".pdf":
		data, err = h.converter.Convert(data, fileHeader.Filename)
		if err != nil {
			return err
		}
	default:
		return NewError(fiber.StatusBadRequest, "only .txt, .md and .pdf templates are supported")
	}

	// Парсим сразу, чтобы битый шаблон не попал в хранилище
	if _, err := parser.ParseText(data); err != nil {
		return err
	}

	doc := types.Document{
		ID:        uuid.New(),
		Filename:  fileHeader.Filename,
		Status:    types.StatusUploaded,
		CreatedAt: time.Now(),
	}

	if err := h.blobs.Put(TemplateBlobKey(doc.ID), data); err != nil {
		return err
	}
	if err := h.store.SaveDocument(c.Context(), doc); err != nil {
		return err
	}
	fmt.Printf("[UPLOAD] template %s saved as document %s\n", fileHeader.Filename, doc.ID)

	return c.JSON(fiber.Map{"document_id": doc.ID, "status": doc.Status})
}

// HandleExtract runs placeholder extraction. Idempotent: once a document
// has definitions they are returned as-is; the id set is never rewritten
// under a live session.
func (h *DocumentHandler) HandleExtract(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.store.GetDocumentByID(c.Context(), docID)
	if err != nil {
		return err
	}

	existing, err := h.store.GetDefinitions(c.Context(), docID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return c.JSON(existing)
	}

	data, err := h.blobs.Get(TemplateBlobKey(docID))
	if err != nil {
		return types.ErrDocumentNotFound
	}
	blocks, err := parser.ParseText(data)
	if err != nil {
		return err
	}

	defs, err := h.extractor.Extract(c.Context(), docID, blocks)
	if err != nil {
		if err == types.ErrNoPlaceholders {
			_ = h.store.SetDocumentStatus(c.Context(), docID, types.StatusParseFailed)
		}
		return err
	}

	embeddings := h.embedHints(c, defs)
	if err := h.store.SaveDefinitions(c.Context(), defs, embeddings); err != nil {
		return err
	}
	if err := h.store.SetDocumentStatus(c.Context(), docID, types.StatusParsed); err != nil {
		return err
	}
	fmt.Printf("[EXTRACT] document %s (%s): %d placeholders\n", docID, doc.Filename, len(defs))

	return c.JSON(defs)
}

// embedHints is best effort: a dead embedder only disables fuzzy label
// routing, never extraction.
func (h *DocumentHandler) embedHints(c *fiber.Ctx, defs []types.PlaceholderDefinition) [][]float32 {
	if h.embedder == nil {
		return nil
	}
	embeddings := make([][]float32, len(defs))
	for i, d := range defs {
		vec, err := h.embedder.Embed(c.Context(), d.Label+" "+d.Hint)
		if err != nil {
			fmt.Printf("[EXTRACT] hint embedding failed for %s: %v\n", d.ID, err)
			continue
		}
		embeddings[i] = vec
	}
	return embeddings
}

func (h *DocumentHandler) HandleGetDocument(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	doc, err := h.store.GetDocumentByID(c.Context(), docID)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleListPlaceholders(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if _, err := h.store.GetDocumentByID(c.Context(), docID); err != nil {
		return err
	}
	defs, err := h.store.GetDefinitions(c.Context(), docID)
	if err != nil {
		return err
	}
	return c.JSON(defs)
}
