package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"docfill/app/api"
	"docfill/extract"
	"docfill/model"
	"docfill/parser"
	"docfill/session"
	"docfill/store"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	db         *store.PostgresStore
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}
	s.db = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	blobs, err := store.NewFileBlobStore(os.Getenv("BLOB_DIR"))
	if err != nil {
		log.Fatal("error to create blob store", err)
		return
	}

	timeout := 30 * time.Second
	if sec, err := strconv.Atoi(os.Getenv("LLM_TIMEOUT_SECONDS")); err == nil && sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}
	llm := model.NewOllamaClient(os.Getenv("LLM_URL"), os.Getenv("LLM_MODEL"), timeout)
	embedder := model.NewOllamaEmbedder(os.Getenv("OLLAMA_EMBEDDING_URL"), os.Getenv("OLLAMA_EMBEDDING_MODEL"))

	var (
		app       = fiber.New(config)
		extractor = extract.New(llm)
		converter = parser.NewPDFConverter(os.Getenv("DOCLING_URL"))
		matcher   = session.NewEmbeddingMatcher(embedder, pool)
		interp    = session.NewModelInterpreter(llm, matcher)
		manager   = session.NewManager(pool, interp)

		checkHandler    = api.NewCheckHandler(pool)
		documentHandler = api.NewDocumentHandler(pool, blobs, extractor, converter, embedder)
		sessionHandler  = api.NewSessionHandler(manager)
		renderHandler   = api.NewRenderHandler(pool, blobs)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/documents", documentHandler.HandleUpload)
	apiv1.Get("/documents/:id", documentHandler.HandleGetDocument)
	apiv1.Post("/documents/:id/extract", documentHandler.HandleExtract)
	apiv1.Get("/documents/:id/placeholders", documentHandler.HandleListPlaceholders)

	apiv1.Post("/sessions", sessionHandler.HandleCreateSession)
	apiv1.Get("/sessions/:id", sessionHandler.HandleGetSession)
	apiv1.Post("/sessions/:id/chat", sessionHandler.HandleChat)
	apiv1.Get("/sessions/:id/render", renderHandler.HandleRender)

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
