// Package devserver is an in-memory implementation of the Lounge channel
// protocol: group rooms, private matchmaking and the media upload endpoint.
// It exists so the client can be run and integration-tested without any
// external backend. Nothing is persisted.
package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loungechat/internal/logger"
	"github.com/loungechat/internal/upload"
)

// Server wires the hub and the file store behind an HTTP router.
type Server struct {
	hub           *Hub
	uploadDir     string
	maxUploadSize int64
	upgrader      websocket.Upgrader

	baseCtx context.Context
}

// New creates a devserver storing uploads under uploadDir.
func New(ctx context.Context, uploadDir string, maxUploadSize int64) *Server {
	return &Server{
		hub:           NewHub(),
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Dev stub: the browser front-end runs on another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		baseCtx: ctx,
	}
}

// Router builds the HTTP surface: websocket endpoint, upload, file serving.
func (s *Server) Router(allowedOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(allowedOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.serveWS)
	r.Post("/upload", s.handleUpload)
	r.Get("/files/{filename}", func(w http.ResponseWriter, r *http.Request) {
		s.serveFile(w, r, chi.URLParam(r, "filename"))
	})
	return r
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("devserver upgrade: %v", err)
		return
	}
	c := newClient(s.hub, conn)
	ctx, cancel := context.WithCancel(s.baseCtx)
	c.start(ctx, cancel)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("devserver writeJSON: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

// handleUpload accepts POST multipart/form-data with a "file" field and
// stores the blob under a generated name. No content sniffing here; the
// dev stub trusts its caller.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	newName := uuid.New().String() + ext
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create upload dir")
		return
	}
	dst, err := os.Create(filepath.Join(s.uploadDir, newName))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	if err := dst.Close(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	s.writeJSON(w, http.StatusOK, upload.Response{
		URL:      "/files/" + newName,
		FileName: filepath.Base(header.Filename),
		FileSize: header.Size,
	})
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, filename string) {
	filename = filepath.Base(filename)
	http.ServeFile(w, r, filepath.Join(s.uploadDir, filename))
}
