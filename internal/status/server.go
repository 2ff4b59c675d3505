// Package status serves a read-only view of the local backups over HTTP.
package status

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/emersion/go-imap/v2"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed views/*.html
var views embed.FS

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server exposes the stores under dir.
type Server struct {
	dir    string
	logger *slog.Logger
	app    *fiber.App
}

// FolderStatus is the health of one local folder store.
type FolderStatus struct {
	Folder      string `json:"folder"`
	UIDValidity uint32 `json:"uid_validity"`
	Messages    int    `json:"messages"`
	Bytes       int64  `json:"bytes"`
	Healthy     bool   `json:"healthy"`
	Error       string `json:"error,omitempty"`
}

type MessageStatus struct {
	UID     uint32      `json:"uid"`
	Length  int64       `json:"length"`
	Flags   []imap.Flag `json:"flags"`
	Subject string      `json:"subject,omitempty"`
}

type FolderDetail struct {
	FolderStatus
	Records []MessageStatus `json:"records"`
}

func New(dir string, opts ...Option) *Server {
	s := &Server{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	sub, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	app := fiber.New(fiber.Config{
		Views:                 html.NewFileSystem(http.FS(sub), ".html"),
		DisableStartupMessage: true,
	})
	app.Use(otelfiber.Middleware())
	app.Get("/", s.home)
	app.Get("/api/folders", s.folders)
	app.Get("/api/folders/*", s.folder)
	app.Use(s.notFound)
	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("status server listening", "addr", addr, "dir", s.dir)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) home(c *fiber.Ctx) error {
	statuses, err := s.statuses()
	if err != nil {
		return err
	}
	return c.Render("index", fiber.Map{
		"Title":   "imapvault",
		"Dir":     s.dir,
		"Folders": statuses,
	})
}

func (s *Server) folders(c *fiber.Ctx) error {
	statuses, err := s.statuses()
	if err != nil {
		return err
	}
	return c.JSON(statuses)
}

func (s *Server) folder(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid folder name")
	}
	known, err := store.LocalFolders(s.dir)
	if err != nil {
		return err
	}
	found := false
	for _, folder := range known {
		if folder == name {
			found = true
			break
		}
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "folder not found"})
	}

	st := store.Open(s.dir, name, store.WithLogger(s.logger))
	detail := FolderDetail{FolderStatus: s.status(st), Records: []MessageStatus{}}
	if detail.Healthy {
		err := st.Each(nil, func(msg store.Message) error {
			detail.Records = append(detail.Records, MessageStatus{
				UID:     msg.UID,
				Length:  msg.Length,
				Flags:   msg.Flags,
				Subject: store.Summarize(msg.Body).Subject,
			})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return c.JSON(detail)
}

func (s *Server) notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("404", nil)
}

func (s *Server) statuses() ([]FolderStatus, error) {
	folders, err := store.LocalFolders(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]FolderStatus, 0, len(folders))
	for _, folder := range folders {
		out = append(out, s.status(store.Open(s.dir, folder, store.WithLogger(s.logger))))
	}
	return out, nil
}

func (s *Server) status(st *store.FolderStore) FolderStatus {
	out := FolderStatus{Folder: st.Folder(), Messages: st.Len()}
	out.UIDValidity, _ = st.UIDValidity()
	if info, err := os.Stat(st.LogPath()); err == nil {
		out.Bytes = info.Size()
	}
	if err := st.CheckIntegrity(); err != nil {
		out.Error = err.Error()
		return out
	}
	out.Healthy = true
	return out
}
