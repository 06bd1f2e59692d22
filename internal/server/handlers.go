package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vilfredos/logviewer/internal/parser"
	"github.com/vilfredos/logviewer/internal/store"
)

// uploadField is the multipart field carrying the log file.
const uploadField = "logfile"

// allowedExtensions lists the file extensions accepted for upload.
var allowedExtensions = map[string]bool{
	".log": true,
	".txt": true,
	".gz":  true,
	".bz2": true,
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// handleUpload stores an uploaded log file and returns the ingest report.
// An optional "log_type" form value forces the dialect.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	t, err := formLogType(c)
	if err != nil {
		return err
	}

	path, name, err := s.spoolUpload(c)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	report, err := s.ingest.IngestAs(c.UserContext(), path, name, t)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// handleTestParser parses an uploaded file and returns a preview without
// storing anything.
func (s *Server) handleTestParser(c *fiber.Ctx) error {
	path, name, err := s.spoolUpload(c)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	preview, err := s.ingest.Preview(path, name)
	if err != nil {
		return err
	}
	return c.JSON(preview)
}

// handleLogs serves one page of stored records of a type.
func (s *Server) handleLogs(c *fiber.Ctx) error {
	return s.servePage(c, s.store.List)
}

// handleAlerts serves one page of records of a type that report a failure.
func (s *Server) handleAlerts(c *fiber.Ctx) error {
	return s.servePage(c, s.store.Alerts)
}

type pageFunc func(ctx context.Context, t parser.LogType, f store.Filter, page, perPage int) (*store.Page, error)

// servePage reads the type, filter and paging parameters shared by the
// record listings. The store clamps page and per_page.
func (s *Server) servePage(c *fiber.Ctx, list pageFunc) error {
	t, err := pathLogType(c)
	if err != nil {
		return err
	}
	f, err := queryFilter(c)
	if err != nil {
		return err
	}

	page, err := list(c.UserContext(), t, f, c.QueryInt("page", 1), c.QueryInt("per_page", s.config.PageSize))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// handleSummary serves grouped counts for a type.
func (s *Server) handleSummary(c *fiber.Ctx) error {
	t, err := pathLogType(c)
	if err != nil {
		return err
	}
	f, err := queryFilter(c)
	if err != nil {
		return err
	}

	sum, err := s.store.Summary(c.UserContext(), t, f, c.QueryInt("limit", store.DefaultTopN))
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

// handleUploads lists recent uploads.
func (s *Server) handleUploads(c *fiber.Ctx) error {
	ups, err := s.store.Uploads(c.UserContext(), c.QueryInt("limit", store.DefaultPerPage))
	if err != nil {
		return err
	}
	if ups == nil {
		ups = []store.Upload{}
	}
	return c.JSON(fiber.Map{"uploads": ups})
}

// handleClear deletes every stored record.
func (s *Server) handleClear(c *fiber.Ctx) error {
	if err := s.store.Clear(c.UserContext()); err != nil {
		return err
	}
	log.Printf("server: cleared all stored logs")
	return c.JSON(fiber.Map{"cleared": true})
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.store.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// spoolUpload saves the uploaded file under UploadDir and returns its path
// and sanitized original name. The caller removes the file.
func (s *Server) spoolUpload(c *fiber.Ctx) (path, name string, err error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "no file provided in field "+uploadField)
	}

	name = sanitizeFilename(fh.Filename)
	if name == "" {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "no file selected")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("file type %q not allowed", ext))
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating upload dir: %w", err)
	}
	f, err := os.CreateTemp(s.config.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", "", fmt.Errorf("spooling upload: %w", err)
	}
	path = f.Name()
	f.Close()

	if err := c.SaveFile(fh, path); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("saving upload: %w", err)
	}
	return path, name, nil
}

// sanitizeFilename reduces a client-supplied name to a safe base name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "." {
		return ""
	}
	return name
}

func pathLogType(c *fiber.Ctx) (parser.LogType, error) {
	t, ok := parser.ParseLogType(c.Params("type"))
	if !ok || t == parser.TypeAuto {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown log type %q", c.Params("type")))
	}
	return t, nil
}

// queryFilter reads q, period, from and to. Periods are computed in UTC,
// the zone records are stored in.
func queryFilter(c *fiber.Ctx) (store.Filter, error) {
	return store.NewFilter(c.Query("q"), c.Query("period"), c.Query("from"), c.Query("to"), time.Now().UTC())
}

func formLogType(c *fiber.Ctx) (parser.LogType, error) {
	t, ok := parser.ParseLogType(c.FormValue("log_type"))
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown log type %q", c.FormValue("log_type")))
	}
	return t, nil
}

// errorHandler maps handler errors to JSON responses.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.Is(err, parser.ErrUndeterminedType):
		code, msg = fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, parser.ErrUnsupportedType), errors.Is(err, store.ErrUnknownType),
		errors.Is(err, store.ErrInvalidFilter):
		code, msg = fiber.StatusBadRequest, err.Error()
	default:
		log.Printf("server: %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
