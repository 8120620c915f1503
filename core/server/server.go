// Package server exposes the geotagging pipeline as an HTTP upload endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/archive"
	"github.com/ankit-chaubey/geotag-surgery/core/batch"
	"github.com/ankit-chaubey/geotag-surgery/core/config"
)

const (
	shutdownTimeout = 5 * time.Second

	// Multipart parts above this size are spooled to disk by net/http.
	multipartMemory = 8 << 20
	// Room for form fields and multipart framing on top of the images.
	formOverhead = 1 << 20
)

// Server serves POST /api/geotag.
type Server struct {
	cfg       config.Config
	pipeline  *batch.Pipeline
	assembler *archive.Assembler
	logger    zerolog.Logger
	engine    *gin.Engine
}

// New wires the pipeline, the assembler and the gin routes.
func New(cfg config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		pipeline: batch.New(
			batch.WithTempDir(cfg.TempDir),
			batch.WithLogger(logger),
			batch.WithMaxPixels(cfg.MaxImagePixels),
		),
		assembler: archive.New(archive.WithPrefix(cfg.OutputPrefix), archive.WithLogger(logger)),
		logger:    logger,
	}

	r := gin.New()
	r.MaxMultipartMemory = multipartMemory
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/geotag", s.handleGeotag)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on cfg.Listen until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleGeotag(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+formOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, core.KindValidation, "upload exceeds "+humanize.Bytes(uint64(s.cfg.MaxUploadBytes)), nil)
			return
		}
		s.fail(c, http.StatusBadRequest, core.KindValidation, "invalid multipart form: "+err.Error(), nil)
		return
	}
	defer form.RemoveAll()

	files := form.File["images"]
	if len(files) == 0 {
		s.fail(c, http.StatusBadRequest, core.KindValidation, "no images uploaded", nil)
		return
	}
	var total int64
	for _, fh := range files {
		total += fh.Size
	}
	if total > s.cfg.MaxUploadBytes {
		s.fail(c, http.StatusRequestEntityTooLarge, core.KindValidation, "upload exceeds "+humanize.Bytes(uint64(s.cfg.MaxUploadBytes)), nil)
		return
	}

	rec, err := recordFromForm(form.Value)
	if err != nil {
		s.fail(c, http.StatusBadRequest, core.KindOf(err), err.Error(), nil)
		return
	}
	if rec.IsEmpty() {
		s.fail(c, http.StatusBadRequest, core.KindValidation, "enter at least one metadata field", nil)
		return
	}

	res, err := s.pipeline.Run(c.Request.Context(), inputsFromFiles(files), rec)
	if err != nil {
		switch {
		case core.IsKind(err, core.KindValidation), core.IsKind(err, core.KindEncoding):
			s.fail(c, http.StatusBadRequest, core.KindOf(err), err.Error(), nil)
		case errors.Is(err, context.Canceled):
			c.Status(499)
		default:
			s.logger.Error().Err(err).Msg("Failed to run batch")
			s.fail(c, http.StatusInternalServerError, core.KindOf(err), "batch failed", nil)
		}
		return
	}
	summary := res.Summary()

	tmp, err := os.CreateTemp(s.cfg.TempDir, "geotag-deliverable-*")
	if err != nil {
		res.Cleanup()
		s.logger.Error().Err(err).Msg("Failed to create deliverable file")
		s.fail(c, http.StatusInternalServerError, core.KindArchiveIO, "cannot create output", &summary)
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	d, err := s.assembler.Assemble(res, tmp)
	if err != nil {
		status := http.StatusInternalServerError
		if core.IsKind(err, core.KindEmptyResult) {
			status = http.StatusUnprocessableEntity
		} else {
			s.logger.Error().Err(err).Str("run", res.RunID).Msg("Failed to assemble deliverable")
		}
		s.fail(c, status, core.KindOf(err), err.Error(), &summary)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.fail(c, http.StatusInternalServerError, core.KindArchiveIO, "cannot rewind output", &summary)
		return
	}

	c.DataFromReader(http.StatusOK, d.Size, d.ContentType, tmp, map[string]string{
		"Content-Disposition":   attachment(d.Name),
		"X-Geotag-Succeeded":    strconv.Itoa(summary.Succeeded),
		"X-Geotag-Failed":       strconv.Itoa(summary.Failed),
		"X-Geotag-Archive-Size": strconv.FormatInt(d.Size, 10),
	})
}

func (s *Server) fail(c *gin.Context, status int, kind core.ErrorKind, msg string, summary *core.Summary) {
	body := gin.H{"error": msg, "kind": kind}
	if summary != nil {
		body["summary"] = summary
	}
	c.AbortWithStatusJSON(status, body)
}

func inputsFromFiles(files []*multipart.FileHeader) []batch.Input {
	inputs := make([]batch.Input, 0, len(files))
	for _, fh := range files {
		fh := fh // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loop semantics)
		format := core.ParseFormat(fh.Header.Get("Content-Type"))
		if format == core.FmtUnknown {
			format = core.FormatFromName(fh.Filename)
		}
		inputs = append(inputs, batch.Input{
			Name:   fh.Filename,
			Format: format,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return inputs
}

func recordFromForm(values map[string][]string) (core.MetadataRecord, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	lat, err := parseCoordinate("latitude", get("latitude"))
	if err != nil {
		return core.MetadataRecord{}, err
	}
	lon, err := parseCoordinate("longitude", get("longitude"))
	if err != nil {
		return core.MetadataRecord{}, err
	}
	return core.NewMetadataRecord(core.RecordInput{
		Title:       get("title"),
		Description: get("description"),
		Keywords:    get("keywords"),
		Address:     get("address"),
		Latitude:    lat,
		Longitude:   lon,
	})
}

func parseCoordinate(field, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, core.WrapError(core.KindValidation, "server.recordFromForm", field, "not a number", err)
	}
	return &v, nil
}

// attachment builds a Content-Disposition value, quoting or RFC 2231
// encoding name as needed.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
