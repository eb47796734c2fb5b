package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/rag"
	"github.com/tsawler/intelliparse/understand"
)

// extractResponse is an ExtractionResult with its error as text.
type extractResponse struct {
	*intelliparse.ExtractionResult
	Error string `json:"error,omitempty"`
}

// handleExtract extracts the uploaded file. Query output=markdown|text
// returns the rendered document instead of JSON, and output=chunks returns
// retrieval chunks as JSON Lines; ai=true enables AI
// assistance.
func (s *Server) handleExtract(c *gin.Context) {
	p := s.pipeline
	if c.Query("ai") == "true" {
		if s.assisted == nil {
			handleError(c, http.StatusBadRequest, errors.New("AI assistance is not configured"))
			return
		}
		p = s.assisted
	}

	name, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	res := p.Extract(c.Request.Context(), intelliparse.Input{Name: name, Data: data})
	if res.Err != nil {
		c.JSON(statusFor(res.Err), extractResponse{ExtractionResult: res, Error: res.Error()})
		return
	}

	c.Header("X-Intelliparse-Warnings", strconv.Itoa(len(res.Warnings)))
	switch output := c.DefaultQuery("output", "json"); output {
	case "json":
		c.JSON(http.StatusOK, extractResponse{ExtractionResult: res})
	case "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(res.Document.Markdown()))
	case "text":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.Document.Text()))
	case "chunks":
		chunks, err := rag.NewChunker().Chunk(res.Document)
		if err != nil {
			handleError(c, http.StatusInternalServerError, err)
			return
		}
		out, err := chunks.ToJSONL()
		if err != nil {
			handleError(c, http.StatusInternalServerError, err)
			return
		}
		c.Data(http.StatusOK, "application/x-ndjson", []byte(out))
	default:
		handleError(c, http.StatusBadRequest, fmt.Errorf("unknown output %q", output))
	}
}

// handleSniff reports the detected format of the uploaded file.
func (s *Server) handleSniff(c *gin.Context) {
	name, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	sn := format.Sniff(name, data)
	c.JSON(http.StatusOK, gin.H{
		"name":               name,
		"format":             sn.Format,
		"mime":               sn.MIME,
		"by_content":         sn.ByContent,
		"claimed":            sn.Claimed,
		"extension_mismatch": sn.ExtensionMismatch,
	})
}

// handleSchema extracts the uploaded file and infers its entity schema.
func (s *Server) handleSchema(c *gin.Context) {
	name, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	res := s.pipeline.Extract(c.Request.Context(), intelliparse.Input{Name: name, Data: data})
	if res.Err != nil {
		handleError(c, statusFor(res.Err), res.Err)
		return
	}
	schema, err := s.pipeline.Schema(c.Request.Context(), res.Document)
	if err != nil {
		handleError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

// readUpload reads the multipart field "file". On failure it writes the
// error response and returns false.
func (s *Server) readUpload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("request larger than %d bytes", tooLarge.Limit))
			return "", nil, false
		}
		handleError(c, http.StatusBadRequest, fmt.Errorf("missing multipart field \"file\": %w", err))
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		handleError(c, http.StatusBadRequest, fmt.Errorf("opening upload: %w", err))
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		handleError(c, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return "", nil, false
	}
	return fh.Filename, data, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, format.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, understand.ErrNoModel):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusUnprocessableEntity
}
