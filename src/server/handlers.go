package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/support"
	"github.com/Protocol-Lattice/go-support-desk/src/transcript"
)

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	ID       string `json:"id"`
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
}

type imageInfo struct {
	Name          string
	Width, Height int
}

type pageData struct {
	Question string
	Answer   string
	Provider string
	Model    string
	Cached   bool
	Warning  string
	Error    string
	Image    *imageInfo
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData{})
}

// SubmitForm handles the HTML form and always re-renders the page.
func (h *Handler) SubmitForm(c *gin.Context) {
	page := pageData{Question: c.PostForm("question")}

	img, err := h.readAttachment(c)
	if err != nil {
		page.Error = displayError(err)
		c.HTML(statusFor(err), "index.html", page)
		return
	}
	if img != nil {
		page.Image = &imageInfo{Name: img.Name, Width: img.Width, Height: img.Height}
	}

	ans, err := h.svc.Submit(c.Request.Context(), support.Submission{Question: page.Question, Attachment: img})
	switch {
	case errors.Is(err, support.ErrEmptyQuestion):
		page.Warning = support.EmptyQuestionWarning
		c.HTML(http.StatusOK, "index.html", page)
		return
	case err != nil:
		page.Error = displayError(err)
		c.HTML(statusFor(err), "index.html", page)
		return
	}
	page.Answer = ans.Text
	page.Provider = ans.Provider
	page.Model = ans.Model
	page.Cached = ans.Cached
	c.HTML(http.StatusOK, "index.html", page)
}

// CreateQuery accepts JSON {"question": "..."} or a multipart form with
// "question" and an optional "image".
func (h *Handler) CreateQuery(c *gin.Context) {
	var sub support.Submission
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		sub.Question = c.PostForm("question")
		img, err := h.readAttachment(c)
		if err != nil {
			h.writeError(c, err)
			return
		}
		sub.Attachment = img
	} else {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Debug("Failed to decode request", zap.Error(err))
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request payload"})
			return
		}
		sub.Question = req.Question
	}

	ans, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{
		ID:       ans.ID,
		Answer:   ans.Text,
		Provider: ans.Provider,
		Model:    ans.Model,
		Cached:   ans.Cached,
	})
}

func (h *Handler) ListTranscripts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	recs, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list transcripts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list transcripts"})
		return
	}
	if recs == nil {
		recs = []transcript.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": recs})
}

// readAttachment returns nil when no file was uploaded.
func (h *Handler) readAttachment(c *gin.Context) (*ocr.Image, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if fh.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ocr.ErrTooLarge, fh.Size, h.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return ocr.Decode(fh.Filename, fh.Header.Get("Content-Type"), data, h.maxBytes)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: displayError(err)}
	if se, ok := models.AsStatusError(err); ok {
		resp.Status = se.StatusCode
		resp.Body = se.Body
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("query failed", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, resp)
}

func statusFor(err error) int {
	if _, ok := models.AsStatusError(err); ok {
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, support.ErrEmptyQuestion), errors.Is(err, ocr.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ocr.ErrUnsupportedType), errors.Is(err, ocr.ErrInvalidImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, support.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// displayError is the user-facing text for err. Transport errors are not
// echoed since they can carry endpoint details.
func displayError(err error) string {
	if se, ok := models.AsStatusError(err); ok {
		return se.Error()
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		if errors.Is(err, support.ErrEmptyQuestion) {
			return support.EmptyQuestionWarning
		}
		return err.Error()
	case http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "The support model did not answer in time. Please try again."
	default:
		return "The support model could not be reached. Please try again later."
	}
}
