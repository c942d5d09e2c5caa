package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/services"
	"github.com/yoockh/yoolisten/internal/utils"
)

type ProcessHandler struct {
	svc      services.TranscriptionService
	maxBytes int64
}

func NewProcessHandler(svc services.TranscriptionService, maxBytes int64) *ProcessHandler {
	return &ProcessHandler{svc: svc, maxBytes: maxBytes}
}

type ProcessResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription"`
	Filename      string `json:"filename"`
}

// readUpload validates name and declared size before reading the body.
func (h *ProcessHandler) readUpload(c *gin.Context, op string) (services.Upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return services.Upload{}, utils.E(utils.CodeInvalidArgument, op, "no file provided in multipart field 'file'", err)
	}
	if err := h.svc.Validate(fh.Filename, fh.Size); err != nil {
		return services.Upload{}, err
	}

	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, utils.E(utils.CodeInternal, op, "failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return services.Upload{}, utils.E(utils.CodeInternal, op, "failed to read upload", err)
	}
	return services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *ProcessHandler) Process(c *gin.Context) {
	up, err := h.readUpload(c, "ProcessHandler.Process")
	if err != nil {
		writeError(c, err)
		return
	}

	text, err := h.svc.Transcribe(c.Request.Context(), up)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Status:        "success",
		Transcription: text,
		Filename:      up.Filename,
	})
}

func (h *ProcessHandler) ProcessWithSummary(c *gin.Context) {
	up, err := h.readUpload(c, "ProcessHandler.ProcessWithSummary")
	if err != nil {
		writeError(c, err)
		return
	}

	sink := newSSESink(c)
	if err := h.svc.ProcessWithSummary(c.Request.Context(), up, sink); err != nil && !sink.Started() {
		writeError(c, err)
	}
}
