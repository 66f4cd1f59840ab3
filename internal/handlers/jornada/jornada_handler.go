// internal/handlers/jornada/jornada_handler.go
package jornada

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"ledroitcheck-service/internal/domain/jornada"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Ledger interface {
	Open(ctx context.Context, initials string, req jornada.OpenRequest) (*jornada.OpenResult, error)
	Close(ctx context.Context, initials string) (*jornada.CloseResult, error)
	GetOpen(ctx context.Context, initials string) (*jornada.OpenIndex, error)
	GetLast(ctx context.Context, initials string, companies []string) (*jornada.LastShift, error)
}

type JornadaHandler struct {
	ledger Ledger
}

func NewJornadaHandler(ledger Ledger) *JornadaHandler {
	return &JornadaHandler{ledger: ledger}
}

// Open starts a shift. The company defaults to the one selected in the session.
func (h *JornadaHandler) Open(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	var req jornada.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	if strings.TrimSpace(req.Company) == "" && rec.SelectedCompany != nil {
		req.Company = rec.SelectedCompany.Name
	}
	if req.IP == nil {
		ip := c.ClientIP()
		req.IP = &ip
	}

	result, err := h.ledger.Open(c.Request.Context(), rec.Initials, req)
	if err != nil {
		response.Fail(c, "failed to open jornada", err)
		return
	}

	response.Success(c, http.StatusCreated, "jornada opened", result)
}

// Close ends the open shift
func (h *JornadaHandler) Close(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	result, err := h.ledger.Close(c.Request.Context(), rec.Initials)
	if err != nil {
		response.Fail(c, "failed to close jornada", err)
		return
	}

	response.Success(c, http.StatusOK, "jornada closed", result)
}

// GetOpen returns the open shift, if any
func (h *JornadaHandler) GetOpen(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	idx, err := h.ledger.GetOpen(c.Request.Context(), rec.Initials)
	if err != nil {
		response.Fail(c, "failed to get open jornada", err)
		return
	}

	response.Success(c, http.StatusOK, "open jornada retrieved", gin.H{
		"open":  idx != nil,
		"index": idx,
	})
}

// GetLast returns the most recently closed shift across the user's companies
func (h *JornadaHandler) GetLast(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	last, err := h.ledger.GetLast(c.Request.Context(), rec.Initials, rec.CompanyNames())
	if err != nil {
		response.Fail(c, "failed to get last jornada", err)
		return
	}

	response.Success(c, http.StatusOK, "last jornada retrieved", gin.H{"last": last})
}
