package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

const (
	defaultSearchK = 3
	maxSearchK     = 50
)

type QAHandler struct {
	svc *service.RetrievalService
}

func NewQAHandler(svc *service.RetrievalService) *QAHandler {
	return &QAHandler{svc: svc}
}

type chatRequest struct {
	Question string `json:"question"`
}

type searchRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

type searchItem struct {
	Position int     `json:"position"`
	Source   string  `json:"source"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

func (h *QAHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	answer, err := h.svc.Answer(c.Request.Context(), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"answer": answer})
}

func (h *QAHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	k := req.K
	if k <= 0 {
		k = defaultSearchK
	}
	if k > maxSearchK {
		k = maxSearchK
	}
	top, err := h.svc.Search(c.Request.Context(), req.Question, k)
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]searchItem, 0, len(top))
	for _, cand := range top {
		items = append(items, searchItem{
			Position: cand.Segment.Position,
			Source:   cand.Segment.Source,
			Text:     cand.Segment.Text,
			Score:    cand.Score,
		})
	}
	response.Success(c, gin.H{"items": items})
}

func (h *QAHandler) Reload(c *gin.Context) {
	res, err := h.svc.Reload(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"status":     "Documents reloaded successfully",
		"chunkCount": res.ChunkCount,
		"documents":  res.Documents,
		"generation": res.Generation,
	})
}

func (h *QAHandler) Status(c *gin.Context) {
	response.Success(c, h.svc.Status())
}
