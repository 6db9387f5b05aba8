package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"community-energy/internal/api/models"
	"community-energy/internal/ledger"

	"github.com/gin-gonic/gin"
)

const defaultBlockPageSize = 50

// LedgerHandler serves read-only views of the ledger
type LedgerHandler struct {
	ledger *ledger.Ledger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// ListBlocks handles GET /api/v1/ledger/blocks
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	var req models.BlockListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultBlockPageSize
	}

	blocks := h.ledger.Blocks()
	resp := models.BlockListResponse{
		Blocks: []models.BlockInfo{},
		Total:  len(blocks),
		Offset: req.Offset,
		Limit:  req.Limit,
	}
	if req.Offset < len(blocks) {
		end := min(req.Offset+req.Limit, len(blocks))
		for _, b := range blocks[req.Offset:end] {
			resp.Blocks = append(resp.Blocks, blockInfo(b))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetBlock handles GET /api/v1/ledger/blocks/:index
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		writeError(c, http.StatusBadRequest, "INVALID_INDEX", errors.New("block index must be a non-negative integer"))
		return
	}
	b, ok := h.ledger.Block(idx)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "BLOCK_NOT_FOUND",
				Message: "block not found",
				Details: map[string]interface{}{"index": idx, "length": h.ledger.Len()},
			},
		})
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListPending handles GET /api/v1/ledger/pending
func (h *LedgerHandler) ListPending(c *gin.Context) {
	pending := h.ledger.Pending()
	if pending == nil {
		pending = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": pending})
}

// Verify handles GET /api/v1/ledger/verify
func (h *LedgerHandler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, h.verifyResponse())
}

// Health handles GET /health
func (h *LedgerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:       "ok",
		LedgerLength: h.ledger.Len(),
		LedgerValid:  h.ledger.Valid(),
	})
}

func (h *LedgerHandler) verifyResponse() models.VerifyResponse {
	resp := models.VerifyResponse{
		Valid:  true,
		Length: h.ledger.Len(),
		Head:   h.ledger.Latest().Hash,
	}
	if err := h.ledger.Verify(); err != nil {
		resp.Valid = false
		var ie *ledger.IntegrityError
		if errors.As(err, &ie) {
			resp.Error = &models.IntegrityIssue{Index: ie.Index, Reason: ie.Reason}
		} else {
			resp.Error = &models.IntegrityIssue{Index: -1, Reason: err.Error()}
		}
	}
	return resp
}

func blockInfo(b ledger.Block) models.BlockInfo {
	return models.BlockInfo{
		Index:        b.Index,
		Hash:         b.Hash,
		PrevHash:     b.PrevHash,
		Timestamp:    b.Timestamp,
		Transactions: len(b.Transactions),
	}
}
