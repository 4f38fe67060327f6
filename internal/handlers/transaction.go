package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradepost/composite-backend/internal/clients/transactionsvc"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

type TransactionHandler struct {
	transactionService services.TransactionService
}

func NewTransactionHandler(transactionService services.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

func (th *TransactionHandler) Create(c *gin.Context) {
	var body services.TransactionCreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	txn, err := th.transactionService.Create(c.Request.Context(), body, c.GetHeader("X-Idempotency-Key"))
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (th *TransactionHandler) Get(c *gin.Context) {
	transactionID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	txn, err := th.transactionService.Get(c.Request.Context(), transactionID)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, txn)
}

func (th *TransactionHandler) ListMine(c *gin.Context) {
	skip, limit := pagination(c)
	filter := services.TransactionListFilter{Skip: skip, Limit: limit}
	if raw := c.Query("item_id"); raw != "" {
		itemID, err := uuid.Parse(raw)
		if err != nil {
			Respond(c, apierr.Validation(fmt.Errorf("item_id is not a valid uuid")))
			return
		}
		filter.ItemID = &itemID
	}
	if raw := c.Query("status"); raw != "" {
		status := transactionsvc.TransactionStatus(raw)
		switch status {
		case transactionsvc.StatusPending, transactionsvc.StatusAccepted,
			transactionsvc.StatusRejected, transactionsvc.StatusCanceled:
			filter.Status = &status
		default:
			Respond(c, apierr.Validation(fmt.Errorf("unknown status %q", raw)))
			return
		}
	}
	txns, err := th.transactionService.ListMine(c.Request.Context(), filter)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"transactions": txns})
}

func (th *TransactionHandler) UpdateStatus(c *gin.Context) {
	transactionID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	var body struct {
		Status transactionsvc.TransactionStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	txn, err := th.transactionService.UpdateStatus(c.Request.Context(), transactionID, body.Status)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, txn)
}

func (th *TransactionHandler) Delete(c *gin.Context) {
	transactionID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	if err := th.transactionService.Delete(c.Request.Context(), transactionID); err != nil {
		Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
