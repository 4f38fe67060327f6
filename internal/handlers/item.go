package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

type ItemHandler struct {
	itemService services.ItemService
	jobService  services.JobService
}

func NewItemHandler(itemService services.ItemService, jobService services.JobService) *ItemHandler {
	return &ItemHandler{itemService: itemService, jobService: jobService}
}

func pagination(c *gin.Context) (int, int) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return skip, limit
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apierr.Validation(fmt.Errorf("%s is not a valid uuid", name))
	}
	return id, nil
}

func (ih *ItemHandler) List(c *gin.Context) {
	skip, limit := pagination(c)
	items, err := ih.itemService.ListPublic(c.Request.Context(), skip, limit)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}

func (ih *ItemHandler) Get(c *gin.Context) {
	itemID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	item, etag, err := ih.itemService.GetPublic(c.Request.Context(), itemID)
	if err != nil {
		Respond(c, err)
		return
	}
	c.Header("ETag", etag)
	RespondOK(c, item)
}

func (ih *ItemHandler) Categories(c *gin.Context) {
	categories, err := ih.itemService.Categories(c.Request.Context())
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"categories": categories})
}

// Submit accepts the creation request and returns 202 with the job handle;
// the item materializes asynchronously on the item service.
func (ih *ItemHandler) Submit(c *gin.Context) {
	var body itemsvc.ItemCreate
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	job, err := ih.jobService.Submit(c.Request.Context(), body)
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (ih *ItemHandler) PollJob(c *gin.Context) {
	jobID, err := pathUUID(c, "job_id")
	if err != nil {
		Respond(c, err)
		return
	}
	job, err := ih.jobService.Poll(c.Request.Context(), jobID)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, job)
}

func (ih *ItemHandler) ListMine(c *gin.Context) {
	skip, limit := pagination(c)
	items, err := ih.itemService.ListMine(c.Request.Context(), skip, limit)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}

func (ih *ItemHandler) Update(c *gin.Context) {
	itemID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	var body itemsvc.ItemUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	item, etag, err := ih.itemService.Update(c.Request.Context(), itemID, c.GetHeader("If-Match"), body)
	if err != nil {
		Respond(c, err)
		return
	}
	c.Header("ETag", etag)
	RespondOK(c, item)
}

func (ih *ItemHandler) Delete(c *gin.Context) {
	itemID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	if err := ih.itemService.Delete(c.Request.Context(), itemID); err != nil {
		Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
