package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

type MessagingHandler struct {
	messagingService services.MessagingService
}

func NewMessagingHandler(messagingService services.MessagingService) *MessagingHandler {
	return &MessagingHandler{messagingService: messagingService}
}

func (mh *MessagingHandler) CreateThread(c *gin.Context) {
	var body services.ThreadCreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	thread, err := mh.messagingService.CreateThread(c.Request.Context(), body)
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (mh *MessagingHandler) ListThreads(c *gin.Context) {
	threads, err := mh.messagingService.ListThreads(c.Request.Context())
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"threads": threads})
}

func (mh *MessagingHandler) GetThread(c *gin.Context) {
	threadID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	thread, err := mh.messagingService.GetThread(c.Request.Context(), threadID)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, thread)
}

func (mh *MessagingHandler) SendMessage(c *gin.Context) {
	threadID, err := pathUUID(c, "thread_id")
	if err != nil {
		Respond(c, err)
		return
	}
	var body services.MessageSendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	msg, err := mh.messagingService.SendMessage(c.Request.Context(), threadID, body)
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (mh *MessagingHandler) GetMessages(c *gin.Context) {
	threadID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	msgs, err := mh.messagingService.GetMessages(c.Request.Context(), threadID)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": msgs})
}
