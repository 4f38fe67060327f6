package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

type AddressHandler struct {
	addressService services.AddressService
}

func NewAddressHandler(addressService services.AddressService) *AddressHandler {
	return &AddressHandler{addressService: addressService}
}

func (ah *AddressHandler) Create(c *gin.Context) {
	var body usersvc.AddressCreate
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	address, err := ah.addressService.Create(c.Request.Context(), body)
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (ah *AddressHandler) ListMine(c *gin.Context) {
	addresses, err := ah.addressService.ListMine(c.Request.Context())
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, gin.H{"addresses": addresses})
}

func (ah *AddressHandler) Update(c *gin.Context) {
	addressID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	var body usersvc.AddressUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation, err)
		return
	}
	address, err := ah.addressService.Update(c.Request.Context(), addressID, body)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, address)
}

func (ah *AddressHandler) Delete(c *gin.Context) {
	addressID, err := pathUUID(c, "id")
	if err != nil {
		Respond(c, err)
		return
	}
	if err := ah.addressService.Delete(c.Request.Context(), addressID); err != nil {
		Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
