package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/middleware"
	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// CookieExpirer builds the Set-Cookie that clears the guest cookie.
type CookieExpirer interface {
	Expired(r *http.Request) *http.Cookie
}

// IdentityHandler exposes the caller's identity and guest conversion.
type IdentityHandler struct {
	conversion service.IConversionService
	cookies    CookieExpirer
}

func NewIdentityHandler(conversion service.IConversionService, cookies CookieExpirer) *IdentityHandler {
	return &IdentityHandler{conversion: conversion, cookies: cookies}
}

// GetIdentity returns the resolved owner. Guests also receive their
// conversion token; the cookie is HttpOnly so this is the only way the
// client can learn it.
func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}

	resp := types.IdentityResponse{Kind: o.Kind}
	if o.IsUser() {
		resp.UserID = o.UserID
		resp.Email = c.GetString(middleware.EmailKey)
	} else {
		id := o.GuestID
		resp.GuestID = &id
		resp.ConversionToken = o.Secret
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

// ConvertGuest moves a guest's records to the authenticated caller.
func (h *IdentityHandler) ConvertGuest(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	if !o.IsUser() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req types.ConvertGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.conversion.Convert(c.Request.Context(), service.ConvertRequest{
		UserID:    o.UserID,
		GuestID:   req.GuestID,
		Secret:    req.ConversionToken,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert guest"})
		return
	}

	resp := types.ConvertGuestResponse{Outcome: string(outcome)}
	switch outcome {
	case service.Converted, service.AlreadyConvertedToSameUser:
		resp.UserID = o.UserID
		http.SetCookie(c.Writer, h.cookies.Expired(c.Request))
		c.JSON(http.StatusOK, resp)
	case service.GuestNotFound:
		c.JSON(http.StatusNotFound, resp)
	case service.InvalidSecret:
		c.JSON(http.StatusForbidden, resp)
	case service.AlreadyConvertedToDifferentUser:
		c.JSON(http.StatusConflict, resp)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert guest"})
	}
}
