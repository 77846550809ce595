package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

type ConversationHandler struct {
	records *service.RecordService
}

func NewConversationHandler(records *service.RecordService) *ConversationHandler {
	return &ConversationHandler{records: records}
}

func (h *ConversationHandler) RegisterRoutes(router *gin.RouterGroup) {
	conversations := router.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.POST("", h.CreateConversation)
		conversations.GET("/:id", h.GetConversation)
		conversations.DELETE("/:id", h.DeleteConversation)
		conversations.POST("/:id/messages", h.AppendMessage)
	}
}

func (h *ConversationHandler) ListConversations(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	conversations, err := h.records.ListConversations(c.Request.Context(), o)
	if err != nil {
		recordError(c, "conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	var req types.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conversation, err := h.records.CreateConversation(c.Request.Context(), o, req)
	if err != nil {
		recordError(c, "conversation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conversation})
}

func (h *ConversationHandler) GetConversation(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	conversation, err := h.records.GetConversation(c.Request.Context(), o, id)
	if err != nil {
		recordError(c, "conversation", err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.records.DeleteConversation(c.Request.Context(), o, id); err != nil {
		recordError(c, "conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AppendMessage stores a chat message. Generating the assistant reply is
// the LLM client's job; this only persists what it is given.
func (h *ConversationHandler) AppendMessage(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req types.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.records.AppendMessage(c.Request.Context(), o, id, req)
	if err != nil {
		recordError(c, "conversation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
