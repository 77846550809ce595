package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

type RecipeHandler struct {
	records *service.RecordService
}

func NewRecipeHandler(records *service.RecordService) *RecipeHandler {
	return &RecipeHandler{records: records}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.POST("", h.CreateRecipe)
		recipes.GET("/:id", h.GetRecipe)
		recipes.DELETE("/:id", h.DeleteRecipe)
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	recipes, err := h.records.ListRecipes(c.Request.Context(), o)
	if err != nil {
		recordError(c, "recipe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	var req types.CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipe, err := h.records.CreateRecipe(c.Request.Context(), o, req)
	if err != nil {
		recordError(c, "recipe", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	recipe, err := h.records.GetRecipe(c.Request.Context(), o, id)
	if err != nil {
		recordError(c, "recipe", err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.records.DeleteRecipe(c.Request.Context(), o, id); err != nil {
		recordError(c, "recipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}
