package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// MealPlanHandler serves meal plans and grocery lists.
type MealPlanHandler struct {
	records *service.RecordService
}

func NewMealPlanHandler(records *service.RecordService) *MealPlanHandler {
	return &MealPlanHandler{records: records}
}

func (h *MealPlanHandler) RegisterRoutes(router *gin.RouterGroup) {
	plans := router.Group("/meal-plans")
	{
		plans.GET("", h.ListMealPlans)
		plans.POST("", h.CreateMealPlan)
		plans.GET("/:id", h.GetMealPlan)
		plans.DELETE("/:id", h.DeleteMealPlan)
	}

	lists := router.Group("/grocery-lists")
	{
		lists.GET("", h.ListGroceryLists)
		lists.POST("", h.CreateGroceryList)
		lists.GET("/:id", h.GetGroceryList)
		lists.DELETE("/:id", h.DeleteGroceryList)
	}
}

func (h *MealPlanHandler) ListMealPlans(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	plans, err := h.records.ListMealPlans(c.Request.Context(), o)
	if err != nil {
		recordError(c, "meal plan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_plans": plans})
}

func (h *MealPlanHandler) CreateMealPlan(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	var req types.CreateMealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.records.CreateMealPlan(c.Request.Context(), o, req)
	if err != nil {
		recordError(c, "meal plan", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meal_plan": plan})
}

func (h *MealPlanHandler) GetMealPlan(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	plan, err := h.records.GetMealPlan(c.Request.Context(), o, id)
	if err != nil {
		recordError(c, "meal plan", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MealPlanHandler) DeleteMealPlan(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.records.DeleteMealPlan(c.Request.Context(), o, id); err != nil {
		recordError(c, "meal plan", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MealPlanHandler) ListGroceryLists(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	lists, err := h.records.ListGroceryLists(c.Request.Context(), o)
	if err != nil {
		recordError(c, "grocery list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grocery_lists": lists})
}

func (h *MealPlanHandler) CreateGroceryList(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	var req types.CreateGroceryListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.records.CreateGroceryList(c.Request.Context(), o, req)
	if err != nil {
		recordError(c, "grocery list", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"grocery_list": list})
}

func (h *MealPlanHandler) GetGroceryList(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.records.GetGroceryList(c.Request.Context(), o, id)
	if err != nil {
		recordError(c, "grocery list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MealPlanHandler) DeleteGroceryList(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.records.DeleteGroceryList(c.Request.Context(), o, id); err != nil {
		recordError(c, "grocery list", err)
		return
	}
	c.Status(http.StatusNoContent)
}
