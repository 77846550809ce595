package types

import (
	"time"

	"github.com/google/uuid"
)

// ConvertGuestRequest is the body of the guest conversion endpoint.
type ConvertGuestRequest struct {
	GuestID         uuid.UUID `json:"guestId" binding:"required"`
	ConversionToken string    `json:"conversionToken" binding:"required"`
}

// ConvertGuestResponse reports a conversion outcome.
type ConvertGuestResponse struct {
	Outcome string `json:"outcome"`
	UserID  string `json:"userId,omitempty"`
}

// IdentityResponse describes the resolved identity of the caller. Guests get
// their conversion token so the client can claim their data at sign-up.
type IdentityResponse struct {
	Kind            OwnerKind  `json:"kind"`
	UserID          string     `json:"userId,omitempty"`
	Email           string     `json:"email,omitempty"`
	GuestID         *uuid.UUID `json:"guestId,omitempty"`
	ConversionToken string     `json:"conversionToken,omitempty"`
}

// CreateRecipeRequest represents the request body for creating a recipe
type CreateRecipeRequest struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Description  string   `json:"description"`
	Category     string   `json:"category" binding:"max=50"`
	Cuisine      string   `json:"cuisine" binding:"max=50"`
	ImageURL     string   `json:"image_url" binding:"max=255"`
	Ingredients  []string `json:"ingredients" binding:"required"`
	Instructions []string `json:"instructions" binding:"required"`
	Calories     float64  `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
}

// CreateConversationRequest starts a recipe chat.
type CreateConversationRequest struct {
	Title string `json:"title" binding:"max=200"`
}

// AppendMessageRequest adds a message to a conversation.
type AppendMessageRequest struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

// MealPlanEntryRequest places a recipe on a day and meal slot.
type MealPlanEntryRequest struct {
	Day      time.Time  `json:"day" binding:"required"`
	Meal     string     `json:"meal" binding:"required,oneof=breakfast lunch dinner snack"`
	RecipeID *uuid.UUID `json:"recipe_id"`
	Note     string     `json:"note" binding:"max=255"`
}

// CreateMealPlanRequest creates a meal plan with optional entries.
type CreateMealPlanRequest struct {
	Name      string                 `json:"name" binding:"required,max=200"`
	StartDate time.Time              `json:"start_date" binding:"required"`
	Entries   []MealPlanEntryRequest `json:"entries" binding:"dive"`
}

// CreateGroceryListRequest creates a grocery list.
type CreateGroceryListRequest struct {
	Name       string     `json:"name" binding:"required,max=200"`
	MealPlanID *uuid.UUID `json:"meal_plan_id"`
	Items      []string   `json:"items"`
}
