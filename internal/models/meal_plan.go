package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MealPlan struct {
	ID        uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	Ownership `gorm:"embedded"`
	Name      string          `gorm:"size:200;not null" json:"name"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	Entries   []MealPlanEntry `gorm:"constraint:OnDelete:CASCADE" json:"entries,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (MealPlan) TableName() string {
	return "meal_plans"
}

func (p *MealPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// MealPlanEntry places a recipe (or a free-form note) on a day and meal.
type MealPlanEntry struct {
	ID         uuid.UUID  `gorm:"type:uuid;primarykey" json:"id"`
	MealPlanID uuid.UUID  `gorm:"type:uuid;not null;index" json:"meal_plan_id"`
	Day        time.Time  `gorm:"not null" json:"day"`
	Meal       string     `gorm:"size:20;not null" json:"meal"`
	RecipeID   *uuid.UUID `gorm:"type:uuid" json:"recipe_id,omitempty"`
	Note       string     `gorm:"size:255" json:"note,omitempty"`
}

func (MealPlanEntry) TableName() string {
	return "meal_plan_entries"
}

func (e *MealPlanEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type GroceryList struct {
	ID         uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	Ownership  `gorm:"embedded"`
	MealPlanID *uuid.UUID       `gorm:"type:uuid" json:"meal_plan_id,omitempty"`
	Name       string           `gorm:"size:200;not null" json:"name"`
	Items      JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"items"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (GroceryList) TableName() string {
	return "grocery_lists"
}

func (g *GroceryList) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
