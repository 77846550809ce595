package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/types"
)

var (
	// ErrRecordNotFound covers both missing records and records of another
	// owner; callers cannot tell the two apart.
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidOwner   = errors.New("owner is not resolved")
	ErrForeignRecord  = errors.New("referenced record does not belong to the owner")
)

// RecordService is the CRUD layer for owned records. Every query is scoped
// to the resolved owner.
type RecordService struct {
	db *gorm.DB
}

func NewRecordService(db *gorm.DB) *RecordService {
	return &RecordService{db: db}
}

func (s *RecordService) CreateConversation(ctx context.Context, owner types.Owner, req types.CreateConversationRequest) (*models.Conversation, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	conv := &models.Conversation{Ownership: models.OwnedBy(owner), Title: req.Title}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *RecordService) ListConversations(ctx context.Context, owner types.Owner) ([]models.Conversation, error) {
	return listOwned[models.Conversation](ctx, s.db, owner)
}

func (s *RecordService) GetConversation(ctx context.Context, owner types.Owner, id uuid.UUID) (*models.Conversation, error) {
	return getOwned[models.Conversation](ctx, s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}), owner, id)
}

// AppendMessage adds a message to one of owner's conversations.
func (s *RecordService) AppendMessage(ctx context.Context, owner types.Owner, conversationID uuid.UUID, req types.AppendMessageRequest) (*models.Message, error) {
	var msg *models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOwned[models.Conversation](ctx, tx, owner, conversationID); err != nil {
			return err
		}
		msg = &models.Message{ConversationID: conversationID, Role: req.Role, Content: req.Content}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *RecordService) DeleteConversation(ctx context.Context, owner types.Owner, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOwned[models.Conversation](ctx, tx, owner, id); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return deleteOwned[models.Conversation](ctx, tx, owner, id)
	})
}

func (s *RecordService) CreateRecipe(ctx context.Context, owner types.Owner, req types.CreateRecipeRequest) (*models.Recipe, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	recipe := &models.Recipe{
		Ownership:    models.OwnedBy(owner),
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		Cuisine:      req.Cuisine,
		ImageURL:     req.ImageURL,
		Ingredients:  models.JSONBStringArray(req.Ingredients),
		Instructions: models.JSONBStringArray(req.Instructions),
		Calories:     req.Calories,
		Protein:      req.Protein,
		Carbs:        req.Carbs,
		Fat:          req.Fat,
	}
	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return recipe, nil
}

func (s *RecordService) ListRecipes(ctx context.Context, owner types.Owner) ([]models.Recipe, error) {
	return listOwned[models.Recipe](ctx, s.db, owner)
}

func (s *RecordService) GetRecipe(ctx context.Context, owner types.Owner, id uuid.UUID) (*models.Recipe, error) {
	return getOwned[models.Recipe](ctx, s.db, owner, id)
}

func (s *RecordService) DeleteRecipe(ctx context.Context, owner types.Owner, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOwned[models.Recipe](ctx, tx, owner, id); err != nil {
			return err
		}
		if err := tx.Model(&models.MealPlanEntry{}).
			Where("recipe_id = ?", id).
			Update("recipe_id", nil).Error; err != nil {
			return fmt.Errorf("detach recipe from meal plans: %w", err)
		}
		return deleteOwned[models.Recipe](ctx, tx, owner, id)
	})
}

// CreateMealPlan creates a plan and its entries. Entries may only reference
// recipes of the same owner.
func (s *RecordService) CreateMealPlan(ctx context.Context, owner types.Owner, req types.CreateMealPlanRequest) (*models.MealPlan, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	plan := &models.MealPlan{
		Ownership: models.OwnedBy(owner),
		Name:      req.Name,
		StartDate: req.StartDate,
	}

	var recipeIDs []uuid.UUID
	for _, e := range req.Entries {
		plan.Entries = append(plan.Entries, models.MealPlanEntry{
			Day:      e.Day,
			Meal:     e.Meal,
			RecipeID: e.RecipeID,
			Note:     e.Note,
		})
		if e.RecipeID != nil {
			recipeIDs = append(recipeIDs, *e.RecipeID)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownsAll[models.Recipe](tx, owner, recipeIDs); err != nil {
			return err
		}
		if err := tx.Create(plan).Error; err != nil {
			return fmt.Errorf("create meal plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *RecordService) ListMealPlans(ctx context.Context, owner types.Owner) ([]models.MealPlan, error) {
	return listOwned[models.MealPlan](ctx, s.db, owner)
}

func (s *RecordService) GetMealPlan(ctx context.Context, owner types.Owner, id uuid.UUID) (*models.MealPlan, error) {
	return getOwned[models.MealPlan](ctx, s.db.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("day ASC")
	}), owner, id)
}

func (s *RecordService) DeleteMealPlan(ctx context.Context, owner types.Owner, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOwned[models.MealPlan](ctx, tx, owner, id); err != nil {
			return err
		}
		if err := tx.Where("meal_plan_id = ?", id).Delete(&models.MealPlanEntry{}).Error; err != nil {
			return fmt.Errorf("delete meal plan entries: %w", err)
		}
		if err := tx.Model(&models.GroceryList{}).
			Where("meal_plan_id = ?", id).
			Update("meal_plan_id", nil).Error; err != nil {
			return fmt.Errorf("detach grocery lists: %w", err)
		}
		return deleteOwned[models.MealPlan](ctx, tx, owner, id)
	})
}

func (s *RecordService) CreateGroceryList(ctx context.Context, owner types.Owner, req types.CreateGroceryListRequest) (*models.GroceryList, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	list := &models.GroceryList{
		Ownership:  models.OwnedBy(owner),
		MealPlanID: req.MealPlanID,
		Name:       req.Name,
		Items:      models.JSONBStringArray(req.Items),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.MealPlanID != nil {
			if err := ownsAll[models.MealPlan](tx, owner, []uuid.UUID{*req.MealPlanID}); err != nil {
				return err
			}
		}
		if err := tx.Create(list).Error; err != nil {
			return fmt.Errorf("create grocery list: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordService) ListGroceryLists(ctx context.Context, owner types.Owner) ([]models.GroceryList, error) {
	return listOwned[models.GroceryList](ctx, s.db, owner)
}

func (s *RecordService) GetGroceryList(ctx context.Context, owner types.Owner, id uuid.UUID) (*models.GroceryList, error) {
	return getOwned[models.GroceryList](ctx, s.db, owner, id)
}

func (s *RecordService) DeleteGroceryList(ctx context.Context, owner types.Owner, id uuid.UUID) error {
	return deleteOwned[models.GroceryList](ctx, s.db, owner, id)
}

func checkOwner(owner types.Owner) error {
	switch {
	case owner.IsUser() && owner.UserID != "":
		return nil
	case owner.IsGuest() && owner.GuestID != uuid.Nil:
		return nil
	default:
		return ErrInvalidOwner
	}
}

func listOwned[T any](ctx context.Context, db *gorm.DB, owner types.Owner) ([]T, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var out []T
	if err := db.WithContext(ctx).
		Scopes(models.ScopeOwner(owner)).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %T: %w", out, err)
	}
	return out, nil
}

func getOwned[T any](ctx context.Context, db *gorm.DB, owner types.Owner, id uuid.UUID) (*T, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var record T
	err := db.WithContext(ctx).
		Scopes(models.ScopeOwner(owner)).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %T: %w", record, err)
	}
	return &record, nil
}

func deleteOwned[T any](ctx context.Context, db *gorm.DB, owner types.Owner, id uuid.UUID) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Scopes(models.ScopeOwner(owner)).
		Where("id = ?", id).
		Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete %T: %w", new(T), res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ownsAll fails with ErrForeignRecord unless every id is a T of owner.
func ownsAll[T any](db *gorm.DB, owner types.Owner, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	var count int64
	if err := db.Model(new(T)).
		Scopes(models.ScopeOwner(owner)).
		Where("id IN ?", ids).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check ownership: %w", err)
	}
	if count != int64(len(unique)) {
		return ErrForeignRecord
	}
	return nil
}
