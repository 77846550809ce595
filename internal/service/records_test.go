package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/testhelpers"
	"github.com/pageza/mealplanner/backend/internal/types"
)

func TestConversationsAreScopedToOwner(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRecordService(db)
	ctx := context.Background()

	g1 := testhelpers.CreateGuest(t, db, "s1")
	g2 := testhelpers.CreateGuest(t, db, "s2")
	alice := types.GuestOwner(g1.ID, "s1")
	bob := types.GuestOwner(g2.ID, "s2")

	conv, err := svc.CreateConversation(ctx, alice, types.CreateConversationRequest{Title: "dinner ideas"})
	require.NoError(t, err)
	assert.True(t, conv.Ownership.Valid())

	_, err = svc.AppendMessage(ctx, alice, conv.ID, types.AppendMessageRequest{Role: "user", Content: "something with lentils"})
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, alice, conv.ID, types.AppendMessageRequest{Role: "assistant", Content: "dal"})
	require.NoError(t, err)

	got, err := svc.GetConversation(ctx, alice, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)

	_, err = svc.GetConversation(ctx, bob, conv.ID)
	assert.ErrorIs(t, err, service.ErrRecordNotFound)
	_, err = svc.AppendMessage(ctx, bob, conv.ID, types.AppendMessageRequest{Role: "user", Content: "hi"})
	assert.ErrorIs(t, err, service.ErrRecordNotFound)
	assert.ErrorIs(t, svc.DeleteConversation(ctx, bob, conv.ID), service.ErrRecordNotFound)

	list, err := svc.ListConversations(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, svc.DeleteConversation(ctx, alice, conv.ID))
	var messages int64
	require.NoError(t, db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&messages).Error)
	assert.Zero(t, messages)
	assert.ErrorIs(t, svc.DeleteConversation(ctx, alice, conv.ID), service.ErrRecordNotFound)
}

func TestMealPlanReferencesOwnRecipesOnly(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRecordService(db)
	ctx := context.Background()

	testhelpers.CreateProfile(t, db, "user-1")
	testhelpers.CreateProfile(t, db, "user-2")
	me := types.UserOwner("user-1")
	other := types.UserOwner("user-2")
	mine := testhelpers.CreateRecipe(t, db, me, "pasta")
	theirs := testhelpers.CreateRecipe(t, db, other, "curry")
	monday := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateMealPlan(ctx, me, types.CreateMealPlanRequest{
		Name:      "stolen",
		StartDate: monday,
		Entries:   []types.MealPlanEntryRequest{{Day: monday, Meal: "dinner", RecipeID: &theirs.ID}},
	})
	assert.ErrorIs(t, err, service.ErrForeignRecord)

	plan, err := svc.CreateMealPlan(ctx, me, types.CreateMealPlanRequest{
		Name:      "week 19",
		StartDate: monday,
		Entries: []types.MealPlanEntryRequest{
			{Day: monday.AddDate(0, 0, 1), Meal: "lunch", RecipeID: &mine.ID},
			{Day: monday, Meal: "dinner", RecipeID: &mine.ID},
			{Day: monday, Meal: "breakfast", Note: "oats"},
		},
	})
	require.NoError(t, err)

	got, err := svc.GetMealPlan(ctx, me, plan.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.True(t, got.Entries[0].Day.Equal(monday))

	require.NoError(t, svc.DeleteRecipe(ctx, me, mine.ID))
	got, err = svc.GetMealPlan(ctx, me, plan.ID)
	require.NoError(t, err)
	for _, e := range got.Entries {
		assert.Nil(t, e.RecipeID)
	}
}

func TestGroceryLists(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRecordService(db)
	ctx := context.Background()

	testhelpers.CreateProfile(t, db, "user-1")
	me := types.UserOwner("user-1")
	guest := testhelpers.CreateGuest(t, db, "s1")
	stranger := types.GuestOwner(guest.ID, "s1")

	plan, err := svc.CreateMealPlan(ctx, stranger, types.CreateMealPlanRequest{Name: "theirs", StartDate: time.Now()})
	require.NoError(t, err)
	_, err = svc.CreateGroceryList(ctx, me, types.CreateGroceryListRequest{Name: "x", MealPlanID: &plan.ID})
	assert.ErrorIs(t, err, service.ErrForeignRecord)

	list, err := svc.CreateGroceryList(ctx, me, types.CreateGroceryListRequest{Name: "market", Items: []string{"eggs", "milk"}})
	require.NoError(t, err)

	got, err := svc.GetGroceryList(ctx, me, list.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JSONBStringArray{"eggs", "milk"}, got.Items)

	lists, err := svc.ListGroceryLists(ctx, me)
	require.NoError(t, err)
	assert.Len(t, lists, 1)

	require.NoError(t, svc.DeleteGroceryList(ctx, me, list.ID))
	_, err = svc.GetGroceryList(ctx, me, list.ID)
	assert.ErrorIs(t, err, service.ErrRecordNotFound)
}

func TestUnresolvedOwnerIsRejected(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRecordService(db)
	ctx := context.Background()

	_, err := svc.ListRecipes(ctx, types.Owner{})
	assert.ErrorIs(t, err, service.ErrInvalidOwner)
	_, err = svc.CreateRecipe(ctx, types.GuestOwner(uuid.Nil, ""), types.CreateRecipeRequest{Name: "x"})
	assert.ErrorIs(t, err, service.ErrInvalidOwner)
}
