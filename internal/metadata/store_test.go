package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

func invoiceRequest() models.CreateEntityTypeRequest {
	return models.CreateEntityTypeRequest{
		Name:        "Invoice",
		Description: "Sales invoice",
		Fields: []models.CreateFieldRequest{
			{Name: "total", Kind: models.KindScalar, DataType: "Float"},
			{Name: "customer", Kind: models.KindLink, DataType: "Link", LinkedType: "Customer"},
			{Kind: models.KindNoValue, DataType: "Section Break"},
			{Name: "items", Kind: models.KindChildCollection, DataType: "Table", LinkedType: "InvoiceItem"},
		},
	}
}

// forEachStore runs the same assertions against both Repository implementations.
func forEachStore(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("Memory", func(t *testing.T) { fn(t, NewStore()) })
	t.Run("DB", func(t *testing.T) { fn(t, NewDBStore(database.NewTestDB(t))) })
}

func TestCreateAndGetEntityType(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		created, err := repo.CreateEntityType(ctx, invoiceRequest())
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		require.Len(t, created.Fields, 4)

		got, err := repo.GetEntityType(ctx, "Invoice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		require.Len(t, got.Fields, 4)
		for i, f := range got.Fields {
			assert.Equal(t, i+1, f.Idx)
		}
		assert.Equal(t, "customer", got.Fields[1].Name)
		assert.Equal(t, "Customer", got.Fields[1].LinkedType)
	})
}

func TestCreateEntityTypeDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, err := repo.CreateEntityType(ctx, invoiceRequest())
		require.NoError(t, err)
		_, err = repo.CreateEntityType(ctx, invoiceRequest())
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}

func TestCreateEntityTypeValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, err := repo.CreateEntityType(ctx, models.CreateEntityTypeRequest{})
		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "name", vErr.Field)

		_, err = repo.CreateEntityType(ctx, models.CreateEntityTypeRequest{
			Name:   "Broken",
			Fields: []models.CreateFieldRequest{{Name: "customer", Kind: models.KindLink}},
		})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "linked_type", vErr.Field)
	})
}

func TestSchemaKeepsDuplicateFieldNames(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, err := repo.CreateEntityType(ctx, models.CreateEntityTypeRequest{Name: "Lead"})
		require.NoError(t, err)
		for _, name := range []string{"email", "email"} {
			_, err := repo.AddField(ctx, "Lead", models.CreateFieldRequest{Name: name, Kind: models.KindScalar})
			require.NoError(t, err)
		}

		fields, err := repo.GetEntitySchema(ctx, "Lead")
		require.NoError(t, err)
		require.Len(t, fields, 2)
		assert.Equal(t, 1, fields[0].Idx)
		assert.Equal(t, 2, fields[1].Idx)
	})
}

func TestGetEntitySchemaUnknownType(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		_, err := repo.GetEntitySchema(context.Background(), "Nope")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDeleteEntityType(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		_, err := repo.CreateEntityType(ctx, invoiceRequest())
		require.NoError(t, err)

		require.NoError(t, repo.DeleteEntityType(ctx, "Invoice"))
		_, err = repo.GetEntityType(ctx, "Invoice")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteEntityType(ctx, "Invoice"), models.ErrNotFound)
	})
}

func TestListEntityTypesSorted(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		for _, name := range []string{"Supplier", "Customer", "Item"} {
			_, err := repo.CreateEntityType(ctx, models.CreateEntityTypeRequest{Name: name})
			require.NoError(t, err)
		}
		list, err := repo.ListEntityTypes(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Customer", list[0].Name)
		assert.Equal(t, "Supplier", list[2].Name)
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, err := store.CreateEntityType(ctx, invoiceRequest())
	require.NoError(t, err)

	fields, err := store.GetEntitySchema(ctx, "Invoice")
	require.NoError(t, err)
	fields[0].Name = "mutated"

	again, err := store.GetEntitySchema(ctx, "Invoice")
	require.NoError(t, err)
	assert.Equal(t, "total", again[0].Name)
}
