package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svs-mapping/internal/mapping/model"
)

func openTest(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2025, 10, 30, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func price(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	sum, err := s.UpsertProducts(context.Background(), []model.Product{
		{Name: "Молоко 2.5%", Category: "Молочные продукты", Code: "M-1", Unit: "л", Price: price("89.90")},
		{Name: "Хлеб", Code: "H-1"},
		{Name: "Сахар"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, sum.Created)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "whatever")
	assert.Error(t, err)
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	s, now := openTest(t)
	seed(t, s)
	require.NoError(t, s.Ping(ctx))

	products, err := s.ActiveProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Молоко 2.5%", products[0].Name)
	assert.Equal(t, "л", products[0].Unit)
	assert.True(t, products[0].Price.Valid)
	assert.True(t, products[0].Price.Decimal.Equal(decimal.RequireFromString("89.9")))
	assert.True(t, products[0].IsActive)
	assert.Equal(t, *now, products[0].CreatedAt)
	assert.False(t, products[2].Price.Valid)

	t.Run("reimport updates by code or name", func(t *testing.T) {
		*now = now.Add(time.Hour)
		sum, err := s.UpsertProducts(ctx, []model.Product{
			{Name: "Молоко 2,5% пастер.", Code: "M-1"},
			{Name: "Сахар", Unit: "кг"},
			{Name: "Кефир"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.ImportSummary{Total: 3, Created: 1, Updated: 2}, sum)

		p, err := s.Product(ctx, products[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Молоко 2,5% пастер.", p.Name)
		assert.True(t, p.Price.Valid, "price is kept when the file has none")
		assert.Equal(t, *now, p.UpdatedAt)
	})

	t.Run("global code", func(t *testing.T) {
		require.NoError(t, s.SetGlobalCode(ctx, products[1].ID, "620001"))
		p, err := s.Product(ctx, products[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "620001", p.SvsCode)

		assert.ErrorIs(t, s.SetGlobalCode(ctx, 9999, "1"), model.ErrNotFound)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := s.Product(ctx, 9999)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	s, now := openTest(t)
	seed(t, s)

	_, found, err := s.Override(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, found)

	created := *now
	require.NoError(t, s.UpsertOverride(ctx, model.Override{OrganizationID: 7, ProductID: 1, SvsCode: "610001", IsActive: true}))

	*now = now.Add(time.Hour)
	require.NoError(t, s.UpsertOverride(ctx, model.Override{
		OrganizationID: 7, ProductID: 1, SvsCode: "610002", IsManual: true, LocalPrice: price("95.00"), IsActive: true,
	}))
	require.NoError(t, s.UpsertOverride(ctx, model.Override{OrganizationID: 8, ProductID: 1, SvsCode: "610001", IsActive: true}))

	o, found, err := s.Override(ctx, 7, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "610002", o.SvsCode)
	assert.True(t, o.IsManual)
	assert.True(t, o.LocalPrice.Decimal.Equal(decimal.RequireFromString("95")))
	assert.Equal(t, created, o.CreatedAt)
	assert.Equal(t, *now, o.UpdatedAt)

	all, err := s.Overrides(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, int64(1))
}

func TestCatalogUpdates(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t)
	org := int64(7)
	base := time.Date(2025, 10, 30, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		u := model.CatalogUpdate{
			ID:              id,
			UpdateDate:      base.Add(time.Duration(i) * time.Minute),
			TotalMaterials:  100,
			MappedMaterials: 10 * i,
			UpdateSource:    "api",
		}
		if i == 2 {
			u.OrganizationID = &org
			u.Notes = "ноябрь"
		}
		require.NoError(t, s.AddCatalogUpdate(ctx, u))
	}

	ups, err := s.CatalogUpdates(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ups, 2)
	assert.Equal(t, "c", ups[0].ID)
	assert.Equal(t, "b", ups[1].ID)
	require.NotNil(t, ups[0].OrganizationID)
	assert.Equal(t, org, *ups[0].OrganizationID)
	assert.Equal(t, "ноябрь", ups[0].Notes)
	assert.Nil(t, ups[1].OrganizationID)
	assert.Equal(t, base.Add(2*time.Minute), ups[0].UpdateDate)
}

func TestTimeLayoutSorts(t *testing.T) {
	a := formatTime(time.Date(2025, 1, 1, 0, 0, 0, 500, time.UTC))
	b := formatTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Second))
	assert.Less(t, a, b)
	assert.Equal(t, len(a), len(b))
}
