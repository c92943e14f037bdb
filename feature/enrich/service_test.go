package enrich

import (
	"context"
	"testing"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/database"
	"catalog-sync/core/linkstore"
	"catalog-sync/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Bootstrap(db, models.All()...))
	links := linkstore.New(linkstore.Config{}, zap.NewNop())
	return NewService(db, links, zap.NewNop()), db
}

func seedProduct(t *testing.T, db *gorm.DB, id string, pricePerLitre float64) {
	t.Helper()
	row := models.ProductRowFrom(catalog.Product{
		ID: id, Name: "Beer " + id, Category: "beer",
		Price: pricePerLitre / 2, Volume: 0.5, PricePerLitre: pricePerLitre,
		Available: true,
	}, time.Now())
	require.NoError(t, db.Create(&row).Error)
}

func seedBeer(t *testing.T, db *gorm.DB, id string, rating float64) {
	t.Helper()
	row := models.ExternalBeerRowFrom(catalog.ExternalBeer{
		ID: id, Name: "External " + id, Brewery: "Brew Co", Rating: rating,
	}, time.Now())
	require.NoError(t, db.Create(&row).Error)
}

func seedLink(t *testing.T, db *gorm.DB, productID, externalID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.LinkRow{
		ProductID: productID, ExternalID: externalID,
		Confidence: 0.8, Method: catalog.MethodFuzzy, Status: catalog.StatusActive,
		CreatedAt: time.Now(), ReaffirmedAt: time.Now(),
	}).Error)
}

func TestGetEnrichedProduct(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedBeer(t, db, "B1", 4.0)
	seedLink(t, db, "P1", "B1")

	enriched, err := svc.GetEnrichedProduct(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "P1", enriched.Product.ID)
	require.NotNil(t, enriched.Link)
	assert.Equal(t, "B1", enriched.Link.ExternalID)
	require.NotNil(t, enriched.Beer)
	assert.Equal(t, 4.0, enriched.Beer.Rating)
	assert.Equal(t, catalog.ValueScore(4.0, 200), enriched.ValueScore)
}

func TestGetEnrichedProductWithoutLink(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)

	enriched, err := svc.GetEnrichedProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Nil(t, enriched.Link)
	assert.Nil(t, enriched.Beer)
	assert.Zero(t, enriched.ValueScore)
}

func TestGetEnrichedProductUnknown(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.GetEnrichedProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListActiveLinks(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedBeer(t, db, "B1", 4.2)
	seedLink(t, db, "P1", "B1")
	seedProduct(t, db, "P2", 150)
	seedLink(t, db, "P2", "B2") // beer not cached yet

	views, err := svc.ListActiveLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "Beer P1", views[0].ProductName)
	assert.Equal(t, "External B1", views[0].BeerName)
	assert.Equal(t, 4.2, views[0].Rating)
	assert.Empty(t, views[1].BeerName)
}

func TestChangeEventsDefaultsToLatestCycle(t *testing.T) {
	svc, db := testService(t)
	now := time.Now()

	older := models.ChangeEventRowFrom("c1", catalog.ChangeEvent{
		ProductID: "P1", Kind: catalog.ChangeNew, PulledAt: now.Add(-time.Hour),
	})
	newer := models.ChangeEventRowFrom("c2", catalog.ChangeEvent{
		ProductID: "P2", Kind: catalog.ChangePrice, Before: "100", After: "90", PulledAt: now,
	})
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, db.Create(&newer).Error)

	events, err := svc.ChangeEvents(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "P2", events[0].ProductID)

	events, err = svc.ChangeEvents(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "P1", events[0].ProductID)
}

func TestChangeEventsEmptyDatabase(t *testing.T) {
	svc, _ := testService(t)
	events, err := svc.ChangeEvents(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOverrideAndRejectLink(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedLink(t, db, "P1", "B1")

	require.NoError(t, svc.OverrideLink(context.Background(), "P1", "B9"))
	enriched, err := svc.GetEnrichedProduct(context.Background(), "P1")
	require.NoError(t, err)
	require.NotNil(t, enriched.Link)
	assert.Equal(t, "B9", enriched.Link.ExternalID)
	assert.Equal(t, catalog.MethodManual, enriched.Link.Method)

	assert.ErrorIs(t, svc.OverrideLink(context.Background(), "nope", "B9"), catalog.ErrNotFound)

	require.NoError(t, svc.RejectLink(context.Background(), "P1"))
	enriched, err = svc.GetEnrichedProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Nil(t, enriched.Link)
}
