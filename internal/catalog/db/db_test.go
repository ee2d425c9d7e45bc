package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterdeck-booking/internal/catalog"
	"quarterdeck-booking/internal/catalog/db"
	"quarterdeck-booking/internal/database"
	"quarterdeck-booking/internal/models"
)

func setupSeededDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()
	bunDB, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, database.CreateSchema(ctx, bunDB))

	store := &db.DB{Bun: bunDB}
	seed := catalog.DefaultSeed(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Seed(ctx, seed.Facilities, seed.AddOns, seed.Tiers, seed.Memberships))
	return store
}

func TestSeedIsIdempotent(t *testing.T) {
	store := setupSeededDB(t)
	ctx := context.Background()

	seed := catalog.DefaultSeed(time.Now())
	require.NoError(t, store.Seed(ctx, seed.Facilities, seed.AddOns, seed.Tiers, seed.Memberships))

	facilities, err := store.ListFacilities(ctx, false)
	require.NoError(t, err)
	assert.Len(t, facilities, len(seed.Facilities))
}

func TestFindFacilityBySlugOrID(t *testing.T) {
	store := setupSeededDB(t)
	ctx := context.Background()

	bySlug, err := store.FindFacility(ctx, "padel-tennis")
	require.NoError(t, err)
	assert.Equal(t, "fac-padel", bySlug.ID)
	assert.Equal(t, 4, bySlug.ResourceCount)

	byID, err := store.FindFacility(ctx, "fac-padel")
	require.NoError(t, err)
	assert.Equal(t, bySlug.Slug, byID.Slug)

	_, err = store.FindFacility(ctx, "curling")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestFindFacilityPrefersIDOverSlug(t *testing.T) {
	store := setupSeededDB(t)
	ctx := context.Background()

	// this facility's id collides with the golf simulator's slug
	annex := models.Facility{ID: "golf-simulator", Slug: "golf-annex", Name: "Golf Annex", HourlyRate: 3000, ResourceCount: 2, Active: true, CreatedAt: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Seed(ctx, []models.Facility{annex}, nil, nil, nil))

	for i := 0; i < 3; i++ {
		f, err := store.FindFacility(ctx, "golf-simulator")
		require.NoError(t, err)
		assert.Equal(t, "golf-simulator", f.ID)
		assert.Equal(t, "golf-annex", f.Slug)
	}

	bySlug, err := store.FindFacility(ctx, "golf-annex")
	require.NoError(t, err)
	assert.Equal(t, "golf-simulator", bySlug.ID)

	seeded, err := store.FindFacility(ctx, "fac-golf")
	require.NoError(t, err)
	assert.Equal(t, "golf-simulator", seeded.Slug)
}

func TestMembershipCarriesHolderAccount(t *testing.T) {
	store := setupSeededDB(t)

	m, err := store.GetMembershipByNumber(context.Background(), "QD-0001")
	require.NoError(t, err)
	assert.Equal(t, "member-alex", m.UserID)
}

func TestAddOnsIncludeGlobalExtras(t *testing.T) {
	store := setupSeededDB(t)
	ctx := context.Background()

	padel, err := store.ListAddOns(ctx, "fac-padel")
	require.NoError(t, err)
	ids := make([]string, 0, len(padel))
	for _, a := range padel {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"addon-racket", "addon-balls", "addon-towel"}, ids)

	got, err := store.GetAddOns(ctx, "fac-padel", []string{"addon-balls", "addon-towel", "addon-clubs"})
	require.NoError(t, err)
	assert.Len(t, got, 2, "golf clubs are not offered at padel")

	none, err := store.GetAddOns(ctx, "fac-padel", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMembershipsAndTiers(t *testing.T) {
	store := setupSeededDB(t)
	ctx := context.Background()

	m, err := store.GetMembershipByNumber(ctx, "QD-0001")
	require.NoError(t, err)
	assert.Equal(t, "GOLD", m.Tier)
	assert.Equal(t, models.MembershipActive, m.Status)

	_, err = store.GetMembershipByNumber(ctx, "QD-9999")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	rule, err := store.GetTierRule(ctx, "GOLD")
	require.NoError(t, err)
	assert.Equal(t, 20, rule.DiscountPercent)
	assert.Equal(t, 14, rule.AdvanceBookingDays)

	tiers, err := store.ListTierRules(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 4)
	assert.Equal(t, "STANDARD", tiers[0].Tier)
	assert.Equal(t, "PLATINUM", tiers[3].Tier)
}
