package dailycache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tarot-miniapp/internal/config"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		Password:     "",
		DB:           0,
		User:         "",
	}

	store, err := InitRedis(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testRecord(userID int, day string) models.DailyCardRecord {
	return models.DailyCardRecord{
		UserID:     userID,
		Date:       day,
		SpreadID:   3,
		SpreadName: "Карта дня",
		Drawn: models.DrawnCardSet{
			Cards:            []models.DrawnCard{{Name: "Солнце", ImageURL: "/19.png", IsReversed: true}},
			InterpretationID: 77,
		},
	}
}

// storeContract проверки, общие для всех реализаций Store.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("lookup missing", func(t *testing.T) {
		rec, err := store.Lookup(ctx, 1, "2025-01-01")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("create once per day", func(t *testing.T) {
		created, err := store.Create(ctx, testRecord(2, "2025-01-01"))
		require.NoError(t, err)
		assert.True(t, created)

		second := testRecord(2, "2025-01-01")
		second.Drawn.InterpretationID = 99
		created, err = store.Create(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)

		rec, err := store.Lookup(ctx, 2, "2025-01-01")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 77, rec.Drawn.InterpretationID)
		assert.Equal(t, testRecord(2, "2025-01-01").Drawn.Cards, rec.Drawn.Cards)
		assert.Nil(t, rec.Interpretation)
	})

	t.Run("next day is a new key", func(t *testing.T) {
		created, err := store.Create(ctx, testRecord(3, "2025-01-01"))
		require.NoError(t, err)
		require.True(t, created)

		created, err = store.Create(ctx, testRecord(3, "2025-01-02"))
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("interpretation attached", func(t *testing.T) {
		_, err := store.Create(ctx, testRecord(4, "2025-01-01"))
		require.NoError(t, err)

		it := models.Interpretation{
			ID:         77,
			SpreadName: "Карта дня",
			AIResponse: "Сегодня удачный день",
			CardsNames: []string{"Солнце"},
			CreatedAt:  time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.SaveInterpretation(ctx, 4, "2025-01-01", it))

		rec, err := store.Lookup(ctx, 4, "2025-01-01")
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.NotNil(t, rec.Interpretation)
		assert.Equal(t, it.AIResponse, rec.Interpretation.AIResponse)
		assert.True(t, it.CreatedAt.Equal(rec.Interpretation.CreatedAt))
	})

	t.Run("interpretation without record", func(t *testing.T) {
		err := store.SaveInterpretation(ctx, 5, "2025-01-01", models.Interpretation{ID: 1})
		assert.ErrorIs(t, err, ErrRecordMissing)
	})
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	storeContract(t, store)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStore_Layout(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRecord(10, "2025-03-08"))
	require.NoError(t, err)
	require.NoError(t, store.SaveInterpretation(ctx, 10, "2025-03-08", models.Interpretation{ID: 77}))

	assert.True(t, mr.Exists("card_of_day:10:2025-03-08"))
	assert.True(t, mr.Exists("card_of_day_interpretation:10:2025-03-08"))
	assert.Equal(t, time.Duration(0), mr.TTL("card_of_day:10:2025-03-08"))
}

func TestRedisStore_InvalidJSON(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, mr.Set(Key(NamespaceCard, 1, "2025-01-01"), "not-json"))

	_, err := store.Lookup(context.Background(), 1, "2025-01-01")
	assert.Error(t, err)
}

func TestInitRedis_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = InitRedis(context.Background(), config.RedisConnection{AddressRedis: addr})
	assert.Error(t, err)
}

func TestDay(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2025, 1, 1, 22, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{name: "utc", loc: time.UTC, want: "2025-01-01"},
		{name: "viewer past midnight", loc: moscow, want: "2025-01-02"},
		{name: "nil keeps time zone", loc: nil, want: "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Day(ts, tt.loc))
		})
	}
}
