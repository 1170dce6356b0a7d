package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declanbyrne/revdeck/internal/domain"
)

func TestDeckRoundTrip(t *testing.T) {
	db := openTest(t)

	deck := &domain.Deck{
		ID:       4,
		Name:     "Languages::French",
		ConfID:   1,
		Dyn:      true,
		NewToday: domain.DayCount{Day: 3, Count: 7},
		Terms: domain.DynTerms{
			ScopeDeckID: 2,
			DueOnly:     true,
			Limit:       50,
			Order:       domain.DynOrderIntervalDesc,
			Resched:     true,
		},
	}
	require.NoError(t, db.SaveDeck(deck))

	got, err := db.GetDeck(4)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, deck.Name, got.Name)
	assert.Equal(t, deck.NewToday, got.NewToday)
	assert.Equal(t, deck.Terms, got.Terms)

	all, err := db.AllDecks()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Default", all[0].Name, "ordered by name path")
}

func TestDeleteDeckRefusesDefault(t *testing.T) {
	db := openTest(t)

	err := db.DeleteDeck(domain.DefaultDeckID)
	require.Error(t, err)

	require.NoError(t, db.SaveDeck(&domain.Deck{ID: 2, Name: "Other", ConfID: 1}))
	require.NoError(t, db.DeleteDeck(2))

	got, err := db.GetDeck(2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMoveDeckCards(t *testing.T) {
	db := openTest(t)

	require.NoError(t, db.SaveCard(&domain.Card{ID: 1, DeckID: 5}))
	require.NoError(t, db.SaveCard(&domain.Card{ID: 2, DeckID: 5}))
	require.NoError(t, db.SaveCard(&domain.Card{ID: 3, DeckID: 6}))

	require.NoError(t, db.MoveDeckCards(5, 1))

	ids, err := db.QueryCardIDs(CardQuery{DeckIDs: []int64{1}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestDeckConfigRoundTrip(t *testing.T) {
	db := openTest(t)

	conf := domain.DefaultDeckConfig()
	conf.ID = 2
	conf.Name = "Aggressive"
	conf.New.Delays = []float64{0.5, 5, 30}
	conf.Lapse.Delays = nil
	conf.Lapse.Mult = 0.5
	conf.Review.Ease4 = 1.2
	require.NoError(t, db.SaveDeckConfig(conf))

	got, err := db.GetDeckConfig(2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []float64{0.5, 5, 30}, got.New.Delays)
	assert.Nil(t, got.Lapse.Delays, "empty delay list survives the round trip")
	assert.Equal(t, 0.5, got.Lapse.Mult)
	assert.Equal(t, 1.2, got.Review.Ease4)

	missing, err := db.GetDeckConfig(99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
