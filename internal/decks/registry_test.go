package decks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

func loadTest(t *testing.T) (*Registry, *storage.DB) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := Load(db, nil)
	require.NoError(t, err)
	return r, db
}

func TestCreateBuildsMissingParents(t *testing.T) {
	r, _ := loadTest(t)

	d, err := r.Create("Languages::French::Verbs", false)
	require.NoError(t, err)
	assert.Equal(t, "Languages::French::Verbs", d.Name)

	assert.NotNil(t, r.ByName("Languages"))
	assert.NotNil(t, r.ByName("Languages::French"))

	again, err := r.Create("Languages::French::Verbs", false)
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID, "creating an existing deck returns it")
}

func TestCreateDynDefaults(t *testing.T) {
	r, _ := loadTest(t)

	d, err := r.Create("Cram", true)
	require.NoError(t, err)
	assert.True(t, d.Dyn)
	assert.Equal(t, 100, d.Terms.Limit)
	assert.True(t, d.Terms.Resched)
}

func TestActiveDeckIDs(t *testing.T) {
	r, _ := loadTest(t)

	top, err := r.Create("Languages", false)
	require.NoError(t, err)
	child, err := r.Create("Languages::French", false)
	require.NoError(t, err)
	_, err = r.Create("Other", false)
	require.NoError(t, err)

	require.NoError(t, r.Select(top.ID))
	assert.Equal(t, []int64{top.ID, child.ID}, r.ActiveDeckIDs())

	require.NoError(t, r.Select(child.ID))
	assert.Equal(t, []int64{child.ID}, r.ActiveDeckIDs())
}

func TestParentsReportsOrphan(t *testing.T) {
	r, _ := loadTest(t)

	orphan := &domain.Deck{ID: 9, Name: "Gone::Child", ConfID: 1}
	require.NoError(t, r.Save(orphan))

	_, err := r.Parents(orphan)
	require.Error(t, err)
	var oe *ErrOrphan
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "Gone", oe.Missing)
}

func TestRepairOrphan(t *testing.T) {
	r, _ := loadTest(t)

	_, err := r.Create("Child", false)
	require.NoError(t, err)

	orphan := &domain.Deck{ID: 9, Name: "Gone::Child", ConfID: 1}
	require.NoError(t, r.Save(orphan))

	require.NoError(t, r.RepairOrphan(orphan))
	assert.Equal(t, "Child+", orphan.Name, "collision with existing top-level name gets a suffix")

	// Repairing a healthy deck is a no-op.
	before := orphan.Name
	require.NoError(t, r.RepairOrphan(orphan))
	assert.Equal(t, before, orphan.Name)
}

func TestRemoveDuplicate(t *testing.T) {
	r, db := loadTest(t)

	require.NoError(t, r.Save(&domain.Deck{ID: 5, Name: "Twice", ConfID: 1}))
	require.NoError(t, r.Save(&domain.Deck{ID: 8, Name: "Twice", ConfID: 1}))
	require.NoError(t, db.SaveCard(&domain.Card{ID: 1, DeckID: 8}))

	repaired, err := r.RemoveDuplicate()
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Nil(t, r.Get(8))
	assert.NotNil(t, r.Get(5))

	card, err := db.GetCard(1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), card.DeckID, "cards follow the surviving deck")

	repaired, err = r.RemoveDuplicate()
	require.NoError(t, err)
	assert.False(t, repaired, "second pass finds nothing")
}

func TestConfDegradesToDefault(t *testing.T) {
	r, _ := loadTest(t)

	d := &domain.Deck{ID: 3, Name: "Broken", ConfID: 42}
	require.NoError(t, r.Save(d))

	conf, err := r.Conf(d)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDeckConfig().New.Delays, conf.New.Delays)
}

func TestConfForFollowsOriginalDeck(t *testing.T) {
	r, db := loadTest(t)

	conf2 := domain.DefaultDeckConfig()
	conf2.ID = 2
	conf2.New.PerDay = 5
	require.NoError(t, db.SaveDeckConfig(conf2))

	home, err := r.Create("Home", false)
	require.NoError(t, err)
	home.ConfID = 2
	require.NoError(t, r.Save(home))

	cram, err := r.Create("Cram", true)
	require.NoError(t, err)

	card := &domain.Card{ID: 1, DeckID: cram.ID, OrigDeckID: home.ID}
	got, err := r.ConfFor(card)
	require.NoError(t, err)
	assert.Equal(t, 5, got.New.PerDay, "filtered card uses its home deck's config")
}
