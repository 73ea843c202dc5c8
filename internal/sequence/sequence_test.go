package sequence

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&LodgementSequence{}))
	return db
}

func TestNextFormatsAndIncrements(t *testing.T) {
	db := newTestDB(t)
	issuer := NewIssuer()
	ctx := context.Background()

	first, err := issuer.Next(ctx, db, "proposal", "A")
	require.NoError(t, err)
	assert.Equal(t, "A0000001", first)

	second, err := issuer.Next(ctx, db, "proposal", "A")
	require.NoError(t, err)
	assert.Equal(t, "A0000002", second)
}

func TestNextMonotonicAcrossTypes(t *testing.T) {
	db := newTestDB(t)
	issuer := NewIssuer()
	ctx := context.Background()

	a, err := issuer.Next(ctx, db, "proposal", "A")
	require.NoError(t, err)
	cp, err := issuer.Next(ctx, db, "competitive_process", "CP")
	require.NoError(t, err)

	// Each record type runs its own counter.
	assert.Equal(t, "A0000001", a)
	assert.Equal(t, "CP0000001", cp)
}

func TestNextNeverReusesAfterDiscard(t *testing.T) {
	db := newTestDB(t)
	issuer := NewIssuer()
	ctx := context.Background()

	issued := make(map[string]bool)
	for i := 0; i < 10; i++ {
		n, err := issuer.Next(ctx, db, "compliance", "C")
		require.NoError(t, err)
		assert.False(t, issued[n], "number %s reissued", n)
		issued[n] = true
	}
	// Discarding records does not touch the sequence table, so a later
	// issue still advances past every number ever handed out.
	n, err := issuer.Next(ctx, db, "compliance", "C")
	require.NoError(t, err)
	assert.Equal(t, "C0000011", n)
}

func TestNextSeedsFromExistingRecords(t *testing.T) {
	db := newTestDB(t)
	issuer := NewIssuer()
	ctx := context.Background()

	// Records that predate the sequence table must never be collided with:
	// the first issue continues past the highest persisted suffix.
	require.NoError(t, db.Exec(`CREATE TABLE approvals (id INTEGER PRIMARY KEY, lodgement_number TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO approvals (lodgement_number) VALUES ('L0000007'), ('L0000041'), (NULL), ('L-legacy')`).Error)

	n, err := issuer.Next(ctx, db, "approval", "L")
	require.NoError(t, err)
	assert.Equal(t, "L0000042", n)

	// Later rows do not reseed: the sequence row is authoritative once created.
	require.NoError(t, db.Exec(`INSERT INTO approvals (lodgement_number) VALUES ('L0000090')`).Error)
	n, err = issuer.Next(ctx, db, "approval", "L")
	require.NoError(t, err)
	assert.Equal(t, "L0000043", n)
}

func TestNextValidatesInput(t *testing.T) {
	db := newTestDB(t)
	issuer := NewIssuer()

	_, err := issuer.Next(context.Background(), db, "", "A")
	assert.ErrorIs(t, err, ErrInvalidRecordType)

	_, err = issuer.Next(context.Background(), db, "proposal", " ")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
}
