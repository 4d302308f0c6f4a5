package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -5: DefaultLimit, 10: 10, 500: MaxLimit} {
		assert.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
}

func TestCursorTokenIsURLSafe(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 1234, time.FixedZone("LK", 19800)), ID: uuid.New()}
	token := EncodeCursor(original)
	assert.False(t, strings.ContainsAny(token, "+/="), token)

	parsed, err := ParseCursor(token)
	require.NoError(t, err)
	assert.True(t, parsed.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, time.UTC, parsed.CreatedAt.Location())
	assert.Equal(t, original.ID, parsed.ID)
}

func TestParseCursor(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, token := range []string{
		"not base64!",
		base64.RawURLEncoding.EncodeToString([]byte("2026-03-01T00:00:00Z|abc")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-03-01T00:00:00Z"}`)),
	} {
		_, err := ParseCursor(token)
		assert.ErrorIs(t, err, errMalformedCursor, token)
	}
}

func TestTrimBuildsNextCursor(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{uuid.New(), base.Add(3 * time.Minute)}, {uuid.New(), base.Add(2 * time.Minute)}, {uuid.New(), base.Add(time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := Trim(rows[:1], 2, cursorOf)
	assert.Empty(t, last.NextCursor)
	assert.Len(t, last.Items, 1)
	assert.NotNil(t, Trim[row](nil, 2, cursorOf).Items)
}

type listing struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	Name      string
	CreatedAt time.Time
}

func TestKeysetWalksEveryRowOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:keyset_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&listing{}))

	// two rows share a timestamp so the id tiebreak is exercised
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	stamps := []time.Time{base, base.Add(time.Minute), base.Add(time.Minute), base.Add(2 * time.Minute), base.Add(3 * time.Minute)}
	for i, at := range stamps {
		require.NoError(t, db.Create(&listing{ID: uuid.New(), Name: string(rune('a' + i)), CreatedAt: at}).Error)
	}

	seen := map[uuid.UUID]bool{}
	var cursor *Cursor
	pages := 0
	for {
		var rows []listing
		require.NoError(t, db.Scopes(Keyset(cursor, 2)).Find(&rows).Error)
		page := Trim(rows, 2, func(l listing) Cursor { return Cursor{CreatedAt: l.CreatedAt, ID: l.ID} })
		pages++
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "row %s returned twice", item.Name)
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor, err = ParseCursor(page.NextCursor)
		require.NoError(t, err)
		require.Less(t, pages, 10)
	}
	assert.Len(t, seen, len(stamps))
	assert.Equal(t, 3, pages)
}
