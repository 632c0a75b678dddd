package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/keycodec"
	"github.com/savak1990/my-dogs/internal/model"
	_ "modernc.org/sqlite"
)

const (
	kindDog   = "dog"
	kindImage = "image"
)

// Compile-time check that SQLDB implements Database.
var _ Database = (*SQLDB)(nil)

// SQLDB implements Database on database/sql. DSNs starting with postgres://
// or postgresql:// use the pgx driver; anything else is opened with SQLite.
type SQLDB struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// Open connects to dsn and runs migrations.
// For an in-memory SQLite database pass "file:<name>?mode=memory&cache=shared".
func Open(ctx context.Context, dsn string) (*SQLDB, error) {
	s := &SQLDB{now: time.Now}

	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s.postgres = true
		s.db, err = sql.Open("pgx", dsn)
	} else {
		s.db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// SQLite allows a single writer; serializing on one connection
			// avoids SQLITE_BUSY under concurrent sequence allocation.
			s.db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)"
	if !strings.Contains(dsn, "mode=memory") {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// SetClock overrides the time source used for created/updated timestamps.
func (s *SQLDB) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the underlying database connection.
func (s *SQLDB) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database.
func (s *SQLDB) HealthCheck(ctx context.Context) error {
	return apperr.Unavailable("HealthCheck", s.db.PingContext(ctx))
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLDB) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Sequences
// ---------------------------------------------------------------------------

// NextSequence atomically increments and returns the owner's counter. The
// first value handed out is 1.
func (s *SQLDB) NextSequence(ctx context.Context, ownerID string, counter Counter) (int64, error) {
	const op = "NextSequence"
	if !counter.valid() {
		return 0, apperr.Validation(op, "unknown counter %q", counter)
	}

	var value int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO sequences (pk, counter, value) VALUES (?, ?, 1)
		ON CONFLICT (pk, counter) DO UPDATE SET value = sequences.value + 1
		RETURNING value`),
		keycodec.OwnerPK(ownerID), string(counter),
	).Scan(&value)
	if err != nil {
		return 0, apperr.Unavailable(op, err)
	}
	return value, nil
}

// ---------------------------------------------------------------------------
// Dogs
// ---------------------------------------------------------------------------

func (s *SQLDB) CreateDog(ctx context.Context, dog *model.Dog) error {
	const op = "CreateDog"
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO entities (pk, sk, kind, name, age, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (pk, sk) DO NOTHING`),
		keycodec.OwnerPK(dog.OwnerID), keycodec.DogSK(dog.DogID), kindDog,
		dog.Name, dog.Age, formatTime(now), formatTime(now),
	)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Unavailable(op, err)
	} else if n == 0 {
		return &apperr.Error{Kind: apperr.ErrVersionConflict, Op: op, Msg: fmt.Sprintf("dog %d already exists", dog.DogID)}
	}

	dog.Version = 1
	dog.CreatedAt = now
	dog.UpdatedAt = now
	return nil
}

const dogColumns = `pk, sk, name, age, version, created_at, updated_at`

func (s *SQLDB) GetDog(ctx context.Context, ownerID string, dogID int64) (*model.Dog, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+dogColumns+` FROM entities
		WHERE pk = ? AND sk = ? AND kind = ?`),
		keycodec.OwnerPK(ownerID), keycodec.DogSK(dogID), kindDog,
	)
	dog, err := scanDog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("GetDog", "dog %d not found", dogID)
	}
	if err != nil {
		return nil, apperr.Unavailable("GetDog", err)
	}
	return dog, nil
}

// GetDogsByOwner returns the owner's dogs ordered by dog id.
func (s *SQLDB) GetDogsByOwner(ctx context.Context, ownerID string) ([]*model.Dog, error) {
	const op = "GetDogsByOwner"
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+dogColumns+` FROM entities
		WHERE pk = ? AND sk LIKE ? AND kind = ?`),
		keycodec.OwnerPK(ownerID), keycodec.DogPrefix()+"%", kindDog,
	)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	defer rows.Close()

	dogs := []*model.Dog{}
	for rows.Next() {
		dog, err := scanDog(rows)
		if err != nil {
			return nil, apperr.Unavailable(op, err)
		}
		dogs = append(dogs, dog)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable(op, err)
	}

	sort.Slice(dogs, func(i, j int) bool { return dogs[i].DogID < dogs[j].DogID })
	return dogs, nil
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func (s *SQLDB) CreateImage(ctx context.Context, img *model.Image) error {
	const op = "CreateImage"
	now := s.now().UTC()

	var expires sql.NullString
	if img.ExpiresAt != nil {
		expires = sql.NullString{String: formatTime(*img.ExpiresAt), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO entities (pk, sk, kind, storage_key, status, status_reason, version, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (pk, sk) DO NOTHING`),
		keycodec.OwnerPK(img.OwnerID), keycodec.ImageSK(img.DogID, img.ImageID), kindImage,
		img.StorageKey, string(img.Status), img.StatusReason,
		formatTime(now), formatTime(now), expires,
	)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Unavailable(op, err)
	} else if n == 0 {
		return &apperr.Error{Kind: apperr.ErrVersionConflict, Op: op, Msg: fmt.Sprintf("image %d already exists", img.ImageID)}
	}

	img.Version = 1
	img.CreatedAt = now
	img.UpdatedAt = now
	return nil
}

const imageColumns = `pk, sk, storage_key, status, status_reason, version, created_at, updated_at, expires_at`

func (s *SQLDB) GetImage(ctx context.Context, ownerID string, dogID, imageID int64) (*model.Image, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+imageColumns+` FROM entities
		WHERE pk = ? AND sk = ? AND kind = ?`),
		keycodec.OwnerPK(ownerID), keycodec.ImageSK(dogID, imageID), kindImage,
	)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("GetImage", "image %d of dog %d not found", imageID, dogID)
	}
	if err != nil {
		return nil, apperr.Unavailable("GetImage", err)
	}
	return img, nil
}

// GetImagesByOwner returns every image of the owner ordered by dog id, then
// image id.
func (s *SQLDB) GetImagesByOwner(ctx context.Context, ownerID string) ([]*model.Image, error) {
	return s.queryImages(ctx, "GetImagesByOwner", ownerID, keycodec.ImagePrefix())
}

// GetImagesByDog returns the images of one dog ordered by image id.
func (s *SQLDB) GetImagesByDog(ctx context.Context, ownerID string, dogID int64) ([]*model.Image, error) {
	return s.queryImages(ctx, "GetImagesByDog", ownerID, keycodec.DogImagesPrefix(dogID))
}

func (s *SQLDB) queryImages(ctx context.Context, op, ownerID, prefix string) ([]*model.Image, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+imageColumns+` FROM entities
		WHERE pk = ? AND sk LIKE ? AND kind = ?`),
		keycodec.OwnerPK(ownerID), prefix+"%", kindImage,
	)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	defer rows.Close()

	images := []*model.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, apperr.Unavailable(op, err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable(op, err)
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].DogID != images[j].DogID {
			return images[i].DogID < images[j].DogID
		}
		return images[i].ImageID < images[j].ImageID
	})
	return images, nil
}

// UpdateImage applies patch when the stored version equals expectedVersion.
// On success the version is incremented and the updated image returned. A
// mismatch yields apperr.ErrVersionConflict; a missing row apperr.ErrNotFound.
func (s *SQLDB) UpdateImage(ctx context.Context, ownerID string, dogID, imageID, expectedVersion int64, patch model.ImagePatch) (*model.Image, error) {
	const op = "UpdateImage"
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.Validation(op, "invalid status %q", *patch.Status)
	}

	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []any{formatTime(s.now().UTC())}
	if patch.StorageKey != nil {
		sets = append(sets, "storage_key = ?")
		args = append(args, *patch.StorageKey)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.StatusReason != nil {
		sets = append(sets, "status_reason = ?")
		args = append(args, *patch.StatusReason)
	}
	if patch.ClearTTL {
		sets = append(sets, "expires_at = NULL")
	}
	args = append(args, keycodec.OwnerPK(ownerID), keycodec.ImageSK(dogID, imageID), kindImage, expectedVersion)

	row := s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE entities SET `+strings.Join(sets, ", ")+`
		WHERE pk = ? AND sk = ? AND kind = ? AND version = ?
		RETURNING `+imageColumns),
		args...,
	)
	img, err := scanImage(row)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Unavailable(op, err)
	}

	// Nothing matched: either the row is gone or its version moved on.
	if _, err := s.GetImage(ctx, ownerID, dogID, imageID); err != nil {
		return nil, err
	}
	return nil, apperr.VersionConflict(op, expectedVersion)
}

// PurgeExpired deletes PENDING images whose expires_at is before now.
func (s *SQLDB) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "PurgeExpired"
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM entities
		WHERE kind = ? AND status = ? AND expires_at IS NOT NULL AND expires_at < ?`),
		kindImage, string(model.ImageStatusPending), formatTime(now.UTC()),
	)
	if err != nil {
		return 0, apperr.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Unavailable(op, err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDog(sc scanner) (*model.Dog, error) {
	var (
		pk, sk           string
		dog              model.Dog
		created, updated string
	)
	if err := sc.Scan(&pk, &sk, &dog.Name, &dog.Age, &dog.Version, &created, &updated); err != nil {
		return nil, err
	}
	id, err := keycodec.DecodeDogSK(sk)
	if err != nil {
		return nil, err
	}
	dog.OwnerID = strings.TrimPrefix(pk, keycodec.OwnerPK(""))
	dog.DogID = id
	if dog.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if dog.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &dog, nil
}

func scanImage(sc scanner) (*model.Image, error) {
	var (
		pk, sk, status   string
		img              model.Image
		created, updated string
		expires          sql.NullString
	)
	if err := sc.Scan(&pk, &sk, &img.StorageKey, &status, &img.StatusReason, &img.Version, &created, &updated, &expires); err != nil {
		return nil, err
	}
	dogID, imageID, err := keycodec.DecodeImageSK(sk)
	if err != nil {
		return nil, err
	}
	img.OwnerID = strings.TrimPrefix(pk, keycodec.OwnerPK(""))
	img.DogID = dogID
	img.ImageID = imageID
	img.Status = model.ImageStatus(status)
	if img.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if img.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if expires.Valid {
		t, err := parseTime(expires.String)
		if err != nil {
			return nil, err
		}
		img.ExpiresAt = &t
	}
	return &img, nil
}

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
