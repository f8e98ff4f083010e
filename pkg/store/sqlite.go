package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// DisplayNameLen caps the text fallback used as a log row's audio name.
const DisplayNameLen = 50

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	StateStore
	AudioStore
	NarrationLogStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Audio catalogue ---

const audioColumns = `id, text, voice, file_name, mime_type, file_size, food_name, price, description, image_url,
	latitude, longitude, accuracy, trigger_radius_m, priority, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudio(r rowScanner) (*model.AudioAsset, error) {
	var (
		a                             model.AudioAsset
		text, voice, file, mime, food sql.NullString
		desc, img                     sql.NullString
		size                          sql.NullInt64
		price, lat, lon, acc, radius  sql.NullFloat64
		priority                      sql.NullInt64
		created                       sql.NullTime
	)
	if err := r.Scan(&a.ID, &text, &voice, &file, &mime, &size, &food, &price, &desc, &img,
		&lat, &lon, &acc, &radius, &priority, &created); err != nil {
		return nil, err
	}
	a.Text = text.String
	a.Voice = voice.String
	a.FileName = file.String
	a.MimeType = mime.String
	a.FileSize = size.Int64
	a.FoodName = food.String
	a.Description = desc.String
	a.ImageURL = img.String
	a.Price = floatPtr(price)
	a.Latitude = floatPtr(lat)
	a.Longitude = floatPtr(lon)
	a.Accuracy = floatPtr(acc)
	a.TriggerRadiusMeters = floatPtr(radius)
	if priority.Valid {
		p := int(priority.Int64)
		a.Priority = &p
	}
	if created.Valid {
		a.CreatedAt = created.Time
	}
	return &a, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *SQLiteStore) ListAudios(ctx context.Context) ([]model.AudioAsset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+audioColumns+` FROM tts_audio ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AudioAsset
	for rows.Next() {
		a, err := scanAudio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAudio(ctx context.Context, id int64) (*model.AudioAsset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+audioColumns+` FROM tts_audio WHERE id = ?`, id)
	a, err := scanAudio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLiteStore) SaveAudio(ctx context.Context, a *model.AudioAsset) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var priority any
	if a.Priority != nil {
		priority = *a.Priority
	}
	args := []any{a.Text, a.Voice, a.FileName, a.MimeType, a.FileSize, a.FoodName, nullable(a.Price), a.Description, a.ImageURL,
		nullable(a.Latitude), nullable(a.Longitude), nullable(a.Accuracy), nullable(a.TriggerRadiusMeters), priority, a.CreatedAt}

	if a.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO tts_audio (text, voice, file_name, mime_type, file_size, food_name, price, description, image_url,
			latitude, longitude, accuracy, trigger_radius_m, priority, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO tts_audio (id, text, voice, file_name, mime_type, file_size, food_name, price, description, image_url,
		latitude, longitude, accuracy, trigger_radius_m, priority, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{a.ID}, args...)...)
	return err
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// --- Narration log ---

func (s *SQLiteStore) SaveNarrationLog(ctx context.Context, l *model.NarrationLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var dur any
	if l.DurationSeconds != nil {
		dur = *l.DurationSeconds
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO narration_log (device_id, tts_audio_id, played_at, duration_seconds, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.DeviceID, l.AudioID, l.PlayedAt.UnixMilli(), dur, string(l.Status), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert narration log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		l.ID = id
	}
	return nil
}

func (s *SQLiteStore) LastPlayedBefore(ctx context.Context, deviceID string, audioID int64, t time.Time) (time.Time, bool, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(played_at) FROM narration_log WHERE device_id = ? AND tts_audio_id = ? AND played_at < ?`,
		deviceID, audioID, t.UnixMilli()).Scan(&ms)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64), true, nil
}

func (s *SQLiteStore) ListNarrationLogs(ctx context.Context, offset, limit int) ([]model.NarrationLog, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM narration_log").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.device_id, l.tts_audio_id, l.played_at, l.duration_seconds, l.status, l.created_at,
			COALESCE(a.food_name, ''), COALESCE(a.text, '')
		FROM narration_log l LEFT JOIN tts_audio a ON a.id = l.tts_audio_id
		ORDER BY l.played_at DESC, l.id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.NarrationLog
	for rows.Next() {
		var (
			l         model.NarrationLog
			playedAt  int64
			dur       sql.NullInt64
			status    string
			created   sql.NullTime
			food, txt string
		)
		if err := rows.Scan(&l.ID, &l.DeviceID, &l.AudioID, &playedAt, &dur, &status, &created, &food, &txt); err != nil {
			return nil, 0, err
		}
		l.PlayedAt = time.UnixMilli(playedAt)
		l.Status = model.PlaybackStatus(status)
		if dur.Valid {
			d := int(dur.Int64)
			l.DurationSeconds = &d
		}
		if created.Valid {
			l.CreatedAt = created.Time
		}
		asset := model.AudioAsset{FoodName: food, Text: txt}
		l.AudioName = asset.DisplayName(DisplayNameLen)
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		decompressed, err := decompress(val)
		if err == nil {
			return decompressed, true
		}
	}

	return val, true
}

// --- Compression Pooling ---

var (
	// Pool for gzip writers to reuse flate state
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	// Transparent Compression
	compressed, err := compress(val)
	if err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
