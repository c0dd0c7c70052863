// Package uploads manages the temp → permanent lifecycle of image attachments.
//
// Images are first staged in the temp bucket under "temp/" with a signed URL
// valid for an hour. Submitting a ticket promotes the staged object to the
// permanent bucket; anything never promoted is removed by SweepExpired.
package uploads

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"featureboard/internal/apperr"
	"featureboard/internal/blob"
	"featureboard/internal/metrics"
)

const (
	MaxImageBytes         = 5 << 20
	TempPrefix            = "temp/"
	DefaultTempTTL        = time.Hour
	DefaultSweepThreshold = time.Hour
)

// File is an upload as received from the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Staged is the result of a temp upload.
type Staged struct {
	TempKey   string    `json:"tempFilename"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SweepResult lists what a sweep removed.
type SweepResult struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

type Manager struct {
	temp     blob.Store
	perm     blob.Store
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	maxBytes int64
	ttl      time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithMaxBytes(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxBytes = n
		}
	}
}

func WithTempTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func New(temp, perm blob.Store, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		temp:     temp,
		perm:     perm,
		log:      log.With().Str("component", "uploads").Logger(),
		now:      time.Now,
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		maxBytes: MaxImageBytes,
		ttl:      DefaultTempTTL,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StageUpload validates f and stores it in the temp bucket. Invalid files
// never reach the store.
func (m *Manager) StageUpload(ctx context.Context, f File) (Staged, error) {
	if int64(len(f.Data)) > m.maxBytes {
		metrics.UploadsRejected.WithLabelValues("size").Inc()
		return Staged{}, apperr.Validation("image must be %d MiB or smaller", m.maxBytes>>20)
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "image/") {
		metrics.UploadsRejected.WithLabelValues("type").Inc()
		return Staged{}, apperr.Validation("only image uploads are allowed")
	}

	key := fmt.Sprintf("%s%d-%s-%s", TempPrefix, m.now().UnixMilli(), m.newID(), SafeName(f.Name))
	if _, err := m.temp.Upload(ctx, key, f.Data, f.ContentType); err != nil {
		return Staged{}, apperr.Upload(err, "could not store image")
	}
	su, err := m.temp.SignedURL(ctx, key, m.ttl)
	if err != nil {
		if _, rmErr := m.temp.Remove(ctx, []string{key}); rmErr != nil {
			m.log.Warn().Err(rmErr).Str("key", key).Msg("remove unsigned temp object")
		}
		return Staged{}, apperr.Upload(err, "could not sign image url")
	}
	metrics.UploadsStaged.Inc()
	m.log.Debug().Str("key", key).Int("bytes", len(f.Data)).Msg("image staged")
	return Staged{TempKey: key, SignedURL: su.URL, ExpiresAt: su.ExpiresAt}, nil
}

// Promote copies a staged image into the permanent bucket under ownerID and
// returns its public URL. On failure the temp object is left in place.
func (m *Manager) Promote(ctx context.Context, tempKey, targetName, contentType, ownerID string) (string, error) {
	if !IsTempKey(tempKey) {
		return "", apperr.Validation("invalid temporary filename")
	}
	if strings.TrimSpace(ownerID) == "" || strings.ContainsAny(ownerID, "/.") {
		return "", apperr.Validation("invalid owner")
	}

	data, storedType, err := m.temp.Download(ctx, tempKey)
	if err != nil {
		metrics.UploadsPromoted.WithLabelValues("failed").Inc()
		return "", apperr.Upload(err, "could not read temporary image")
	}
	if contentType == "" {
		contentType = storedType
	}
	if targetName == "" {
		targetName = originalName(tempKey)
	}

	permKey := fmt.Sprintf("%s/%d-%s", ownerID, m.now().UnixMilli(), SafeName(targetName))
	if _, err := m.perm.Upload(ctx, permKey, data, contentType); err != nil {
		metrics.UploadsPromoted.WithLabelValues("failed").Inc()
		return "", apperr.Upload(err, "could not store image")
	}

	// The sweep collects the temp copy if this delete fails.
	if _, err := m.temp.Remove(ctx, []string{tempKey}); err != nil {
		m.log.Warn().Err(err).Str("key", tempKey).Msg("delete promoted temp object")
	}
	metrics.UploadsPromoted.WithLabelValues("ok").Inc()
	return m.perm.PublicURL(permKey), nil
}

// SweepExpired removes every temp object whose age is at least threshold.
// The listing is taken once, so uploads that start during the sweep are
// never considered.
func (m *Manager) SweepExpired(ctx context.Context, threshold time.Duration) (SweepResult, error) {
	if threshold <= 0 {
		threshold = DefaultSweepThreshold
	}
	objs, err := m.temp.List(ctx, TempPrefix)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list temp objects: %w", err)
	}

	now := m.now()
	var expired []string
	for _, o := range objs {
		if now.Sub(o.CreatedAt) >= threshold {
			expired = append(expired, o.Key)
		}
	}
	if len(expired) == 0 {
		return SweepResult{Keys: []string{}}, nil
	}

	removed, err := m.temp.Remove(ctx, expired)
	if err != nil {
		return SweepResult{}, fmt.Errorf("remove expired temp objects: %w", err)
	}
	metrics.TempObjectsSwept.Add(float64(len(removed)))
	m.log.Info().Int("removed", len(removed)).Dur("threshold", threshold).Msg("temp sweep")
	return SweepResult{Count: len(removed), Keys: removed}, nil
}

// Discard removes specific staged images, e.g. when the user drops an
// attachment before submitting.
func (m *Manager) Discard(ctx context.Context, tempKeys []string) ([]string, error) {
	for _, k := range tempKeys {
		if !IsTempKey(k) {
			return nil, apperr.Validation("invalid temporary filename %q", k)
		}
	}
	if len(tempKeys) == 0 {
		return []string{}, nil
	}
	removed, err := m.temp.Remove(ctx, tempKeys)
	if err != nil {
		return nil, fmt.Errorf("discard temp objects: %w", err)
	}
	return removed, nil
}

// IsPermanentURL reports whether raw is the public URL of an object in the
// permanent bucket. Signed URLs, fragments and non-canonical paths are
// rejected.
func (m *Manager) IsPermanentURL(raw string) bool {
	_, ok := m.permanentKey(raw)
	return ok
}

// RemovePermanent deletes the permanent object behind a URL returned by
// Promote. It is used to undo a promotion whose ticket was never stored.
func (m *Manager) RemovePermanent(ctx context.Context, raw string) error {
	key, ok := m.permanentKey(raw)
	if !ok {
		return apperr.Validation("not a permanent image url")
	}
	if _, err := m.perm.Remove(ctx, []string{key}); err != nil {
		return fmt.Errorf("remove permanent object %s: %w", key, err)
	}
	return nil
}

func (m *Manager) permanentKey(raw string) (string, bool) {
	base, err := url.Parse(m.perm.PublicURL(""))
	if err != nil {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" || u.User != nil {
		return "", false
	}
	if u.Scheme != base.Scheme || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	if strings.Contains(u.Path, "..") || path.Clean(u.Path) != u.Path {
		return "", false
	}
	if !strings.HasPrefix(u.Path, base.Path) || len(u.Path) == len(base.Path) {
		return "", false
	}
	return strings.TrimPrefix(u.Path, base.Path), true
}

func IsTempKey(key string) bool {
	return strings.HasPrefix(key, TempPrefix) && len(key) > len(TempPrefix) &&
		!strings.Contains(key, "..") && !strings.Contains(key[len(TempPrefix):], "/")
}

// SafeName reduces a client file name to a storage-safe token.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	s := b.String()
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.Trim(s, ".-")
	if len(s) > 100 {
		s = s[len(s)-100:]
	}
	if s == "" {
		return "image"
	}
	return s
}

// originalName recovers the client name from "temp/<millis>-<id>-<name>".
func originalName(tempKey string) string {
	parts := strings.SplitN(strings.TrimPrefix(tempKey, TempPrefix), "-", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return "image"
}
