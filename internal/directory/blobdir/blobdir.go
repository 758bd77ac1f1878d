// Package blobdir is the remote-blob Directory backend: the whole directory
// lives as one JSON object in an S3 bucket, mirrored in memory behind a
// single in-process lock. Every mutation rewrites the object synchronously.
//
// Upload failures surface as apperr.ErrPersistenceUnavailable instead of
// being swallowed; the in-memory state is still updated first, so a caller
// that retries the write sees consistent pairing state.
package blobdir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/noxchat/noxd/internal/apperr"
	appcfg "github.com/noxchat/noxd/internal/config"
	"github.com/noxchat/noxd/internal/directory"
)

const timeLayout = "2006-01-02 15:04:05"

// ObjectClient is the slice of the S3 API the store uses. Tests substitute
// an in-memory fake.
type ObjectClient interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type record struct {
	ID            int64  `json:"id"`
	Handle        string `json:"handle,omitempty"`
	Phone         string `json:"phone,omitempty"`
	RegisteredAt  string `json:"registered_at"`
	InSearch      bool   `json:"in_search"`
	PartnerID     *int64 `json:"partner_id"`
	Blocked       bool   `json:"blocked"`
	IsAdmin       bool   `json:"is_admin"`
	Gender        string `json:"gender,omitempty"`
	SeekingGender string `json:"seeking_gender,omitempty"`
	Age           int    `json:"age,omitempty"`
	Interests     string `json:"interests,omitempty"`
}

type snapshot struct {
	Users map[string]*record `json:"users"`
}

type Store struct {
	client ObjectClient
	bucket string
	key    string

	mu   sync.Mutex
	data snapshot
	now  func() time.Time
}

var _ directory.Directory = (*Store)(nil)

// Open builds an S3 client from the ambient AWS config and loads the
// current snapshot. A missing object starts an empty directory.
func Open(ctx context.Context, cfg *appcfg.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Blob.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	s := New(s3.NewFromConfig(awsCfg), cfg.Blob.Bucket, cfg.Blob.Key)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// New wires a Store to an object client without loading anything.
func New(client ObjectClient, bucket, key string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		key:    key,
		data:   snapshot{Users: map[string]*record{}},
		now:    time.Now,
	}
}

// Load replaces the in-memory snapshot with the remote object's contents.
// A missing or empty object leaves the directory empty.
func (s *Store) Load(ctx context.Context) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		// first boot: object does not exist yet
		return nil
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read directory blob: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("failed to decode directory blob: %w", err)
	}
	if snap.Users == nil {
		snap.Users = map[string]*record{}
	}

	s.mu.Lock()
	s.data = snap
	s.mu.Unlock()
	return nil
}

// persist uploads the snapshot. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	body, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistenceUnavailable, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistenceUnavailable, err)
	}
	return nil
}

func idKey(id int64) string { return strconv.FormatInt(id, 10) }

func (s *Store) EnsureUser(ctx context.Context, id int64, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(id)
	if rec, ok := s.data.Users[key]; ok {
		if rec.Handle == handle {
			return nil
		}
		rec.Handle = handle
		return s.persist(ctx)
	}

	s.data.Users[key] = &record{
		ID:           id,
		Handle:       handle,
		RegisteredAt: s.now().UTC().Format(timeLayout),
	}
	return s.persist(ctx)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Users[idKey(id)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	u := toDomain(rec)
	return &u, nil
}

func (s *Store) SetInSearch(ctx context.Context, id int64, inSearch bool) error {
	return s.mutate(ctx, id, func(rec *record) { rec.InSearch = inSearch })
}

func (s *Store) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return s.mutate(ctx, id, func(rec *record) { rec.Blocked = blocked })
}

func (s *Store) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return s.mutate(ctx, id, func(rec *record) { rec.IsAdmin = isAdmin })
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, upd directory.ProfileUpdate) error {
	if upd.Empty() {
		return nil
	}
	return s.mutate(ctx, id, func(rec *record) {
		if upd.Gender != nil {
			rec.Gender = string(*upd.Gender)
		}
		if upd.SeekingGender != nil {
			rec.SeekingGender = string(*upd.SeekingGender)
		}
		if upd.Age != nil {
			rec.Age = *upd.Age
		}
		if upd.Interests != nil {
			rec.Interests = *upd.Interests
		}
		if upd.Phone != nil {
			rec.Phone = *upd.Phone
		}
	})
}

func (s *Store) Partner(ctx context.Context, id int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Users[idKey(id)]
	if !ok {
		return 0, false, apperr.ErrNotFound
	}
	if rec.PartnerID == nil {
		return 0, false, nil
	}
	return *rec.PartnerID, true, nil
}

func (s *Store) Candidates(ctx context.Context, exclude int64, gender directory.Gender, limit int) ([]directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []directory.User
	for _, rec := range s.data.Users {
		if rec.ID == exclude || !rec.InSearch || rec.Blocked || rec.PartnerID != nil {
			continue
		}
		if gender == directory.GenderMale || gender == directory.GenderFemale {
			if rec.Gender != string(gender) {
				continue
			}
		}
		out = append(out, toDomain(rec))
	}

	// map iteration order is random; fix the enumeration the same way the
	// relational backend does
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.After(out[j].RegisteredAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Pair(ctx context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.data.Users[idKey(a)]; ok {
		partner := b
		rec.PartnerID = &partner
		rec.InSearch = false
	}
	if rec, ok := s.data.Users[idKey(b)]; ok {
		partner := a
		rec.PartnerID = &partner
		rec.InSearch = false
	}
	return s.persist(ctx)
}

func (s *Store) Unpair(ctx context.Context, id int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Users[idKey(id)]
	if !ok || rec.PartnerID == nil {
		return 0, false, nil
	}
	partner := *rec.PartnerID
	rec.PartnerID = nil
	if other, ok := s.data.Users[idKey(partner)]; ok {
		other.PartnerID = nil
	}
	if err := s.persist(ctx); err != nil {
		return 0, false, err
	}
	return partner, true, nil
}

func (s *Store) Stats(ctx context.Context) (directory.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out directory.Stats
	var paired int64
	for _, rec := range s.data.Users {
		out.TotalUsers++
		if rec.InSearch {
			out.Searching++
		}
		if rec.PartnerID != nil {
			paired++
		}
	}
	out.ActiveDialogs = paired / 2
	return out, nil
}

func (s *Store) ListSearching(ctx context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, rec := range s.sortedRecords() {
		if rec.InSearch && rec.PartnerID == nil {
			ids = append(ids, rec.ID)
			if len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *Store) ListDialogPairs(ctx context.Context, limit int) ([]directory.DialogPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairs []directory.DialogPair
	seen := map[int64]bool{}
	for _, rec := range s.sortedRecords() {
		if rec.PartnerID == nil || seen[rec.ID] || seen[*rec.PartnerID] {
			continue
		}
		pairs = append(pairs, directory.DialogPair{A: rec.ID, B: *rec.PartnerID})
		seen[rec.ID] = true
		seen[*rec.PartnerID] = true
		if len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []directory.User
	for _, rec := range s.sortedRecords() {
		out = append(out, toDomain(rec))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListBlocked(ctx context.Context) ([]directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []directory.User
	for _, rec := range s.sortedRecords() {
		if rec.Blocked {
			out = append(out, toDomain(rec))
		}
	}
	return out, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, rec := range s.sortedRecords() {
		if rec.IsAdmin {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

func (s *Store) CountRecent(ctx context.Context, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-window)
	var count int64
	for _, rec := range s.data.Users {
		reg, err := time.Parse(timeLayout, rec.RegisteredAt)
		if err != nil {
			continue
		}
		if !reg.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// Close uploads the final snapshot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(context.Background())
}

// --- helpers ---

// mutate applies fn to an existing record and persists. Unknown ids are a
// silent no-op, matching the relational backend's point updates.
func (s *Store) mutate(ctx context.Context, id int64, fn func(*record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Users[idKey(id)]
	if !ok {
		return nil
	}
	fn(rec)
	return s.persist(ctx)
}

// sortedRecords returns records most recently registered first. Callers hold
// s.mu.
func (s *Store) sortedRecords() []*record {
	recs := make([]*record, 0, len(s.data.Users))
	for _, rec := range s.data.Users {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].RegisteredAt != recs[j].RegisteredAt {
			return recs[i].RegisteredAt > recs[j].RegisteredAt
		}
		return recs[i].ID > recs[j].ID
	})
	return recs
}

func toDomain(rec *record) directory.User {
	reg, _ := time.Parse(timeLayout, rec.RegisteredAt)
	u := directory.User{
		ID:            rec.ID,
		Handle:        rec.Handle,
		Phone:         rec.Phone,
		RegisteredAt:  reg,
		InSearch:      rec.InSearch,
		Blocked:       rec.Blocked,
		IsAdmin:       rec.IsAdmin,
		Gender:        directory.Gender(rec.Gender),
		SeekingGender: directory.Gender(rec.SeekingGender),
		Age:           rec.Age,
		Interests:     rec.Interests,
	}
	if rec.PartnerID != nil {
		partner := *rec.PartnerID
		u.PartnerID = &partner
	}
	return u
}
