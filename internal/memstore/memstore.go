// Package memstore is a mutex-guarded, in-process implementation of the
// storage contracts. It backs the test suites and `storage: memory` runs.
// Every document handed out is a deep copy, so callers can never mutate
// stored state without going through a store method.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds committees, motions and users in maps keyed by id.
type Store struct {
	mu         sync.RWMutex
	committees map[primitive.ObjectID]*models.Committee
	motions    map[primitive.ObjectID]*models.Motion
	users      map[primitive.ObjectID]*models.User
	now        func() time.Time
}

var (
	_ storage.CommitteeStore = (*Store)(nil)
	_ storage.MotionStore    = (*Store)(nil)
	_ storage.UserStore      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		committees: make(map[primitive.ObjectID]*models.Committee),
		motions:    make(map[primitive.ObjectID]*models.Motion),
		users:      make(map[primitive.ObjectID]*models.User),
		now:        time.Now,
	}
}

// Committees

func (s *Store) InsertCommittee(_ context.Context, committee *models.Committee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if committee.ID.IsZero() {
		committee.ID = primitive.NewObjectID()
	}
	if _, exists := s.committees[committee.ID]; exists {
		return storage.ErrDuplicate
	}
	s.committees[committee.ID] = cloneCommittee(committee)
	return nil
}

func (s *Store) FindVisibleCommittee(_ context.Context, id primitive.ObjectID, who models.Identity) (*models.Committee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.committees[id]
	if !ok || !c.VisibleTo(who) {
		return nil, storage.ErrNotFound
	}
	return cloneCommittee(c), nil
}

func (s *Store) ListVisibleCommittees(_ context.Context, who models.Identity) ([]models.Committee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Committee, 0)
	for _, c := range s.committees {
		if c.VisibleTo(who) {
			out = append(out, *cloneCommittee(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) ReplaceMembers(_ context.Context, id primitive.ObjectID, version int64, members []models.Member) (*models.Committee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.committees[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if c.Version != version {
		return nil, storage.ErrVersionConflict
	}
	c.Members = cloneMembers(members)
	c.Version++
	c.UpdatedAt = s.now()
	return cloneCommittee(c), nil
}

func (s *Store) SetSettings(_ context.Context, id primitive.ObjectID, settings models.CommitteeSettings) (*models.Committee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.committees[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Settings = &settings
	c.UpdatedAt = s.now()
	return cloneCommittee(c), nil
}

func (s *Store) UpsertHandRaise(_ context.Context, id primitive.ObjectID, raise models.HandRaise) (*models.Committee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.committees[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	replaced := false
	if raise.UserID != nil {
		for i := range c.HandRaises {
			if c.HandRaises[i].UserID != nil && *c.HandRaises[i].UserID == *raise.UserID {
				c.HandRaises[i] = cloneHandRaise(raise)
				replaced = true
				break
			}
		}
	}
	if !replaced {
		c.HandRaises = append(c.HandRaises, cloneHandRaise(raise))
	}
	c.UpdatedAt = s.now()
	return cloneCommittee(c), nil
}

func (s *Store) RemoveHandRaise(_ context.Context, id, handID primitive.ObjectID) (*models.Committee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.committees[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	kept := c.HandRaises[:0]
	for _, h := range c.HandRaises {
		if h.ID != handID {
			kept = append(kept, h)
		}
	}
	c.HandRaises = kept
	c.UpdatedAt = s.now()
	return cloneCommittee(c), nil
}

func (s *Store) DeleteCommittee(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.committees[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.committees, id)
	return nil
}

func (s *Store) RenameMemberRecords(_ context.Context, who models.Identity, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.committees {
		for i := range c.Members {
			if matchesParticipant(c.Members[i].UserID, c.Members[i].Email, who) {
				c.Members[i].Name = name
			}
		}
		for i := range c.HandRaises {
			if matchesParticipant(c.HandRaises[i].UserID, c.HandRaises[i].Email, who) {
				c.HandRaises[i].Name = name
			}
		}
	}
	return nil
}

func matchesParticipant(userID *primitive.ObjectID, email string, who models.Identity) bool {
	if userID != nil && *userID == who.ID {
		return true
	}
	return email != "" && who.Email != "" && strings.EqualFold(email, who.Email)
}

// Motions

func (s *Store) InsertMotion(_ context.Context, motion *models.Motion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if motion.ID.IsZero() {
		motion.ID = primitive.NewObjectID()
	}
	if _, exists := s.motions[motion.ID]; exists {
		return storage.ErrDuplicate
	}
	s.motions[motion.ID] = cloneMotion(motion)
	return nil
}

func (s *Store) FindMotion(_ context.Context, id primitive.ObjectID) (*models.Motion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.motions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneMotion(m), nil
}

func (s *Store) ListMotions(_ context.Context, committeeID primitive.ObjectID) ([]models.Motion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Motion, 0)
	for _, m := range s.motions {
		if m.CommitteeID == committeeID {
			out = append(out, *cloneMotion(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) PushDiscussion(_ context.Context, id primitive.ObjectID, entry models.DiscussionEntry) (*models.Motion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.motions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m.Discussion = append(m.Discussion, entry)
	m.UpdatedAt = s.now()
	return cloneMotion(m), nil
}

func (s *Store) UpsertVote(_ context.Context, id primitive.ObjectID, vote models.Vote) (*models.Motion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.motions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	replaced := false
	for i := range m.Votes {
		if m.Votes[i].VoterID == vote.VoterID {
			m.Votes[i] = vote
			replaced = true
			break
		}
	}
	if !replaced {
		m.Votes = append(m.Votes, vote)
	}
	m.UpdatedAt = s.now()
	return cloneMotion(m), nil
}

func (s *Store) SetDecision(_ context.Context, id primitive.ObjectID, record models.DecisionRecord) (*models.Motion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.motions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m.DecisionRecord = &record
	m.Status = record.Outcome
	m.UpdatedAt = s.now()
	return cloneMotion(m), nil
}

func (s *Store) DeleteCommitteeMotions(_ context.Context, committeeID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.motions {
		if m.CommitteeID == committeeID {
			delete(s.motions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) RenameAuthor(_ context.Context, userID primitive.ObjectID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.motions {
		if m.CreatedBy == userID {
			m.CreatedByName = name
		}
		for i := range m.Discussion {
			if m.Discussion[i].AuthorID == userID {
				m.Discussion[i].AuthorName = name
			}
		}
		for i := range m.Votes {
			if m.Votes[i].VoterID == userID {
				m.Votes[i].VoterName = name
			}
		}
		if m.DecisionRecord != nil && m.DecisionRecord.RecordedBy == userID {
			m.DecisionRecord.RecordedByName = name
		}
	}
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range s.users {
		if u.Email == email {
			return storage.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = email
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateUserName(_ context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = s.now()
	out := *u
	return &out, nil
}
