package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/dbx"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/actors"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/projects"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/wrappedkeys"
)

// memManager is an in-memory repomanager.RepositoryManager. The handle
// passed to the factories is ignored.
type memManager struct {
	mu       sync.Mutex
	seq      int
	actors   map[string]*models.Actor
	repos    map[string]*models.RepositoryRecord
	members  map[string][]string
	keys     map[string]*models.WrappedKey
	addErr   error
	createFn func(*models.RepositoryRecord) error
}

func newMemManager() *memManager {
	return &memManager{
		actors:  map[string]*models.Actor{},
		repos:   map[string]*models.RepositoryRecord{},
		members: map[string][]string{},
		keys:    map[string]*models.WrappedKey{},
	}
}

func (m *memManager) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Actors(dbx.DBTX) actors.Repository            { return memActorRepo{m} }
func (m *memManager) Projects(dbx.DBTX) projects.Repository        { return memProjectRepo{m} }
func (m *memManager) WrappedKeys(dbx.DBTX) wrappedkeys.Repository  { return memKeyRepo{m} }

func (m *memManager) addActor(a *models.Actor) *models.Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextID("a")
	}
	m.actors[a.ID] = a
	return a
}

type memActorRepo struct{ m *memManager }

func (r memActorRepo) Create(_ context.Context, a *models.Actor) (*models.Actor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.actors {
		if existing.Email == a.Email {
			return nil, common.ErrConflict
		}
	}
	c := *a
	c.ID = r.m.nextID("a")
	c.CreatedAt = time.Now()
	r.m.actors[c.ID] = &c
	return &c, nil
}

func (r memActorRepo) GetByEmail(_ context.Context, email string) (*models.Actor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.actors {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memActorRepo) GetByID(_ context.Context, id string) (*models.Actor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a, ok := r.m.actors[id]; ok {
		return a, nil
	}
	return nil, common.ErrNotFound
}

func (r memActorRepo) update(id string, fn func(a *models.Actor) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.actors[id]
	if !ok {
		return common.ErrNotFound
	}
	return fn(a)
}

func (r memActorRepo) SetEncryptionKey(_ context.Context, id, key string) error {
	return r.update(id, func(a *models.Actor) error {
		if a.HasEncryptionKey() {
			return common.ErrConflict
		}
		a.EncryptionPublicKey = sql.NullString{String: key, Valid: true}
		return nil
	})
}

func (r memActorRepo) SetSigningKey(_ context.Context, id, key string) error {
	return r.update(id, func(a *models.Actor) error {
		if a.HasSigningKey() {
			return common.ErrConflict
		}
		a.SigningPublicKey = sql.NullString{String: key, Valid: true}
		return nil
	})
}

func (r memActorRepo) SetStatus(_ context.Context, id string, status models.Status) error {
	return r.update(id, func(a *models.Actor) error { a.Status = status; return nil })
}

func (r memActorRepo) SetVerified(_ context.Context, id string, verified bool) error {
	return r.update(id, func(a *models.Actor) error { a.Verified = verified; return nil })
}

func (r memActorRepo) SetRole(_ context.Context, id string, role models.Role) error {
	return r.update(id, func(a *models.Actor) error { a.Role = role; return nil })
}

type memProjectRepo struct{ m *memManager }

func (r memProjectRepo) Create(_ context.Context, rec *models.RepositoryRecord) (*models.RepositoryRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createFn != nil {
		if err := r.m.createFn(rec); err != nil {
			return nil, err
		}
	}
	if _, ok := r.m.repos[rec.Name]; ok {
		return nil, common.ErrConflict
	}
	c := *rec
	c.ID = r.m.nextID("r")
	c.CreatedAt = time.Now()
	r.m.repos[c.Name] = &c
	return &c, nil
}

func (r memProjectRepo) GetByName(_ context.Context, name string) (*models.RepositoryRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rec, ok := r.m.repos[name]; ok {
		return rec, nil
	}
	return nil, common.ErrNotFound
}

func (r memProjectRepo) AddMember(_ context.Context, repositoryID, actorID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.addErr != nil {
		return r.m.addErr
	}
	for _, id := range r.m.members[repositoryID] {
		if id == actorID {
			return common.ErrConflict
		}
	}
	r.m.members[repositoryID] = append(r.m.members[repositoryID], actorID)
	return nil
}

type memKeyRepo struct{ m *memManager }

func (r memKeyRepo) Create(_ context.Context, k *models.WrappedKey) (*models.WrappedKey, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.keys {
		if existing.Alias == k.Alias && existing.RecipientID == k.RecipientID {
			return nil, common.ErrConflict
		}
	}
	c := *k
	c.ID = r.m.nextID("wk")
	r.m.keys[c.ID] = &c
	return &c, nil
}

func (r memKeyRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.keys[id]; !ok {
		return common.ErrPersistence
	}
	delete(r.m.keys, id)
	return nil
}

func (r memKeyRepo) AliasExists(_ context.Context, alias string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, k := range r.m.keys {
		if k.Alias == alias {
			return true, nil
		}
	}
	return false, nil
}
