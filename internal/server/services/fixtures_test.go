package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/cryptox"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/storage"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce   sync.Once
	leaderKey  *rsa.PrivateKey
	seniorKey  *rsa.PrivateKey
	keysGenErr error
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		leaderKey, keysGenErr = rsa.GenerateKey(rand.Reader, 2048)
		if keysGenErr != nil {
			return
		}
		seniorKey, keysGenErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keysGenErr)
	return leaderKey, seniorKey
}

func encodedPublic(t *testing.T, k *rsa.PrivateKey) sql.NullString {
	t.Helper()
	s, err := cryptox.EncodePublicKey(&k.PublicKey)
	require.NoError(t, err)
	return sql.NullString{String: s, Valid: true}
}

// --- in-memory collaborators ---

type memIdentities struct {
	actors map[string]*models.Actor
}

func (m *memIdentities) FindActorByEmail(_ context.Context, email string) (*models.Actor, error) {
	a, ok := m.actors[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return a, nil
}

type memCatalog struct {
	repos map[string]*models.RepositoryRecord
}

func (m *memCatalog) FindRepositoryByName(_ context.Context, name string) (*models.RepositoryRecord, error) {
	r, ok := m.repos[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r, nil
}

// memKeys enforces the same (alias, recipient) uniqueness as the database.
type memKeys struct {
	mu         sync.Mutex
	seq        int
	records    map[string]*models.WrappedKey
	persists   int
	persistErr func(n int) error
	deleteErr  error
}

func newMemKeys() *memKeys {
	return &memKeys{records: map[string]*models.WrappedKey{}}
}

func (m *memKeys) AliasExists(_ context.Context, alias string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Alias == alias {
			return true, nil
		}
	}
	return false, nil
}

func (m *memKeys) PersistWrappedKey(_ context.Context, k *models.WrappedKey) (*models.WrappedKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	if m.persistErr != nil {
		if err := m.persistErr(m.persists); err != nil {
			return nil, err
		}
	}
	for _, r := range m.records {
		if r.Alias == k.Alias && r.RecipientID == k.RecipientID {
			return nil, common.ErrConflict
		}
	}
	m.seq++
	rec := *k
	rec.ID = fmt.Sprintf("wk-%d", m.seq)
	rec.CreatedAt = time.Now()
	m.records[rec.ID] = &rec
	return &rec, nil
}

func (m *memKeys) DeleteWrappedKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return common.ErrPersistence
	}
	delete(m.records, id)
	return nil
}

func (m *memKeys) byAlias(alias string) []*models.WrappedKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WrappedKey
	for _, r := range m.records {
		if r.Alias == alias {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// flakyContent overrides single operations of a real content store.
type flakyContent struct {
	ContentStore
	archiveErr error
	deleteErr  func(path string) error
}

func (f *flakyContent) ArchiveDirectory(ctx context.Context, name, tag string) (string, error) {
	if f.archiveErr != nil {
		return "", f.archiveErr
	}
	return f.ContentStore.ArchiveDirectory(ctx, name, tag)
}

func (f *flakyContent) DeleteFile(path string) error {
	if f.deleteErr != nil {
		if err := f.deleteErr(path); err != nil {
			return err
		}
	}
	return f.ContentStore.DeleteFile(path)
}

type flakyObjects struct {
	storage.ObjectStore
	putErr    error
	deleteErr error
}

func (f *flakyObjects) Put(ctx context.Context, key, srcPath string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.ObjectStore.Put(ctx, key, srcPath)
}

func (f *flakyObjects) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ObjectStore.Delete(ctx, key)
}

type flakyEnvelope struct {
	Envelope
	encryptErr error
}

func (f *flakyEnvelope) EncryptFile(ctx context.Context, plainPath, cipherPath, key string) error {
	if f.encryptErr != nil {
		// a partial write the orchestrator has to clean up
		_ = os.WriteFile(cipherPath, []byte("partial"), 0o600)
		return f.encryptErr
	}
	return f.Envelope.EncryptFile(ctx, plainPath, cipherPath, key)
}

// --- fixture ---

const testPassword = "correct horse"

type fixture struct {
	root, work, cipherDir string

	identities *memIdentities
	catalog    *memCatalog
	keys       *memKeys
	fs         *storage.FilesystemStore
	content    *flakyContent
	objects    *flakyObjects
	envelope   *flakyEnvelope

	gate *AuthorizationGate
	svc  *CipherService
	logs *bytes.Buffer

	leaderPriv, seniorPriv *rsa.PrivateKey
}

// newFixture sets up alice (leader, owner of proj1) and bob (senior), both
// live and enrolled, with proj1 holding a single file.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	leaderPriv, seniorPriv := testKeys(t)

	base := t.TempDir()
	f := &fixture{
		root:       filepath.Join(base, "repos"),
		work:       filepath.Join(base, "work"),
		cipherDir:  filepath.Join(base, "cipher"),
		keys:       newMemKeys(),
		leaderPriv: leaderPriv,
		seniorPriv: seniorPriv,
	}

	var err error
	f.fs, err = storage.NewFilesystemStore(f.root, f.work)
	require.NoError(t, err)
	local, err := storage.NewLocalObjectStore(f.cipherDir)
	require.NoError(t, err)

	require.NoError(t, f.fs.CreateRepositoryDir(context.Background(), "proj1"))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "proj1", "main.go"), []byte("package main\n"), 0o644))

	alice := &models.Actor{
		ID: "a-1", Name: "alice", Email: "alice@x.com",
		PasswordVerifier:    []byte(testPassword),
		Role:                models.RoleLeader,
		Status:              models.StatusActive,
		Verified:            true,
		EncryptionPublicKey: encodedPublic(t, leaderPriv),
	}
	bob := &models.Actor{
		ID: "a-2", Name: "bob", Email: "bob@x.com",
		PasswordVerifier:    []byte("bob's password"),
		Role:                models.RoleSenior,
		Status:              models.StatusActive,
		Verified:            true,
		EncryptionPublicKey: encodedPublic(t, seniorPriv),
	}
	f.identities = &memIdentities{actors: map[string]*models.Actor{alice.Email: alice, bob.Email: bob}}
	f.catalog = &memCatalog{repos: map[string]*models.RepositoryRecord{
		"proj1": {ID: "r-1", Name: "proj1", OwnerID: alice.ID},
	}}

	f.content = &flakyContent{ContentStore: f.fs}
	f.objects = &flakyObjects{ObjectStore: local}
	f.envelope = &flakyEnvelope{Envelope: cryptox.NewEnvelope()}

	f.gate = NewAuthorizationGate(f.identities, f.catalog, f.content, f.keys)
	f.gate.verifyPassword = func(password string, _, verifier []byte) bool {
		return password == string(verifier)
	}
	f.logs = &bytes.Buffer{}
	f.svc = NewCipherService(f.gate, f.content, f.objects, f.keys, f.envelope, time.Minute,
		logging.NewJSONLogger(f.logs, slog.LevelDebug))
	return f
}

func (f *fixture) actor(email string) *models.Actor {
	return f.identities.actors[email]
}

func validRequest() ProtectRequest {
	return ProtectRequest{
		RequesterEmail:    "alice@x.com",
		RequesterPassword: testPassword,
		CoRecipientEmail:  "bob@x.com",
		RepositoryName:    "proj1",
		Tag:               "v1",
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
