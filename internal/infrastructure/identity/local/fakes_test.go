package local

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

type memUsers struct {
	mu    sync.Mutex
	seq   int
	byID  map[string]*ports.StoredUser
	email map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*ports.StoredUser{}, email: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, u *ports.StoredUser) (*ports.StoredUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[u.Email]; ok {
		return nil, domain.ErrUserExists
	}
	m.seq++
	cp := *u
	cp.ID = "user-" + strconv.Itoa(m.seq)
	cp.AppMetadata = map[string]any{}
	for k, v := range u.AppMetadata {
		cp.AppMetadata[k] = v
	}
	cp.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cp.UpdatedAt = cp.CreatedAt
	m.byID[cp.ID] = &cp
	m.email[cp.Email] = cp.ID
	out := cp
	return &out, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*ports.StoredUser, error) {
	m.mu.Lock()
	id, ok := m.email[email]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *memUsers) FindByID(_ context.Context, id string) (*ports.StoredUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	cp.AppMetadata = map[string]any{}
	for k, v := range u.AppMetadata {
		cp.AppMetadata[k] = v
	}
	return &cp, nil
}

func (m *memUsers) UpdateMetadata(ctx context.Context, id string, patch map[string]any, unlessSet string) (*ports.StoredUser, error) {
	m.mu.Lock()
	u, ok := m.byID[id]
	if ok && unlessSet != "" {
		if _, set := u.AppMetadata[unlessSet]; set {
			m.mu.Unlock()
			return nil, domain.ErrMetadataConflict
		}
	}
	if ok {
		for k, v := range patch {
			if v == nil {
				delete(u.AppMetadata, k)
				continue
			}
			u.AppMetadata[k] = v
		}
	}
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = true
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	live map[string]string
}

func newMemSessions() *memSessions { return &memSessions{live: map[string]string{}} }

func (m *memSessions) Create(_ context.Context, sid, uid string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[sid] = uid
	return nil
}

func (m *memSessions) Lookup(_ context.Context, sid string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.live[sid]
	return uid, ok, nil
}

func (m *memSessions) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, sid)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

type memOTPs struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemOTPs() *memOTPs { return &memOTPs{tokens: map[string]string{}} }

func (m *memOTPs) Save(_ context.Context, digest, email string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[digest] = email
	return nil
}

func (m *memOTPs) Consume(_ context.Context, digest string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.tokens[digest]
	delete(m.tokens, digest)
	return email, ok, nil
}

type capturedMail struct {
	to, link string
}

type memMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *memMailer) SendMagicLink(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{to: to, link: link})
	return nil
}

func (m *memMailer) last() (capturedMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return capturedMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}
