package tours_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/mailer"
	"github.com/goliatone/go-tours/middleware/ratelimit"
	"github.com/goliatone/go-tours/resource"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	tours.BcryptCost = bcrypt.MinCost
}

type testConfig struct {
	production bool
	expiration time.Duration
}

func (c testConfig) GetSigningKey() string { return "test-signing-key-0123456789" }
func (c testConfig) GetTokenExpiration() time.Duration {
	if c.expiration > 0 {
		return c.expiration
	}
	return time.Hour
}
func (c testConfig) GetCookieExpiration() time.Duration { return 24 * time.Hour }
func (c testConfig) GetContextKey() string              { return "jwt" }
func (c testConfig) GetAuthScheme() string              { return "Bearer" }
func (c testConfig) GetIssuer() string                  { return "natours-test" }
func (c testConfig) IsProduction() bool                 { return c.production }

func notFound(id string) error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id})
}

// memUsers is an in memory UserStore that also serves the admin users
// resource
type memUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*tours.User
	saveErr error
}

func newMemUsers() *memUsers {
	return &memUsers{records: map[uuid.UUID]*tours.User{}}
}

func (m *memUsers) find(match func(u *tours.User) bool) (*tours.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.records {
		if u.Active && match(u) {
			cp := *u
			return &cp, true
		}
	}
	return nil, false
}

func (m *memUsers) FindByID(_ context.Context, id string) (*tours.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound(id)
	}
	if u, ok := m.find(func(u *tours.User) bool { return u.ID == uid }); ok {
		return u, nil
	}
	return nil, notFound(id)
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*tours.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if u, ok := m.find(func(u *tours.User) bool { return u.Email == email }); ok {
		return u, nil
	}
	return nil, notFound(email)
}

func (m *memUsers) FindByResetToken(_ context.Context, hashed string, now time.Time) (*tours.User, error) {
	u, ok := m.find(func(u *tours.User) bool {
		return u.PasswordResetToken != "" && u.PasswordResetToken == hashed &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
	if !ok {
		return nil, notFound("reset token")
	}
	return u, nil
}

func (m *memUsers) Register(_ context.Context, user *tours.User) (*tours.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.records {
		if u.Email == user.Email {
			return nil, resource.NewDuplicateKeyError(nil, "email", user.Email)
		}
	}

	if user.Role == "" {
		user.Role = tours.RoleUser
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Active = true

	cp := *user
	m.records[user.ID] = &cp
	return user, nil
}

func (m *memUsers) Save(ctx context.Context, user *tours.User) (*tours.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.records[user.ID]; !ok {
		return nil, notFound(user.ID.String())
	}
	cp := *user
	m.records[user.ID] = &cp
	return user, nil
}

// stored returns the persisted record, inactive users included
func (m *memUsers) stored(id uuid.UUID) *tours.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.records[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *memUsers) New() *tours.User { return &tours.User{} }

func (m *memUsers) List(_ context.Context, _ resource.Query) ([]*tours.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*tours.User{}
	for _, u := range m.records {
		if u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memUsers) Get(ctx context.Context, id string, _ ...string) (*tours.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, resource.NewCastError("id", id)
	}
	u, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, resource.NewNotFoundError(id)
	}
	return u, nil
}

func (m *memUsers) Create(ctx context.Context, user *tours.User) (*tours.User, error) {
	return m.Register(ctx, user)
}

func (m *memUsers) Update(ctx context.Context, _ string, user *tours.User) (*tours.User, error) {
	return m.Save(ctx, user)
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return resource.NewCastError("id", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[uid]; !ok {
		return resource.NewNotFoundError(id)
	}
	delete(m.records, uid)
	return nil
}

// memCollection is an in memory resource.Collection. Only equality and
// in filters are understood, through field.
type memCollection[T any] struct {
	mu      sync.Mutex
	records []T
	newFn   func() T
	getID   func(T) uuid.UUID
	setID   func(T, uuid.UUID)
	field   func(T, string) any
	unique  func(T) (string, any)
	failure error
}

func (m *memCollection[T]) New() T { return m.newFn() }

func (m *memCollection[T]) List(_ context.Context, q resource.Query) ([]T, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		var zero []T
		return zero, 0, m.failure
	}

	out := []T{}
	for _, r := range m.records {
		if m.matches(r, q.Filters) {
			out = append(out, r)
		}
	}
	total := len(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (m *memCollection[T]) matches(r T, filters []resource.Filter) bool {
	if m.field == nil {
		return true
	}
	for _, f := range filters {
		switch f.Op {
		case resource.OpEq:
			if m.field(r, f.Field) != f.Value {
				return false
			}
		case resource.OpIn:
			values, _ := f.Value.([]any)
			found := false
			for _, v := range values {
				if m.field(r, f.Field) == v {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (m *memCollection[T]) Get(_ context.Context, id string, _ ...string) (T, error) {
	var zero T
	uid, err := uuid.Parse(id)
	if err != nil {
		return zero, resource.NewCastError("id", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if m.getID(r) == uid {
			return r, nil
		}
	}
	return zero, resource.NewNotFoundError(id)
}

func (m *memCollection[T]) Create(_ context.Context, record T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unique != nil {
		field, value := m.unique(record)
		for _, r := range m.records {
			if _, v := m.unique(r); v == value {
				var zero T
				return zero, resource.NewDuplicateKeyError(nil, field, value)
			}
		}
	}

	if m.getID(record) == uuid.Nil {
		m.setID(record, uuid.New())
	}
	m.records = append(m.records, record)
	return record, nil
}

func (m *memCollection[T]) Update(ctx context.Context, id string, record T) (T, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return record, err
	}
	return record, nil
}

func (m *memCollection[T]) Delete(_ context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return resource.NewCastError("id", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if m.getID(r) == uid {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return resource.NewNotFoundError(id)
}

func newMemTours() *memCollection[*tours.Tour] {
	handlers := tours.TourHandlers()
	return &memCollection[*tours.Tour]{
		newFn: handlers.NewRecord,
		getID: handlers.GetID,
		setID: handlers.SetID,
		field: func(t *tours.Tour, name string) any {
			switch name {
			case "slug":
				return t.Slug
			case "name":
				return t.Name
			case "difficulty":
				return t.Difficulty
			}
			return nil
		},
		unique: func(t *tours.Tour) (string, any) { return "name", t.Name },
	}
}

func newMemReviews() *memCollection[*tours.Review] {
	handlers := tours.ReviewHandlers()
	return &memCollection[*tours.Review]{
		newFn: handlers.NewRecord,
		getID: handlers.GetID,
		setID: handlers.SetID,
		field: func(r *tours.Review, name string) any {
			switch name {
			case "tour":
				return r.TourID
			case "user":
				return r.UserID
			}
			return nil
		},
	}
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []tours.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e tours.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []tours.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tours.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// blockingMailer holds every send until the caller context is done
type blockingMailer struct{}

func (blockingMailer) Send(ctx context.Context, _ mailer.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

// MockMailer implements tours.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type testEnv struct {
	app      *fiber.App
	users    *memUsers
	tours    *memCollection[*tours.Tour]
	reviews  *memCollection[*tours.Review]
	mailer   *mailer.Dev
	auther   *tours.Auther
	activity *recordingSink

	clockMu sync.Mutex
	now     time.Time
}

type envOption func(*tours.Services)

func withMailer(m tours.Mailer) envOption {
	return func(s *tours.Services) { s.Mailer = m }
}

func newTestEnv(t *testing.T, cfg testConfig, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newMemUsers(),
		tours:    newMemTours(),
		reviews:  newMemReviews(),
		mailer:   mailer.NewDev(zap.NewNop()),
		activity: &recordingSink{},
		now:      time.Now(),
	}

	env.auther = tours.NewAuthenticator(env.users, cfg).
		WithLogger(tours.NopLogger()).
		WithClock(env.clock).
		WithActivitySink(env.activity)

	httpAuth := tours.NewHTTPAuthenticator(env.auther, cfg).
		WithActivitySink(env.activity)
	httpAuth.Logger = tours.NopLogger()

	svc := tours.Services{
		Users:       env.users,
		UserRecords: env.users,
		Tours:       env.tours,
		Reviews:     env.reviews,
		Mailer:      env.mailer,
		Activity:    env.activity,
		Logger:      tours.NopLogger(),
	}
	for _, opt := range opts {
		opt(&svc)
	}

	quiet := false
	srv := tours.NewServer(tours.ServerConfig{
		Production: cfg.production,
		RateLimit:  ratelimit.Config{Max: 10000},
		RequestLog: &quiet,
		Logger:     tours.NopLogger(),
	}, httpAuth, svc)
	env.app = srv.WrappedRouter()

	return env
}

func (e *testEnv) clock() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	e.now = e.now.Add(d)
}

// seedUser stores an active user with password and returns it
func (e *testEnv) seedUser(t *testing.T, email, password string, role tours.UserRole) *tours.User {
	t.Helper()
	hash, err := tours.HashPassword(password)
	require.NoError(t, err)

	user, err := e.users.Register(context.Background(), &tours.User{
		Name:         "Test " + string(role),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) token(t *testing.T, user *tours.User) string {
	t.Helper()
	token, err := e.auther.IssueToken(user)
	require.NoError(t, err)
	return token
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

type response struct {
	code    int
	body    map[string]any
	raw     string
	cookies []*http.Cookie
}

func (r response) message() string {
	msg, _ := r.body["message"].(string)
	return msg
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) do(t *testing.T, r request) response {
	t.Helper()

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{code: resp.StatusCode, raw: string(raw), cookies: resp.Cookies()}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

var resetLink = regexp.MustCompile(`resetPassword/([0-9a-f]{64})`)

// lastResetToken pulls the plaintext token out of the last email sent
func (e *testEnv) lastResetToken(t *testing.T) string {
	t.Helper()
	sent := e.mailer.Sent()
	require.NotEmpty(t, sent)
	m := resetLink.FindStringSubmatch(sent[len(sent)-1].Body)
	require.Len(t, m, 2, sent[len(sent)-1].Body)
	return m[1]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
