package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"user-api/internal/domain"
	"user-api/internal/email"
	"user-api/internal/repository"
	"user-api/internal/service"
	"user-api/internal/storage"
)

type memUserRepo struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) FindByUsernameOrEmail(_ context.Context, identifier string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *memUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsernameOrEmail(ctx, username)
	return err == nil, nil
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByUsernameOrEmail(ctx, email)
	return err == nil, nil
}

func (m *memUserRepo) mutate(id int64, fn func(u *domain.User) error) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return domain.User{}, err
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *memUserRepo) SetLoggedIn(_ context.Context, id int64, loggedIn bool) error {
	_, err := m.mutate(id, func(u *domain.User) error {
		u.LoggedIn = loggedIn
		return nil
	})
	return err
}

func (m *memUserRepo) MarkVerified(_ context.Context, id int64, otp string) (domain.User, error) {
	u, err := m.mutate(id, func(u *domain.User) error {
		if u.VerificationToken != otp || otp == domain.VerificationSentinel {
			return repository.ErrOTPRejected
		}
		u.Verified = true
		u.LoggedIn = true
		u.VerificationToken = domain.VerificationSentinel
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, repository.ErrOTPRejected
	}
	return u, err
}

func (m *memUserRepo) SetAvatar(_ context.Context, id int64, avatarURL string) error {
	_, err := m.mutate(id, func(u *domain.User) error {
		u.Avatar = avatarURL
		return nil
	})
	return err
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id int64, patch domain.ProfilePatch) (domain.User, error) {
	return m.mutate(id, func(u *domain.User) error {
		if patch.Username != nil {
			u.Username = *patch.Username
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.FirstName != nil {
			u.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			u.LastName = *patch.LastName
		}
		if patch.PasswordHash != nil {
			u.PasswordHash = *patch.PasswordHash
		}
		return nil
	})
}

func (m *memUserRepo) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *memUserRepo) List(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if filter.FirstName != "" && u.FirstName != filter.FirstName {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Order == domain.SortDesc {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	start := filter.Offset()
	if start > len(out) {
		start = len(out)
	}
	out = out[start:]
	if filter.PerPage > 0 && len(out) > filter.PerPage {
		out = out[:filter.PerPage]
	}
	return out, nil
}

func (m *memUserRepo) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

type testServer struct {
	router     *gin.Engine
	repo       *memUserRepo
	storageDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, service.AuthOptions{})
}

func newTestServerWith(t *testing.T, opts service.AuthOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemUserRepo()
	hasher := service.NewPasswordHasher(service.Argon2Params{Memory: 1024, Time: 1, Parallelism: 1})
	tokens := service.NewJWTService("secret", "user-api", 0)
	dir := filepath.Join(t.TempDir(), "storage")
	store := storage.NewLocalStorage(dir, "http://127.0.0.1:8000")
	if err := store.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}

	opts.DefaultAvatar = "http://127.0.0.1:8000/storage/default.png"
	authSvc := service.NewAuthService(nil, repo, hasher, tokens, email.NewDisabledSender("disabled in tests"), opts)
	userSvc := service.NewUserService(nil, repo, hasher, store)

	r := NewRouter(nil, RouterConfig{APIPrefix: "/api/v1", StorageDir: dir}, tokens,
		NewAuthHandler(nil, authSvc), NewUserHandler(nil, userSvc))
	return &testServer{router: r, repo: repo, storageDir: dir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func (s *testServer) register(t *testing.T, username, mail string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"firstName": "Jonh",
		"lastName":  "Doe",
		"username":  username,
		"email":     mail,
		"password":  "Password@15",
	})
	var resp struct {
		JWT   *string `json:"jwt"`
		Error *string `json:"error"`
	}
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.JWT == nil || resp.Error != nil {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	return *resp.JWT
}

func TestIndex(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "username123", "hello@gmail.com")

	rec := s.do(t, http.MethodGet, "/", "", nil)
	var resp struct {
		Message    string `json:"message"`
		TotalUsers int64  `json:"totalUsers"`
	}
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Message != "This is a users API" || resp.TotalUsers != 1 {
		t.Fatalf("unexpected index response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("index lives at the root only, got %d under the api prefix", rec.Code)
	}
}

func TestMeHandler(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "username123", "hello@gmail.com")

	rec := s.do(t, http.MethodGet, "/api/v1/user/me", token, nil)
	var resp struct {
		Me map[string]any `json:"me"`
	}
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Me["username"] != "username123" {
		t.Fatalf("unexpected me response %d %s", rec.Code, rec.Body.String())
	}
	if _, leaked := resp.Me["password"]; leaked {
		t.Fatalf("view must not expose password")
	}
	if strings.Contains(rec.Body.String(), "argon2") {
		t.Fatalf("view must not expose the hash")
	}

	rec = s.do(t, http.MethodGet, "/api/v1/user/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestGetAndDeleteHandlers(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "username123", "hello@gmail.com")

	rec := s.do(t, http.MethodGet, "/api/v1/user/1", "", nil)
	var view domain.UserView
	decode(t, rec, &view)
	if rec.Code != http.StatusOK || view.ID != 1 || view.Email != "hello@gmail.com" {
		t.Fatalf("unexpected get response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/user/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/v1/user/1", "", nil)
	var del struct {
		Message string `json:"message"`
	}
	decode(t, rec, &del)
	if del.Message != "The user with id '1' was deleted." {
		t.Fatalf("unexpected delete response %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/user/1", "", nil)
	var missing struct {
		Error string `json:"error"`
	}
	decode(t, rec, &missing)
	if rec.Code != http.StatusOK || missing.Error != "The user with id '1' does not exists" {
		t.Fatalf("expected soft not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListHandler(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice123", "alice@gmail.com")
	s.register(t, "bobby123", "bob@gmail.com")
	s.register(t, "carol123", "carol@gmail.com")

	rec := s.do(t, http.MethodGet, "/api/v1/user/?order=desc", "", nil)
	var all []domain.UserView
	decode(t, rec, &all)
	if len(all) != 3 || all[0].Username != "carol123" {
		t.Fatalf("unexpected list %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/user/?page=1&per_page=2", "", nil)
	var page domain.UserPage
	decode(t, rec, &page)
	if page.Offset != 0 || page.Limit != 2 || page.PageNumber != 1 || len(page.Users) != 2 {
		t.Fatalf("unexpected page %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/user/?order=sideways", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad order, got %d", rec.Code)
	}
}

func TestUpdateHandler(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "username123", "hello@gmail.com")

	rec := s.do(t, http.MethodPut, "/api/v1/user/1", "", map[string]string{"lastName": "SMITH"})
	var view domain.UserView
	decode(t, rec, &view)
	if rec.Code != http.StatusOK || view.LastName != "Smith" || view.FirstName != "Jonh" {
		t.Fatalf("unexpected update response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPut, "/api/v1/user/1", "", map[string]string{"password": "Password@15"})
	var soft struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	decode(t, rec, &soft)
	if rec.Code != http.StatusOK || soft.Field != "password" || soft.Error == "" {
		t.Fatalf("expected same password soft error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateAvatarHandler(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "username123", "hello@gmail.com")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/user/update-profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || !resp.Success || resp.URL != "http://127.0.0.1:8000/storage/1-avatar.png" {
		t.Fatalf("unexpected avatar response %d %s", rec.Code, rec.Body.String())
	}
	data, err := os.ReadFile(filepath.Join(s.storageDir, "1-avatar.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("expected stored avatar, got %q, %v", data, err)
	}

	rec = s.do(t, http.MethodGet, "/storage/1-avatar.png", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Fatalf("expected avatar served statically, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/user/update-profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", rec.Code)
	}
}
