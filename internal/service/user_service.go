package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"user-api/internal/domain"
	"user-api/internal/repository"
	"user-api/internal/storage"
)

var avatarExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var errInvalidAvatar = invalidInput("avatar", "The avatar must be a png, jpg, jpeg, gif or webp image.")

// UserService maneja la consulta y edición de cuentas existentes.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher *PasswordHasher
	store  storage.ObjectStorage
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher *PasswordHasher,
	store storage.ObjectStorage,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
		hasher: hasher,
		store:  store,
	}
}

// UpdateInput contiene los campos opcionales de un PUT /user/:id; nil significa sin cambios.
type UpdateInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
}

// Me devuelve la cuenta autenticada.
func (s *UserService) Me(ctx context.Context, claims Claims) (domain.UserView, error) {
	user, err := loadClaimedUser(ctx, s.users, claims, s.internal)
	if err != nil {
		return domain.UserView{}, err
	}
	return user.View(), nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return domain.UserView{}, err
	}
	return user.View(), nil
}

// List aplica filtros exactos por nombre; los valores se normalizan igual que al guardar.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.UserView, error) {
	if filter.FirstName != "" {
		filter.FirstName = NormalizeName(filter.FirstName)
	}
	if filter.LastName != "" {
		filter.LastName = NormalizeName(filter.LastName)
	}
	if filter.Order != domain.SortDesc {
		filter.Order = domain.SortAsc
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, s.internal("list users", err)
	}
	views := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

// ListPage envuelve List con los metadatos de paginación.
func (s *UserService) ListPage(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	views, err := s.List(ctx, filter)
	if err != nil {
		return domain.UserPage{}, err
	}
	return domain.UserPage{
		Offset:     filter.Offset(),
		Limit:      filter.PerPage,
		PageNumber: filter.Page,
		Users:      views,
	}, nil
}

// UpdateProfile valida todos los campos presentes, luego la contraseña repetida y por último la unicidad.
// Solo se escriben las columnas que cambian.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, in UpdateInput) (domain.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return domain.UserView{}, err
	}

	var username, emailAddr, firstName, lastName, password string
	if in.Username != nil {
		if username = NormalizeUsername(*in.Username); !ValidateUsername(username) {
			return domain.UserView{}, errInvalidUsername
		}
	}
	if in.Email != nil {
		if emailAddr = NormalizeEmail(*in.Email); !ValidateEmail(emailAddr) {
			return domain.UserView{}, errInvalidEmail
		}
	}
	if in.FirstName != nil {
		if firstName = strings.TrimSpace(*in.FirstName); !ValidateName(firstName) {
			return domain.UserView{}, errInvalidFirstName
		}
	}
	if in.LastName != nil {
		if lastName = strings.TrimSpace(*in.LastName); !ValidateName(lastName) {
			return domain.UserView{}, errInvalidLastName
		}
	}
	if in.Password != nil {
		if password = strings.TrimSpace(*in.Password); !ValidatePassword(password) {
			return domain.UserView{}, errInvalidPassword
		}
	}

	var patch domain.ProfilePatch
	if in.Password != nil {
		match, err := s.hasher.Verify(user.PasswordHash, password)
		if err != nil {
			return domain.UserView{}, s.internal("verify password", err)
		}
		if match == PasswordMatched {
			return domain.UserView{}, errSamePassword
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return domain.UserView{}, s.internal("hash password", err)
		}
		patch.PasswordHash = &hash
	}

	if in.Username != nil && username != user.Username {
		taken, err := s.users.ExistsByUsername(ctx, username)
		if err != nil {
			return domain.UserView{}, s.internal("check username", err)
		}
		if taken {
			return domain.UserView{}, errUsernameInUse
		}
		patch.Username = &username
	}
	if in.Email != nil && emailAddr != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, emailAddr)
		if err != nil {
			return domain.UserView{}, s.internal("check email", err)
		}
		if taken {
			return domain.UserView{}, errEmailInUse
		}
		patch.Email = &emailAddr
	}
	if in.FirstName != nil {
		firstName = NormalizeName(firstName)
		patch.FirstName = &firstName
	}
	if in.LastName != nil {
		lastName = NormalizeName(lastName)
		patch.LastName = &lastName
	}

	updated, err := s.users.UpdateProfile(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.UserView{}, userNotFound(id)
		case conflictFor(err) != nil:
			return domain.UserView{}, conflictFor(err)
		}
		return domain.UserView{}, s.internal("update user", err)
	}
	return updated.View(), nil
}

// Delete elimina la cuenta y, si existe, su avatar almacenado.
func (s *UserService) Delete(ctx context.Context, id int64) (string, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return "", s.internal("delete user", err)
	}
	if !deleted {
		return "", userNotFound(id)
	}
	s.removeStoredAvatar(ctx, user.ID, user.Avatar, "")
	return fmt.Sprintf("The user with id '%d' was deleted.", id), nil
}

// UpdateAvatar guarda la imagen como "<id>-avatar.<ext>" y devuelve su URL pública.
func (s *UserService) UpdateAvatar(ctx context.Context, claims Claims, filename string, r io.Reader, size int64, contentType string) (string, error) {
	user, err := loadClaimedUser(ctx, s.users, claims, s.internal)
	if err != nil {
		return "", err
	}
	if s.store == nil {
		return "", s.internal("update avatar", errors.New("object storage not configured"))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	defaultType, ok := avatarExtensions[ext]
	if !ok {
		return "", errInvalidAvatar
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultType
	}

	key := fmt.Sprintf("%d-avatar.%s", user.ID, ext)
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return "", s.internal("store avatar", err)
	}

	avatarURL := s.store.URL(key)
	if err := s.users.SetAvatar(ctx, user.ID, avatarURL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errUnauthorized
		}
		return "", s.internal("save avatar", err)
	}
	s.removeStoredAvatar(ctx, user.ID, user.Avatar, key)
	return avatarURL, nil
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, s.internal("count users", err)
	}
	return n, nil
}

func (s *UserService) load(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, userNotFound(id)
		}
		return domain.User{}, s.internal("load user", err)
	}
	return user, nil
}

// removeStoredAvatar borra un avatar "<id>-avatar.*" previo salvo keep. El avatar por defecto nunca se toca.
func (s *UserService) removeStoredAvatar(ctx context.Context, userID int64, avatarURL, keep string) {
	if s.store == nil {
		return
	}
	prefix := s.store.URL("")
	if !strings.HasPrefix(avatarURL, prefix) {
		return
	}
	key := strings.TrimPrefix(avatarURL, prefix)
	if key == keep || !strings.HasPrefix(key, fmt.Sprintf("%d-avatar.", userID)) {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("delete stored avatar failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *UserService) internal(op string, err error) error {
	s.logger.Error("user operation failed", zap.String("op", op), zap.Error(err))
	return errInternal
}
