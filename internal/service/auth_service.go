package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"user-api/internal/domain"
	"user-api/internal/email"
	"user-api/internal/repository"
)

// AuthService coordina registro, verificación, login y logout.
type AuthService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	hasher        *PasswordHasher
	tokens        *JWTService
	mailer        email.Sender
	loginLimiter  AttemptLimiter
	verifyLimiter AttemptLimiter
	defaultAvatar string
	verifyURL     func(otp string) string
}

// AuthOptions agrupa las dependencias opcionales de AuthService.
type AuthOptions struct {
	LoginLimiter    AttemptLimiter
	VerifyLimiter   AttemptLimiter
	DefaultAvatar   string
	VerificationURL func(otp string) string
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher *PasswordHasher,
	tokens *JWTService,
	mailer email.Sender,
	opts AuthOptions,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = email.NewDisabledSender("email sender not configured")
	}
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = unlimitedAttempts{}
	}
	if opts.VerifyLimiter == nil {
		opts.VerifyLimiter = unlimitedAttempts{}
	}
	if opts.VerificationURL == nil {
		opts.VerificationURL = func(otp string) string { return "/auth/verify/" + otp }
	}
	return &AuthService{
		logger:        logger,
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		mailer:        mailer,
		loginLimiter:  opts.LoginLimiter,
		verifyLimiter: opts.VerifyLimiter,
		defaultAvatar: opts.DefaultAvatar,
		verifyURL:     opts.VerificationURL,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Register crea la cuenta pendiente de verificación, emite un token y envía el OTP por correo.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	username := NormalizeUsername(in.Username)
	emailAddr := NormalizeEmail(in.Email)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	password := strings.TrimSpace(in.Password)

	switch {
	case !ValidateUsername(username):
		return "", errInvalidUsername
	case !ValidateEmail(emailAddr):
		return "", errInvalidEmail
	case !ValidateName(firstName):
		return "", errInvalidFirstName
	case !ValidateName(lastName):
		return "", errInvalidLastName
	case !ValidatePassword(password):
		return "", errInvalidPassword
	}

	otp, err := generateOTP()
	if err != nil {
		return "", s.internal("generate otp", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", s.internal("hash password", err)
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return "", s.internal("check username", err)
	}
	if taken {
		return "", errUsernameInUse
	}
	taken, err = s.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return "", s.internal("check email", err)
	}
	if taken {
		return "", errEmailInUse
	}

	user := domain.User{
		Username:                   username,
		Email:                      emailAddr,
		PasswordHash:               hash,
		FirstName:                  NormalizeName(firstName),
		LastName:                   NormalizeName(lastName),
		Avatar:                     s.defaultAvatar,
		VerificationToken:          otp,
		VerificationTokenCreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if conflictErr := conflictFor(err); conflictErr != nil {
			return "", conflictErr
		}
		return "", s.internal("create user", err)
	}

	token, err := s.tokens.Encode(ClaimsFor(user))
	if err != nil {
		return "", s.internal("issue token", err)
	}

	s.sendVerification(ctx, user, otp)
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return token, nil
}

// Login autentica con username o email y marca la sesión como activa.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (string, error) {
	identifier := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	if identifier == "" {
		return "", errUnknownAccount
	}
	if ok, retry := s.loginLimiter.Allow(ctx, identifier); !ok {
		return "", rateLimited(retry)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errUnknownAccount
		}
		return "", s.internal("find user", err)
	}

	match, err := s.hasher.Verify(user.PasswordHash, strings.TrimSpace(password))
	if err != nil {
		return "", s.internal("verify password", err)
	}
	if match == PasswordMismatch {
		return "", errBadCredential
	}

	if err := s.users.SetLoggedIn(ctx, user.ID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errUnknownAccount
		}
		return "", s.internal("mark logged in", err)
	}
	token, err := s.tokens.Encode(ClaimsFor(user))
	if err != nil {
		return "", s.internal("issue token", err)
	}
	return token, nil
}

// Verify consume el OTP pendiente de la cuenta autenticada y emite un token nuevo.
func (s *AuthService) Verify(ctx context.Context, claims Claims, otp string) (string, error) {
	user, err := loadClaimedUser(ctx, s.users, claims, s.internal)
	if err != nil {
		return "", err
	}
	if ok, retry := s.verifyLimiter.Allow(ctx, strconv.FormatInt(user.ID, 10)); !ok {
		return "", rateLimited(retry)
	}

	otp = strings.TrimSpace(otp)
	if user.VerificationToken == domain.VerificationSentinel ||
		subtle.ConstantTimeCompare([]byte(user.VerificationToken), []byte(otp)) != 1 {
		return "", errInvalidOTP
	}

	// MarkVerified repite la comparación en el UPDATE y pierde ante una verificación concurrente.
	verified, err := s.users.MarkVerified(ctx, user.ID, otp)
	if err != nil {
		if errors.Is(err, repository.ErrOTPRejected) {
			return "", errInvalidOTP
		}
		return "", s.internal("mark verified", err)
	}
	fresh, err := s.tokens.Encode(ClaimsFor(verified))
	if err != nil {
		return "", s.internal("issue token", err)
	}
	s.logger.Info("user verified", zap.Int64("user_id", verified.ID))
	return fresh, nil
}

// Logout marca la sesión como cerrada. El token sigue siendo válido criptográficamente.
func (s *AuthService) Logout(ctx context.Context, claims Claims) error {
	if err := s.users.SetLoggedIn(ctx, claims.UserID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUnauthorized
		}
		return s.internal("mark logged out", err)
	}
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, user domain.User, otp string) {
	body, err := email.RenderVerification(email.VerificationData{
		FullName:         user.FirstName + " " + user.LastName,
		Email:            user.Email,
		Code:             otp,
		VerificationLink: s.verifyURL(otp),
	})
	if err != nil {
		s.logger.Warn("render verification email failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return
	}
	if err := s.mailer.Send(ctx, email.VerificationSubject, user.Email, body); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.Int64("user_id", user.ID))
	}
}

func (s *AuthService) internal(op string, err error) error {
	s.logger.Error("auth operation failed", zap.String("op", op), zap.Error(err))
	return errInternal
}

// loadClaimedUser carga la cuenta de los claims; si ya no existe la petición no está autorizada.
func loadClaimedUser(
	ctx context.Context,
	users repository.UserRepository,
	claims Claims,
	internal func(string, error) error,
) (domain.User, error) {
	user, err := users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, errUnauthorized
		}
		return domain.User{}, internal("load claimed user", err)
	}
	return user, nil
}

func conflictFor(err error) *Error {
	switch {
	case errors.Is(err, repository.ErrUsernameTaken):
		return errUsernameInUse
	case errors.Is(err, repository.ErrEmailTaken):
		return errEmailInUse
	}
	return nil
}

// generateOTP devuelve un código de 6 dígitos en [100000, 999999], nunca el centinela.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
