package user

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/postgres"
)

const maxHandleAttempts = 5

type Config struct {
	DB     *pgxpool.Pool
	Tokens *Tokens
}

type Service struct {
	db       *pgxpool.Pool
	tokens   *Tokens
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		db:       c.DB,
		tokens:   c.Tokens,
		validate: validator.New(),
	}
}

type SignupRequest struct {
	Name     string      `json:"name" validate:"required,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=student instructor"`
}

// Signup creates an account. Admins are never created through signup.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*domain.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid signup: %v", err),
			errors.WithCause(err),
		)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = domain.RoleStudent
	}

	u := &domain.User{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserActive,
		CreatedAt:    time.Now().UTC(),
	}

	for i := 0; ; i++ {
		u.Handle, err = NewHandle(u.Name)
		if err != nil {
			return nil, err
		}

		_, err = s.db.Exec(ctx, `
INSERT INTO users (id, handle, name, email, password_hash, role, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
			u.ID, u.Handle, u.Name, u.Email, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
		)
		if err == nil {
			return u, nil
		}
		if !postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", err)
		}

		taken, terr := emailTaken(ctx, s.db, u.Email)
		if terr != nil {
			return nil, terr
		}
		if taken {
			return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("email already registered"))
		}
		if i+1 == maxHandleAttempts {
			return nil, fmt.Errorf("insert user: no free handle after %d attempts: %w", maxHandleAttempts, err)
		}
	}
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func emailTaken(ctx context.Context, db queryRower, email string) (bool, error) {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1);`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login checks the credentials and returns an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	u, err := s.getOne(ctx, selectUsers+` WHERE email = $1;`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	if u.Status != domain.UserActive {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("account is %s", u.Status))
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{Token: token, User: u}, nil
}

var errInvalidCredentials = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid email or password"))

// Authenticate resolves an access token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	u, err := s.Get(ctx, id)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("account no longer exists"))
	}
	if err != nil {
		return nil, err
	}
	if u.Status != domain.UserActive {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("account is %s", u.Status))
	}

	return u, nil
}

const selectUsers = `
SELECT id, handle, name, email, password_hash, role, status, avatar, created_at
FROM users`

func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.User, error) {
	return s.getOne(ctx, selectUsers+` WHERE id = $1;`, id)
}

func (s *Service) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

func (s *Service) UpdateProfile(ctx context.Context, id domain.ID, req UpdateProfileRequest) (*domain.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid profile: %v", err),
			errors.WithCause(err),
		)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET name = $2, avatar = $3 WHERE id = $1;`,
		id, strings.TrimSpace(req.Name), req.Avatar)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.NotFound("user not found")
	}

	return s.Get(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, id domain.ID, current, next string) error {
	if err := s.validate.Var(next, "required,min=8,max=72"); err != nil {
		return errors.InvalidArgument("new password must be 8 to 72 characters")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("current password is incorrect"))
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1;`, id, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

type ListUsersRequest struct {
	Role   domain.Role
	Status domain.UserStatus
}

// ListUsers returns users matching the non-empty filters, newest first.
func (s *Service) ListUsers(ctx context.Context, req ListUsersRequest) ([]domain.User, error) {
	rows, err := s.db.Query(ctx, selectUsers+`
WHERE ($1 = '' OR role = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC;`, string(req.Role), string(req.Status))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	return users, nil
}

// SetStatus activates or deactivates an account. Admin accounts cannot be deactivated.
func (s *Service) SetStatus(ctx context.Context, id domain.ID, status domain.UserStatus) error {
	if status != domain.UserActive && status != domain.UserInactive {
		return errors.InvalidArgument("unsupported status %q", status)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET status = $2 WHERE id = $1 AND role <> 'admin';`, id, status)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("user not found or not editable")
	}
	return nil
}

// ListStudents returns every active student in signup order, which is the tie-break order
// of the leaderboard.
func (s *Service) ListStudents(ctx context.Context) ([]domain.Student, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, handle, name, avatar
FROM users
WHERE role = 'student' AND status = 'active'
ORDER BY created_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	students, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Student, error) {
		var st domain.Student
		err := r.Scan(&st.ID, &st.Handle, &st.Name, &st.Avatar)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan students: %w", err)
	}

	return students, nil
}

func scanUser(r pgx.CollectableRow) (domain.User, error) {
	var u domain.User
	err := r.Scan(&u.ID, &u.Handle, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.Avatar, &u.CreatedAt)
	return u, err
}

func HashPassword(pwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

const handleAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewHandle returns a public user handle: up to three letters of the name followed by random
// characters, seven characters in total, e.g. "TIN59PR".
func NewHandle(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() == 3 {
			break
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}

	for b.Len() < 7 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(handleAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate handle: %w", err)
		}
		b.WriteByte(handleAlphabet[n.Int64()])
	}

	return b.String(), nil
}
