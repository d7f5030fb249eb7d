package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-auth-state/provider/local"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserModel is the Bun model for console accounts.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// UserRepository implements local.Users on top of a generic Bun repository.
type UserRepository struct {
	repository.Repository[*UserModel]
}

var _ local.Users = (*UserRepository)(nil)

// NewUserRepository creates a new repository.
func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{
		Repository: repository.NewRepository(db, repository.ModelHandlers[*UserModel]{
			NewRecord: func() *UserModel {
				return &UserModel{}
			},
			GetID: func(record *UserModel) uuid.UUID {
				if record == nil {
					return uuid.Nil
				}
				return record.ID
			},
			SetID: func(record *UserModel, id uuid.UUID) {
				if record != nil {
					record.ID = id
				}
			},
			GetIdentifier: func() string {
				return "email"
			},
		}),
	}
}

// GetByEmail implements local.Users.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*local.UserRecord, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, local.ErrUserNotFound
	}

	model, err := r.Repository.GetByIdentifier(ctx, email)
	if err != nil {
		return nil, notFound(err)
	}
	return model.toRecord(), nil
}

// GetByID implements local.Users.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*local.UserRecord, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, local.ErrUserNotFound
	}

	model, err := r.Repository.GetByID(ctx, uid.String())
	if err != nil {
		return nil, notFound(err)
	}
	return model.toRecord(), nil
}

// Create implements local.Users. Emails are unique.
func (r *UserRepository) Create(ctx context.Context, record *local.UserRecord) (*local.UserRecord, error) {
	if record == nil {
		return nil, goerrors.New("user record is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	model, err := fromRecord(record)
	if err != nil {
		return nil, err
	}

	if _, err := r.Repository.GetByIdentifier(ctx, model.Email); err == nil {
		return nil, errUserExists(nil, model.Email)
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	created, err := r.Repository.Create(ctx, model)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errUserExists(err, model.Email)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return created.toRecord(), nil
}

func (m *UserModel) toRecord() *local.UserRecord {
	return &local.UserRecord{
		ID:           m.ID.String(),
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromRecord(record *local.UserRecord) (*UserModel, error) {
	id := uuid.New()
	if record.ID != "" {
		parsed, err := uuid.Parse(record.ID)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user id")
		}
		id = parsed
	}

	model := &UserModel{
		ID:           id,
		Email:        normalizeEmail(record.Email),
		PasswordHash: record.PasswordHash,
		Role:         record.Role,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = model.CreatedAt
	}
	return model, nil
}

func notFound(err error) error {
	if repository.IsRecordNotFound(err) {
		return local.ErrUserNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
}

func errUserExists(cause error, email string) error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, goerrors.CategoryConflict, "user already exists")
	} else {
		err = goerrors.New("user already exists", goerrors.CategoryConflict)
	}
	return err.
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"email": email})
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
