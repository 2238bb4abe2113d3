package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vigintitres/scripta/backend/internal/auth"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the sign-in data did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrEmailTaken indicates a registration attempt for an email that already has a profile.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates an email/password pair that did not match a profile.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrProfileNotFound indicates no profile exists for the requested id.
	ErrProfileNotFound = errors.New("users: profile not found")
)

// IDProvider generates identifiers for newly registered profiles.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for profile management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages user profile records and their sign-in merge semantics.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// Register creates a password-backed profile for a new email address.
func (s *Service) Register(ctx context.Context, email, password, username string) (Profile, error) {
	email = normalize(email)
	if email == "" {
		return Profile{}, ErrInvalidIdentity
	}

	var existing Profile
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return Profile{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Profile{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Profile{}, err
	}

	name := normalize(username)
	if name == "" {
		name = defaultUsername(email)
	}
	profile := Profile{
		ID:           id,
		Email:        email,
		Username:     name,
		DisplayName:  name,
		PasswordHash: hash,
		Admin:        false,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Authenticate resolves a profile from an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).Where("email = ?", normalize(email)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return Profile{}, err
	}
	if profile.PasswordHash == "" || !auth.CheckPassword(profile.PasswordHash, password) {
		return Profile{}, ErrInvalidCredentials
	}
	return profile, nil
}

// SignInIdentity carries the fields an external identity provider supplies at sign-in.
type SignInIdentity struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// EnsureProfile creates the profile on first sign-in and merges it on every later one.
// Existing non-empty fields are preserved; missing fields are defaulted. The admin
// flag, once true, is never reset by the merge.
func (s *Service) EnsureProfile(ctx context.Context, identity SignInIdentity) (Profile, error) {
	id := normalize(identity.ID)
	if id == "" {
		return Profile{}, ErrInvalidIdentity
	}

	var profile Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = Profile{
			ID:          id,
			Email:       normalize(identity.Email),
			Username:    defaultUsername(identity.Email),
			DisplayName: normalize(identity.DisplayName),
			AvatarURL:   normalize(identity.AvatarURL),
			Admin:       false,
			CreatedAt:   s.now(),
		}
		if profile.DisplayName == "" {
			profile.DisplayName = profile.Username
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return Profile{}, err
		}
		return profile, nil
	}
	if err != nil {
		return Profile{}, err
	}

	updates := map[string]interface{}{}
	if profile.Email == "" && normalize(identity.Email) != "" {
		updates["email"] = normalize(identity.Email)
	}
	if profile.Username == "" {
		updates["username"] = defaultUsername(identity.Email)
	}
	if profile.DisplayName == "" && normalize(identity.DisplayName) != "" {
		updates["display_name"] = normalize(identity.DisplayName)
	}
	if profile.AvatarURL == "" && normalize(identity.AvatarURL) != "" {
		updates["avatar_url"] = normalize(identity.AvatarURL)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return Profile{}, err
		}
		if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
			return Profile{}, err
		}
	}
	return profile, nil
}

// Get returns the profile for the given id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateDisplayName changes the display name shown on future posts.
func (s *Service) UpdateDisplayName(ctx context.Context, id, displayName string) (Profile, error) {
	displayName = normalize(displayName)
	if displayName == "" {
		return Profile{}, fmt.Errorf("users: display name must not be empty")
	}
	result := s.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).
		Update("display_name", displayName)
	if result.Error != nil {
		return Profile{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Profile{}, ErrProfileNotFound
	}
	return s.Get(ctx, id)
}
