package tours

import (
	"context"
	"os"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/resource"
	"gopkg.in/yaml.v2"
)

// Fixtures is the development data set loaded by the seed command.
// Reviews point at tours by name and at users by email.
type Fixtures struct {
	Tours   []*Tour         `yaml:"tours"`
	Users   []UserFixture   `yaml:"users"`
	Reviews []ReviewFixture `yaml:"reviews"`
}

type UserFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Photo    string `yaml:"photo"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

type ReviewFixture struct {
	Review string  `yaml:"review"`
	Rating float64 `yaml:"rating"`
	Tour   string  `yaml:"tour"`
	User   string  `yaml:"user"`
}

// SeedReport counts the records a seed run created
type SeedReport struct {
	Tours   int
	Users   int
	Reviews int
}

// LoadFixtures reads a YAML fixtures file
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to read fixtures").
			WithMetadata(map[string]any{"path": path})
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*Fixtures, error) {
	f := &Fixtures{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse fixtures")
	}
	return f, nil
}

// Seeder writes fixtures through the same stores the API uses
type Seeder struct {
	users   UserStore
	tours   resource.Collection[*Tour]
	reviews resource.Collection[*Review]
	hasher  PasswordAuthenticator
	logger  Logger
}

func NewSeeder(users UserStore, tours resource.Collection[*Tour], reviews resource.Collection[*Review]) *Seeder {
	return &Seeder{
		users:   users,
		tours:   tours,
		reviews: reviews,
		hasher:  BcryptHasher{},
		logger:  defaultLogger("seed"),
	}
}

func (s *Seeder) WithPasswordHasher(hasher PasswordAuthenticator) *Seeder {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

func (s *Seeder) WithLogger(logger Logger) *Seeder {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Seed creates tours, then users, then the reviews linking them
func (s *Seeder) Seed(ctx context.Context, f *Fixtures) (SeedReport, error) {
	report := SeedReport{}
	tourIDs := map[string]*Tour{}
	userIDs := map[string]*User{}

	for _, tour := range f.Tours {
		tour.Normalize()
		created, err := s.tours.Create(ctx, tour)
		if err != nil {
			return report, errors.Wrap(err, errors.CategoryOperation, "failed to seed tour").
				WithMetadata(map[string]any{"tour": tour.Name})
		}
		tourIDs[strings.ToLower(created.Name)] = created
		report.Tours++
	}

	for _, fx := range f.Users {
		user, err := s.userFromFixture(fx)
		if err != nil {
			return report, err
		}

		created, err := s.users.Register(ctx, user)
		if err != nil {
			return report, errors.Wrap(err, errors.CategoryOperation, "failed to seed user").
				WithMetadata(map[string]any{"email": fx.Email})
		}
		userIDs[created.Email] = created
		report.Users++
	}

	for _, fx := range f.Reviews {
		tour, ok := tourIDs[strings.ToLower(fx.Tour)]
		if !ok {
			return report, errors.New("review references an unknown tour", errors.CategoryBadInput).
				WithMetadata(map[string]any{"tour": fx.Tour})
		}

		user, ok := userIDs[normalizeEmail(fx.User)]
		if !ok {
			return report, errors.New("review references an unknown user", errors.CategoryBadInput).
				WithMetadata(map[string]any{"user": fx.User})
		}

		if _, err := s.reviews.Create(ctx, &Review{
			Review: fx.Review,
			Rating: fx.Rating,
			TourID: tour.ID,
			UserID: user.ID,
		}); err != nil {
			return report, errors.Wrap(err, errors.CategoryOperation, "failed to seed review").
				WithMetadata(map[string]any{"tour": fx.Tour, "user": fx.User})
		}
		report.Reviews++
	}

	s.logger.Info("fixtures seeded", "tours", report.Tours, "users", report.Users, "reviews", report.Reviews)

	return report, nil
}

func (s *Seeder) userFromFixture(fx UserFixture) (*User, error) {
	role := RoleUser
	if fx.Role != "" {
		r, err := ParseRole(fx.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	if fx.Password == "" {
		return nil, errors.New("fixture user without password", errors.CategoryBadInput).
			WithMetadata(map[string]any{"email": fx.Email})
	}

	hash, err := s.hasher.HashPassword(fx.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash fixture password")
	}

	return &User{
		Name:         fx.Name,
		Email:        fx.Email,
		Photo:        fx.Photo,
		Role:         role,
		PasswordHash: hash,
	}, nil
}
