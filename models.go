package tours

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/uptrace/bun"
)

// User is an account able to sign in. Password material never leaves
// the server: every secret field is excluded from JSON.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr" json:"-" bson:"-" yaml:"-"`

	ID                   uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id" bson:"_id"`
	Name                 string     `bun:"name,notnull" json:"name" bson:"name" validate:"required,max=100"`
	Email                string     `bun:"email,notnull,unique" json:"email" bson:"email" validate:"required,email"`
	Photo                string     `bun:"photo" json:"photo,omitempty" bson:"photo,omitempty"`
	Role                 UserRole   `bun:"role,notnull" json:"role" bson:"role" validate:"omitempty,oneof=user guide lead-guide admin"`
	PasswordHash         string     `bun:"password_hash,notnull" json:"-" bson:"passwordHash"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at" json:"-" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `bun:"password_reset_token,nullzero" json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires" json:"-" bson:"passwordResetExpires,omitempty"`
	Active               bool       `bun:"active,notnull" json:"-" bson:"active"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Comparison happens at second precision, the
// resolution of the token timestamp.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// SetPassword stores the hash and stamps the change one second in the
// past so a token minted right after the change stays valid.
func (u *User) SetPassword(hash string, now time.Time) {
	changed := now.Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
}

// Tour is a bookable tour
type Tour struct {
	bun.BaseModel `bun:"table:tours,alias:tour" json:"-" bson:"-" yaml:"-"`

	ID              uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id" bson:"_id" yaml:"-"`
	Name            string      `bun:"name,notnull,unique" json:"name" bson:"name" yaml:"name" validate:"required,min=10,max=40"`
	Slug            string      `bun:"slug" json:"slug" bson:"slug" yaml:"slug,omitempty"`
	Duration        int         `bun:"duration" json:"duration" bson:"duration" yaml:"duration" validate:"required,gt=0"`
	MaxGroupSize    int         `bun:"max_group_size" json:"maxGroupSize" bson:"maxGroupSize" yaml:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string      `bun:"difficulty" json:"difficulty" bson:"difficulty" yaml:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64     `bun:"ratings_average" json:"ratingsAverage" bson:"ratingsAverage" yaml:"ratingsAverage" validate:"omitempty,min=1,max=5"`
	RatingsQuantity int         `bun:"ratings_quantity" json:"ratingsQuantity" bson:"ratingsQuantity" yaml:"ratingsQuantity" validate:"min=0"`
	Price           float64     `bun:"price" json:"price" bson:"price" yaml:"price" validate:"required,gt=0"`
	PriceDiscount   float64     `bun:"price_discount" json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty" yaml:"priceDiscount" validate:"omitempty,ltfield=Price"`
	Summary         string      `bun:"summary" json:"summary" bson:"summary" yaml:"summary" validate:"required"`
	Description     string      `bun:"description" json:"description,omitempty" bson:"description,omitempty" yaml:"description"`
	ImageCover      string      `bun:"image_cover" json:"imageCover" bson:"imageCover" yaml:"imageCover" validate:"required"`
	Images          []string    `bun:"images,type:json" json:"images" bson:"images" yaml:"images"`
	StartDates      []time.Time `bun:"start_dates,type:json" json:"startDates" bson:"startDates" yaml:"startDates"`
	SecretTour      bool        `bun:"secret_tour" json:"secretTour,omitempty" bson:"secretTour" yaml:"secretTour"`
	CreatedAt       *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty" bson:"createdAt,omitempty" yaml:"-"`

	Reviews []*Review `bun:"rel:has-many,join:id=tour_id" json:"reviews,omitempty" bson:"-" yaml:"-"`
}

var _ bun.BeforeAppendModelHook = (*Tour)(nil)

// Normalize derives the slug and default rating before the tour is validated
func (t *Tour) Normalize() {
	t.Slug = Slugify(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = 4.5
	}
}

// BeforeAppendModel keeps the slug in sync on every SQL write
func (t *Tour) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		t.Slug = Slugify(t.Name)
	}
	return nil
}

// Review is a rating left by a user on a tour. A user reviews a tour once.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rev" json:"-" bson:"-" yaml:"-"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id" bson:"_id"`
	Review    string     `bun:"review,notnull" json:"review" bson:"review" validate:"required"`
	Rating    float64    `bun:"rating" json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	TourID    uuid.UUID  `bun:"tour_id,type:uuid,notnull,unique:tour_user" json:"tour" bson:"tour" validate:"required"`
	UserID    uuid.UUID  `bun:"user_id,type:uuid,notnull,unique:tour_user" json:"user" bson:"user" validate:"required"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty" bson:"createdAt,omitempty"`

	Author *User `bun:"rel:belongs-to,join:user_id=id" json:"author,omitempty" bson:"-"`
}

// Slugify transliterates s to ASCII, lowercases it and joins its words
// with dashes
func Slugify(s string) string {
	return slug.Make(s)
}
