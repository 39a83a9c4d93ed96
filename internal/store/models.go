package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a registered account. Email is the external identifier and is
// immutable after creation; the uuid primary key is derived from it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	FirstName     string    `bun:"first_name" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name" json:"last_name,omitempty"`
	CompanyName   string    `bun:"company_name" json:"company_name,omitempty"`
	Sector        string    `bun:"sector" json:"sector,omitempty"`
	Country       string    `bun:"country" json:"country,omitempty"`
	Address       string    `bun:"address" json:"address,omitempty"`
	Phone         string    `bun:"phone_number" json:"phone_number,omitempty"`
	IsPremium     bool      `bun:"is_premium,notnull,default:false" json:"is_premium,omitempty"`
	// Confirmed flips to true exactly once, through the email
	// confirmation link. Folder creation happens at that moment.
	Confirmed    bool       `bun:"confirmed,notnull,default:false" json:"confirmed,omitempty"`
	RegisteredOn *time.Time `bun:"registered_on,nullzero,default:current_timestamp" json:"registered_on,omitempty"`
	UpdatedOn    *time.Time `bun:"updated_on,nullzero,default:current_timestamp" json:"updated_on,omitempty"`
}

func (u *User) String() string {
	return "<" + u.Email + ">"
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.RegisteredOn == nil {
		now := time.Now()
		record.RegisteredOn = &now
	}
}
