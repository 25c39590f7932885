package application

import (
	"time"

	"github.com/campuskit/identity-service/internal/ports"
)

type Service struct {
	cfg           Config
	accounts      ports.AccountRepository
	sessions      ports.SessionRepository
	loginAttempts ports.LoginAttemptRepository
	outbox        ports.OutboxRepository
	profiles      ports.ProfileDirectory
	hasher        ports.PasswordHasher
	tokenSigner   ports.TokenSigner
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Accounts      ports.AccountRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Profiles      ports.ProfileDirectory
	Hasher        ports.PasswordHasher
	TokenSigner   ports.TokenSigner
	// Now overrides the clock; nil means wall time in UTC.
	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:           deps.Config,
		accounts:      deps.Accounts,
		sessions:      deps.Sessions,
		loginAttempts: deps.LoginAttempts,
		outbox:        deps.Outbox,
		profiles:      deps.Profiles,
		hasher:        deps.Hasher,
		tokenSigner:   deps.TokenSigner,
		nowFn:         nowFn,
	}
}
