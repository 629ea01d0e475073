package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"leakdesk/internal/models"
	"leakdesk/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDirectoryEmpty means no poll has loaded the account sheet yet.
	ErrDirectoryEmpty = errors.New("account directory not loaded yet")
)

const SessionTTL = 24 * time.Hour

// Directory is the polled account list.
type Directory interface {
	Account(id string) (models.Account, bool)
	Accounts() []models.Account
}

type AuthService struct {
	dir           Directory
	sessionSecret string
	log           zerolog.Logger
}

func NewAuthService(dir Directory, sessionSecret string, log zerolog.Logger) *AuthService {
	return &AuthService{dir: dir, sessionSecret: sessionSecret, log: log.With().Str("component", "auth").Logger()}
}

// Login checks id and password against the account directory and returns
// a signed session token. Hashed credentials are verified with bcrypt;
// plaintext cells still work but are logged.
func (a *AuthService) Login(ctx context.Context, id, password string) (token string, acct models.Account, err error) {
	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return "", models.Account{}, ErrInvalidCredentials
	}
	u, ok := a.dir.Account(id)
	if !ok {
		if len(a.dir.Accounts()) == 0 {
			return "", models.Account{}, ErrDirectoryEmpty
		}
		return "", models.Account{}, ErrInvalidCredentials
	}
	if !a.check(u, password) {
		return "", models.Account{}, ErrInvalidCredentials
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, string(u.Role), SessionTTL)
	if err != nil {
		return "", models.Account{}, err
	}
	a.log.Info().Str("account", u.ID).Str("role", string(u.Role)).Msg("login")
	return tok, u, nil
}

func (a *AuthService) check(u models.Account, password string) bool {
	if utils.IsHashed(u.Credential) {
		return utils.CheckPassword(u.Credential, password)
	}
	if !models.IsSet(u.Credential) {
		return false
	}
	a.log.Warn().Str("account", u.ID).Msg("account uses a plaintext credential")
	return utils.CheckPlain(u.Credential, password)
}

// Actor resolves a session's account id against the current directory.
func (a *AuthService) Actor(id string) (models.Account, bool) {
	if id == "" {
		return models.Account{}, false
	}
	return a.dir.Account(id)
}
