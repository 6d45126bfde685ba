package module

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	// AnonymousUser owner of every row when auth is disabled
	AnonymousUser = "anonymous"
)

var UserManagerGlobal *UserManager

// Claims of the bearer token issued by the auth backend
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type UserInfo struct {
	UserId string
	Email  string
}

// UserManager verify bearer tokens and the worker key, cache profiles
type UserManager struct {
	secret        []byte
	workerKeyHash string
	profiles      *datastore.ProfileStore
	cache         *sync.Map
}

func NewUserManager(secret, workerKeyHash string, profiles *datastore.ProfileStore) *UserManager {
	return &UserManager{
		secret:        []byte(secret),
		workerKeyHash: workerKeyHash,
		profiles:      profiles,
		cache:         new(sync.Map),
	}
}

func InitUserManager(profiles *datastore.ProfileStore) {
	UserManagerGlobal = NewUserManager(config.ConfigGlobal.JwtSecret, config.ConfigGlobal.WorkerKeyHash, profiles)
}

// VerifyToken HS256 only, sub and exp required
func (u *UserManager) VerifyToken(token string) (*UserInfo, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return &UserInfo{UserId: claims.Subject, Email: claims.Email}, nil
}

// IssueToken sign a token the way the auth backend does, used by tests and local tooling
func (u *UserManager) IssueToken(userId, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
}

// VerifyWorkerKey compare with the configured bcrypt hash
func (u *UserManager) VerifyWorkerKey(key string) bool {
	return utils.MatchSecret(key, u.workerKeyHash)
}

// Profile cached profile of the user, created on first sight
func (u *UserManager) Profile(user *UserInfo) (*models.Profile, error) {
	if val, ok := u.cache.Load(user.UserId); ok {
		return val.(*models.Profile), nil
	}
	profile, err := u.profiles.Get(user.UserId)
	if errors.Is(err, datastore.ErrNotFound) {
		profile, err = u.profiles.Upsert(user.UserId, &models.UpdateProfileRequest{Email: utils.String(user.Email)})
	}
	if err != nil {
		return nil, err
	}
	u.cache.Store(user.UserId, profile)
	return profile, nil
}

func (u *UserManager) UpdateProfile(userId string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	profile, err := u.profiles.Upsert(userId, req)
	if err != nil {
		return nil, err
	}
	u.cache.Store(userId, profile)
	return profile, nil
}
