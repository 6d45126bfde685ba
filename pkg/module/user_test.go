package module

import (
	"testing"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/datastore"
	"github.com/devsapp/serverless-automl-hub/pkg/models"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileStore(t *testing.T) *datastore.ProfileStore {
	cfg := datastore.NewSQLiteConfig(datastore.KProfileTableName)
	cfg.DBName = ":memory:"
	table, err := datastore.NewSQLiteDatastore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { table.Close() })
	return datastore.NewProfileStore(table)
}

func TestVerifyToken(t *testing.T) {
	u := NewUserManager("secret", "", newProfileStore(t))

	token, err := u.IssueToken("user-1", "a@b.c", time.Hour)
	require.NoError(t, err)
	info, err := u.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.UserId)
	assert.Equal(t, "a@b.c", info.Email)

	expired, err := u.IssueToken("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = u.VerifyToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewUserManager("other", "", nil)
	forged, err := other.IssueToken("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = u.VerifyToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = u.VerifyToken(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = u.VerifyToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWorkerKey(t *testing.T) {
	hash, err := utils.HashSecret("worker-key")
	require.NoError(t, err)
	u := NewUserManager("secret", hash, nil)
	assert.True(t, u.VerifyWorkerKey("worker-key"))
	assert.False(t, u.VerifyWorkerKey("wrong"))
	assert.False(t, u.VerifyWorkerKey(""))
}

func TestProfileCache(t *testing.T) {
	u := NewUserManager("secret", "", newProfileStore(t))
	p, err := u.Profile(&UserInfo{UserId: "user-1", Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", p.Email)

	p, err = u.UpdateProfile("user-1", &models.UpdateProfileRequest{Name: utils.String("Ada")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	cached, err := u.Profile(&UserInfo{UserId: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", cached.Name)
	assert.Equal(t, "a@b.c", cached.Email)
}
