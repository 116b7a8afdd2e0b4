package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	reg := f.auth.Register(f.ctx, RegisterInput{
		FullName: "Ann Cruz", Email: "ann@x.com", Username: "anncruz",
		Password: "secret1", ConfirmPassword: "secret1",
	})
	require.True(t, reg.Success, reg.Message)
	assert.Equal(t, "Registration successful! Please login.", reg.Message)
	assert.Empty(t, reg.Data.Password)

	stored, err := f.store.UserByUsername(f.ctx, "anncruz")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Password, "bcrypt$"), "credentials are not kept in plaintext")

	login := f.auth.Login(f.ctx, "anncruz", "secret1")
	require.True(t, login.Success, login.Message)
	assert.Equal(t, "Login successful!", login.Message)
	require.NotNil(t, login.Data)
	assert.Equal(t, "Ann Cruz", login.Data.FullName)
	assert.Equal(t, "ann@x.com", login.Data.Email)

	got, err := f.auth.Authenticate(f.ctx, login.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.UserID)

	wrong := f.auth.Login(f.ctx, "anncruz", "wrong")
	assert.False(t, wrong.Success)
	assert.Equal(t, "Invalid username or password!", wrong.Message)

	unknown := f.auth.Login(f.ctx, "nobody", "secret1")
	assert.Equal(t, "Invalid username or password!", unknown.Message)

	padded := f.auth.Login(f.ctx, " anncruz ", "secret1")
	assert.False(t, padded.Success, "usernames match exactly")
	assert.Equal(t, "Invalid username or password!", padded.Message)
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := newFixture(t)
	r := f.auth.Login(f.ctx, "", "secret1")
	assert.False(t, r.Success)
	assert.Equal(t, "Please enter username and password!", r.Message)
}

func TestLoginAcceptsPlainCredentials(t *testing.T) {
	f := newFixture(t)
	f.user(t, "legacy") // stored as plain$secret1

	r := f.auth.Login(f.ctx, "legacy", "secret1")
	assert.True(t, r.Success, r.Message)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	in := RegisterInput{FullName: "Ann Cruz", Email: "ann@x.com", Username: "anncruz", Password: "secret1", ConfirmPassword: "secret1"}
	require.True(t, f.auth.Register(f.ctx, in).Success)

	r := f.auth.Register(f.ctx, in)
	assert.Equal(t, "Username already exists!", r.Message)

	in.Username = "ann2"
	r = f.auth.Register(f.ctx, in)
	assert.Equal(t, "Email already exists!", r.Message)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	r := f.auth.Register(f.ctx, RegisterInput{FullName: "Ann", Email: "ann@x.com", Username: "ann"})
	assert.Equal(t, "Please fill in all fields!", r.Message)

	r = f.auth.Register(f.ctx, RegisterInput{FullName: "Ann", Email: "not-an-email", Username: "ann", Password: "secret1", ConfirmPassword: "secret1"})
	assert.Equal(t, "Invalid email format", r.Message)

	r = f.auth.Register(f.ctx, RegisterInput{FullName: "Ann", Email: "ann@x.com", Username: "ann", Password: "secret1", ConfirmPassword: "secret2"})
	assert.Equal(t, "Passwords do not match!", r.Message)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ann")
	login := f.auth.Login(f.ctx, "ann", "secret1")
	require.True(t, login.Success)

	out := f.auth.Logout(f.ctx, login.Data.Token)
	assert.True(t, out.Success)
	assert.Equal(t, "Logged out", out.Message)

	_, err := f.auth.Authenticate(f.ctx, login.Data.Token)
	assert.Error(t, err)
}
