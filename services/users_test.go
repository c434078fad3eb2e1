package services_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"eventhub/services"
	"eventhub/utils"
)

func signupInput() services.UserInput {
	return services.UserInput{Name: "Carol", Email: "carol@events.hu", Phone: "+36 20 123 4567", Password: "secret1"}
}

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)

	in := signupInput()
	in.IsAdmin = true
	u, err := f.users.Signup(f.ctx, in)
	require.NoError(t, err)
	require.False(t, u.IsAdmin, "signup never grants admin")
	require.NotEqual(t, "secret1", u.PasswordHash)
	require.True(t, utils.CheckPasswordHash("secret1", u.PasswordHash))

	got, err := f.users.Login(f.ctx, "CAROL@events.hu", "secret1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = f.users.Login(f.ctx, "carol@events.hu", "wrong-pass")
	require.ErrorIs(t, err, services.ErrUnauthorized)
	_, err = f.users.Login(f.ctx, "nobody@events.hu", "secret1")
	require.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestSignup_EmailTaken(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Signup(f.ctx, signupInput())
	require.NoError(t, err)

	in := signupInput()
	in.Email = "Carol@Events.hu"
	_, err = f.users.Signup(f.ctx, in)
	require.ErrorIs(t, err, services.ErrEmailTaken)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	for name, mutate := range map[string]func(*services.UserInput){
		"blank name":     func(in *services.UserInput) { in.Name = " " },
		"bad email":      func(in *services.UserInput) { in.Email = "not-an-email" },
		"no password":    func(in *services.UserInput) { in.Password = "" },
		"short password": func(in *services.UserInput) { in.Password = "abc" },
		"long password":  func(in *services.UserInput) { in.Password = strings.Repeat("a", services.MaxPasswordLength+1) },
	} {
		t.Run(name, func(t *testing.T) {
			in := signupInput()
			mutate(&in)
			_, err := f.users.Signup(f.ctx, in)
			require.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestUpdateMe_KeepsAdminFlagAndPassword(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.Signup(f.ctx, signupInput())
	require.NoError(t, err)
	p := services.Principal{UserID: u.ID}

	in := signupInput()
	in.Name = "Carol B"
	in.Password = ""
	in.IsAdmin = true
	got, err := f.users.UpdateMe(f.ctx, p, in)
	require.NoError(t, err)
	require.Equal(t, "Carol B", got.Name)
	require.False(t, got.IsAdmin)

	_, err = f.users.Login(f.ctx, "carol@events.hu", "secret1")
	require.NoError(t, err, "empty password keeps the old one")

	in.Password = "newsecret"
	_, err = f.users.UpdateMe(f.ctx, p, in)
	require.NoError(t, err)
	_, err = f.users.Login(f.ctx, "carol@events.hu", "newsecret")
	require.NoError(t, err)

	in.Password = strings.Repeat("x", services.MaxPasswordLength+1)
	_, err = f.users.UpdateMe(f.ctx, p, in)
	require.ErrorIs(t, err, services.ErrValidation)
	in.Password = "newsecret"

	in.Email = "alice@events.hu"
	_, err = f.users.UpdateMe(f.ctx, p, in)
	require.ErrorIs(t, err, services.ErrEmailTaken)
}

func TestUserAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.List(f.ctx, f.alice)
	require.ErrorIs(t, err, services.ErrForbidden)
	_, err = f.users.Create(f.ctx, f.alice, signupInput())
	require.ErrorIs(t, err, services.ErrForbidden)
	require.ErrorIs(t, f.users.Delete(f.ctx, f.alice, f.bob.UserID), services.ErrForbidden)

	in := signupInput()
	in.IsAdmin = true
	created, err := f.users.Create(f.ctx, f.admin, in)
	require.NoError(t, err)
	require.True(t, created.IsAdmin)

	in.IsAdmin = false
	in.Password = ""
	updated, err := f.users.Update(f.ctx, f.admin, created.ID, in)
	require.NoError(t, err)
	require.False(t, updated.IsAdmin)

	all, err := f.users.List(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, all, 4)

	require.NoError(t, f.users.Delete(f.ctx, f.admin, created.ID))
	_, err = f.users.Get(f.ctx, f.admin, created.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
	all, err = f.users.List(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.ErrorIs(t, f.users.Delete(f.ctx, f.admin, f.admin.UserID), services.ErrValidation)

	// a deleted account releases its email
	_, err = f.users.Signup(f.ctx, signupInput())
	require.NoError(t, err)
}

func TestUserDelete_KeepsRegistrations(t *testing.T) {
	f := newFixture(t)
	ev := f.event(5)
	_, err := f.regs.Register(f.ctx, f.bob, ev.ID)
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(f.ctx, f.admin, f.bob.UserID))
	regs, err := f.regs.ListForEvent(f.ctx, f.admin, ev.ID, "")
	require.NoError(t, err)
	require.Len(t, regs, 1)
}
