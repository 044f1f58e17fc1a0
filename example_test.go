package dashauth_test

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/password"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/store/memory"
)

func exampleEngine() (*dashauth.Engine, *memory.Store) {
	hasher, _ := password.NewBcrypt(bcrypt.MinCost)
	hash, _ := hasher.Hash("correct-horse")

	store := memory.New()
	store.PutUser(dashauth.UserRecord{
		ID:           "user-1",
		Identifier:   "ana@example.com",
		DisplayName:  "Ana",
		Role:         "viewer",
		Active:       true,
		PasswordHash: hash,
	})
	store.Grant("user-1", "alfa", permission.ViewInbox)

	cfg := dashauth.DefaultConfig()
	cfg.Session.Secret = "example-secret-example-secret-0000"
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Companies = []string{"alfa", "beta"}

	engine, err := dashauth.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithPermissionStore(store).
		WithAuditSink(store).
		Build()
	if err != nil {
		panic(err)
	}
	return engine, store
}

func ExampleEngine_Login() {
	engine, _ := exampleEngine()
	defer engine.Close()

	ctx := dashauth.WithClientIP(context.Background(), "203.0.113.7")
	res, err := engine.Login(ctx, dashauth.LoginRequest{
		Identifier: "ana@example.com",
		Secret:     "correct-horse",
	})
	if err != nil {
		fmt.Println("login failed")
		return
	}

	fmt.Println(res.Session.Name, res.Session.Role, res.Session.Companies)
	// Output: Ana viewer [alfa]
}

func ExampleEngine_Login_invalidCredentials() {
	engine, _ := exampleEngine()
	defer engine.Close()

	ctx := dashauth.WithClientIP(context.Background(), "203.0.113.7")
	_, err := engine.Login(ctx, dashauth.LoginRequest{
		Identifier: "ana@example.com",
		Secret:     "wrong",
	})
	fmt.Println(errors.Is(err, dashauth.ErrInvalidCredentials))
	// Output: true
}

func ExampleEngine_AllowedCompanies() {
	engine, _ := exampleEngine()
	defer engine.Close()

	ctx := dashauth.WithClientIP(context.Background(), "203.0.113.7")
	res, err := engine.Login(ctx, dashauth.LoginRequest{
		Identifier: "ana@example.com",
		Secret:     "correct-horse",
	})
	if err != nil {
		return
	}

	s := &res.Session
	fmt.Println(engine.AllowedCompanies(ctx, s, permission.ResourceInbox, permission.ActionView))
	fmt.Println(engine.Can(ctx, s, permission.ResourceInbox, permission.ActionView, "beta"))
	fmt.Println(engine.Can(ctx, s, permission.ResourceInbox, permission.ActionEdit, "alfa"))
	// Output:
	// [alfa]
	// false
	// false
}
