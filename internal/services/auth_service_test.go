package services

import (
	"context"
	"testing"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewAuthService(s)
	svc.cost = 4
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "amy", Email: "amy@college.edu", Password: "pw", Phone: "+1"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleStudent {
		t.Errorf("default role = %s", u.Role)
	}
	if u.Password == "pw" {
		t.Error("password stored in clear")
	}

	got, err := svc.Login(ctx, "amy", "pw")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Login() = %+v, %v", got, err)
	}
	_, err = svc.Login(ctx, "amy", "wrong")
	wantKind(t, err, KindAuthorization)
	_, err = svc.Login(ctx, "nobody", "pw")
	wantKind(t, err, KindAuthorization)
}

func TestRegisterRejections(t *testing.T) {
	svc := NewAuthService(store.NewMemoryStore())
	svc.cost = 4
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "amy", Email: "amy@x.edu", Password: "pw", Role: "Driver"}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		in   RegisterInput
		kind Kind
	}{
		{"missing password", RegisterInput{Username: "b", Email: "b@x.edu"}, KindValidation},
		{"bad email", RegisterInput{Username: "b", Email: "nope", Password: "pw"}, KindValidation},
		{"unknown role", RegisterInput{Username: "b", Email: "b@x.edu", Password: "pw", Role: "pilot"}, KindValidation},
		{"self admin", RegisterInput{Username: "b", Email: "b@x.edu", Password: "pw", Role: "admin"}, KindAuthorization},
		{"duplicate username", RegisterInput{Username: "amy", Email: "c@x.edu", Password: "pw"}, KindConflict},
		{"duplicate email", RegisterInput{Username: "c", Email: "amy@x.edu", Password: "pw"}, KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			wantKind(t, err, tc.kind)
		})
	}
}

func TestAdminCreatesAdmin(t *testing.T) {
	svc := NewAuthService(store.NewMemoryStore())
	svc.cost = 4
	ctx := context.Background()
	in := RegisterInput{Username: "root", Email: "root@x.edu", Password: "pw", Role: "admin"}

	_, err := svc.CreateUser(ctx, Actor{UserID: 1, Role: models.RoleStudent}, in)
	wantKind(t, err, KindAuthorization)

	u, err := svc.CreateUser(ctx, Actor{UserID: 1, Role: models.RoleAdmin}, in)
	if err != nil || u.Role != models.RoleAdmin {
		t.Fatalf("CreateUser() = %+v, %v", u, err)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("secret")
	if err != nil || h == "" || h == "secret" {
		t.Errorf("HashPassword() = %q, %v", h, err)
	}
}
