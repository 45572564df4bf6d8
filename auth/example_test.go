package auth_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cmdbus/auth"
	"github.com/jonwraymond/cmdbus/bus"
)

type archiveReport struct{ ID string }

func (archiveReport) MessageType() string { return "ArchiveReport" }

func ExampleNewMiddleware() {
	rbac := auth.NewSimpleRBACAuthorizer(auth.RBACConfig{
		Roles: map[string]auth.RoleConfig{
			"analyst": {AllowedMessages: []string{"Get*"}},
			"owner":   {Inherits: []string{"analyst"}, AllowedMessages: []string{"Archive*"}},
		},
	})

	b := bus.New(bus.WithMiddleware(auth.NewMiddleware(rbac)))
	b.MustRegister("ArchiveReport", bus.HandlerFunc(func(ctx context.Context, msg bus.Message) (any, error) {
		return "archived " + msg.(archiveReport).ID + " by " + auth.PrincipalFromContext(ctx), nil
	}))

	owner := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "ana", Roles: []string{"owner"}})
	out, _ := b.Dispatch(owner, archiveReport{ID: "r1"})
	fmt.Println(out)

	analyst := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "ben", Roles: []string{"analyst"}})
	_, err := b.Dispatch(analyst, archiveReport{ID: "r1"})
	fmt.Println(bus.KindOf(err))
	// Output:
	// archived r1 by ana
	// forbidden
}

func ExampleSimpleRBACAuthorizer_Authorize() {
	rbac := auth.NewSimpleRBACAuthorizer(auth.RBACConfig{
		Roles: map[string]auth.RoleConfig{
			"support": {Permissions: []string{"Refund*:dispatch"}, DeniedMessages: []string{"RefundAll"}},
		},
	})
	id := &auth.Identity{Principal: "sam", Roles: []string{"support"}}

	for _, mt := range []string{"RefundOrder", "RefundAll"} {
		err := rbac.Authorize(context.Background(), &auth.AuthzRequest{Subject: id, MessageType: mt})
		fmt.Println(mt, err == nil)
	}
	// Output:
	// RefundOrder true
	// RefundAll false
}
