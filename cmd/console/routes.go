package main

import (
	"net/http"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-router"
)

// Sections behind the guard. The pages themselves live in the console
// frontend; the server only answers with the admitted user.
var protectedSections = []string{
	"dashboard",
	"profile",
	"orders",
	"stock",
	"production",
	"deliveries",
	"finance",
}

var roleNames = map[string]string{
	authstate.RoleAdmin:    "Administrador",
	authstate.RoleOperator: "Operario",
	authstate.RoleDriver:   "Repartidor",
}

// RoleDisplayName returns the label shown for role, or role itself.
func RoleDisplayName(role string) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return role
}

// ProtectedRoutes mounts every console section behind the guard.
func ProtectedRoutes(r authstate.RouteRegistrar, guard *authstate.Guard) {
	protected := guard.Middleware()

	for _, section := range protectedSections {
		r.Get("/"+section, SectionShow(section), protected)
	}
}

// FallbackRoutes sends the root and unknown paths to the login page. Must be
// registered last.
func FallbackRoutes(r authstate.RouteRegistrar, loginPath string) {
	toLogin := func(ctx router.Context) error {
		return ctx.Redirect(loginPath, http.StatusFound)
	}

	r.Get("/", toLogin)
	r.Get("/*", toLogin)
}

func SectionShow(section string) router.HandlerFunc {
	return func(ctx router.Context) error {
		user, _ := authstate.GetRouterUser(ctx)
		return ctx.JSON(sectionResponse(section, user))
	}
}

func sectionResponse(section string, user *authstate.User) (int, map[string]any) {
	if user == nil {
		return router.StatusUnauthorized, map[string]any{
			"error": "not authenticated",
		}
	}

	return router.StatusOK, map[string]any{
		"section":   section,
		"user":      user,
		"role_name": RoleDisplayName(user.Role),
	}
}
