// Package api provides HTTP handlers for the echelon engine. The acting
// principal and the tenant come from the request scope; handlers never
// trust a requester ID from the body.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
)

// API wires all echelon HTTP handlers together.
type API struct {
	eng    *echelon.Engine
	router forge.Router
}

// New creates an API from an Engine and a Forge router.
func New(eng *echelon.Engine, router forge.Router) *API {
	return &API{eng: eng, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("echelon: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerAccessRoutes,
		a.registerHierarchyRoutes,
		a.registerAssignmentRoutes,
		a.registerPermissionRoutes,
		a.registerAuditRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
