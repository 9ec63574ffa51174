package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
	"github.com/xraph/echelon/permission"
)

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("permissions"))

	if err := g.POST("/grants", a.assignPermissions,
		forge.WithSummary("Grant permissions"),
		forge.WithDescription("Grants permissions directly to a person. Every name must be held by the caller; otherwise nothing is granted."),
		forge.WithOperationID("assignPermissions"),
		forge.WithRequestSchema(AssignPermissionsRequest{}),
		forge.WithCreatedResponse(&echelon.GrantResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/grants", a.revokePermission,
		forge.WithSummary("Revoke permission"),
		forge.WithDescription("Revokes a direct permission grant."),
		forge.WithOperationID("revokePermission"),
		forge.WithRequestSchema(RevokePermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/permissions", a.listPermissions,
		forge.WithSummary("List permissions"),
		forge.WithDescription("Returns every permission name ever granted directly."),
		forge.WithOperationID("listPermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission list", []*permission.Permission{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignPermissions(ctx forge.Context, req *AssignPermissionsRequest) (*echelon.GrantResult, error) {
	if req.PersonID == "" || len(req.Permissions) == 0 {
		return nil, forge.BadRequest("person_id and permissions are required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	res, err := a.eng.AssignPermissions(ctx.Context(), &echelon.AssignPermissionsRequest{
		AssignerID:  sc.PrincipalID,
		PersonID:    req.PersonID,
		TenantID:    sc.TenantID,
		Permissions: req.Permissions,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return res, ctx.JSON(http.StatusCreated, res)
}

func (a *API) revokePermission(ctx forge.Context, req *RevokePermissionRequest) (*struct{}, error) {
	if req.PersonID == "" || req.Permission == "" {
		return nil, forge.BadRequest("person_id and permission are required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	if err := a.eng.RevokePermission(ctx.Context(), sc.PrincipalID, req.PersonID, req.Permission, sc.TenantID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listPermissions(ctx forge.Context, _ *ListPermissionsRequest) ([]*permission.Permission, error) {
	perms, err := a.eng.Store().ListPermissions(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return perms, ctx.JSON(http.StatusOK, perms)
}
