package api

import (
	"context"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
	"github.com/xraph/echelon/aggregator"
	"github.com/xraph/echelon/catalog"
)

func (a *API) registerAccessRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("access"))

	if err := g.GET("/people/:personId/hierarchy", a.getUserRoleHierarchy,
		forge.WithSummary("Get user role hierarchy"),
		forge.WithDescription("Returns the roles, highest authority and effective permissions of a person."),
		forge.WithOperationID("getUserRoleHierarchy"),
		forge.WithRequestSchema(PersonRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role hierarchy", &echelon.RoleHierarchy{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/people/:personId/visible-roles", a.getVisibleRoles,
		forge.WithSummary("Get visible roles"),
		forge.WithDescription("Returns the roles strictly below the highest role of a person."),
		forge.WithOperationID("getVisibleRolesForUser"),
		forge.WithRequestSchema(PersonRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role definitions", []catalog.RoleDefinition{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access/has-permission", a.hasPermission,
		forge.WithSummary("Has permission"),
		forge.WithDescription("Reports whether a person holds a permission through roles or direct grants."),
		forge.WithOperationID("hasPermission"),
		forge.WithRequestSchema(HasPermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", &BoolResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access/can-assign", a.canAssign,
		forge.WithSummary("Can assign"),
		forge.WithOperationID("canAssignToRole"),
		forge.WithRequestSchema(RolePairRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", &BoolResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access/can-manage", a.canManage,
		forge.WithSummary("Can manage"),
		forge.WithOperationID("canManageRole"),
		forge.WithRequestSchema(RolePairRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", &BoolResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/access/effective-permissions", a.effectivePermissions,
		forge.WithSummary("Effective permissions"),
		forge.WithDescription("Returns the union of permissions held by a set of roles."),
		forge.WithOperationID("effectivePermissions"),
		forge.WithRequestSchema(EffectivePermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission names", &PermissionsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access/preview", a.previewRoleChange,
		forge.WithSummary("Preview role change"),
		forge.WithDescription("Describes the permissions gained and lost by moving between two roles."),
		forge.WithOperationID("previewRoleChange"),
		forge.WithRequestSchema(PreviewRoleChangeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Preview", &echelon.RoleChangePreview{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/access/validate", a.validatePermissions,
		forge.WithSummary("Validate role permissions"),
		forge.WithOperationID("validateRolePermissions"),
		forge.WithRequestSchema(ValidatePermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Validation result", &aggregator.ValidationResult{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getUserRoleHierarchy(ctx forge.Context, req *PersonRequest) (*echelon.RoleHierarchy, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	h, err := a.eng.GetUserRoleHierarchy(ctx.Context(), ctx.Param("personId"), sc.TenantID)
	if err != nil {
		return nil, mapError(err)
	}
	return h, ctx.JSON(http.StatusOK, h)
}

func (a *API) getVisibleRoles(ctx forge.Context, req *PersonRequest) ([]catalog.RoleDefinition, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	roles, err := a.eng.GetVisibleRolesForUser(ctx.Context(), ctx.Param("personId"), sc.TenantID)
	if err != nil {
		return nil, mapError(err)
	}
	if roles == nil {
		roles = []catalog.RoleDefinition{}
	}
	return roles, ctx.JSON(http.StatusOK, roles)
}

func (a *API) hasPermission(ctx forge.Context, req *HasPermissionRequest) (*BoolResponse, error) {
	if req.Permission == "" {
		return nil, forge.BadRequest("permission is required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	person := req.PersonID
	if person == "" {
		person = sc.PrincipalID
	}
	ok, err := a.eng.HasPermission(ctx.Context(), person, sc.TenantID, req.Permission)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &BoolResponse{Allowed: ok}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) canAssign(ctx forge.Context, req *RolePairRequest) (*BoolResponse, error) {
	return a.comparePair(ctx, req, a.eng.CanAssignToRole)
}

func (a *API) canManage(ctx forge.Context, req *RolePairRequest) (*BoolResponse, error) {
	return a.comparePair(ctx, req, a.eng.CanManageRole)
}

type pairCheck func(ctx context.Context, tenantID, from, to string) (bool, error)

func (a *API) comparePair(ctx forge.Context, req *RolePairRequest, check pairCheck) (*BoolResponse, error) {
	if req.From == "" || req.To == "" {
		return nil, forge.BadRequest("from and to are required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	ok, err := check(ctx.Context(), sc.TenantID, req.From, req.To)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &BoolResponse{Allowed: ok}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) effectivePermissions(ctx forge.Context, req *EffectivePermissionsRequest) (*PermissionsResponse, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	perms, err := a.eng.EffectivePermissions(ctx.Context(), sc.TenantID, req.Roles)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &PermissionsResponse{Permissions: perms}
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) previewRoleChange(ctx forge.Context, req *PreviewRoleChangeRequest) (*echelon.RoleChangePreview, error) {
	if req.CurrentRole == "" || req.TargetRole == "" {
		return nil, forge.BadRequest("current and target are required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	p, err := a.eng.PreviewRoleChange(ctx.Context(), sc.TenantID, req.CurrentRole, req.TargetRole)
	if err != nil {
		return nil, mapError(err)
	}
	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) validatePermissions(ctx forge.Context, req *ValidatePermissionsRequest) (*aggregator.ValidationResult, error) {
	if req.RoleType == "" {
		return nil, forge.BadRequest("role_type is required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	res, err := a.eng.ValidateRolePermissions(ctx.Context(), sc.TenantID, req.RoleType, req.Permissions)
	if err != nil {
		return nil, mapError(err)
	}
	return &res, ctx.JSON(http.StatusOK, res)
}
