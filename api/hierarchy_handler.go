package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
	"github.com/xraph/echelon/catalog"
	"github.com/xraph/echelon/role"
)

func (a *API) registerHierarchyRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("hierarchy"))

	if err := g.GET("/hierarchy", a.getHierarchy,
		forge.WithSummary("Get hierarchy"),
		forge.WithDescription("Returns the effective role hierarchy of a tenant, built-in and custom roles merged."),
		forge.WithOperationID("getHierarchy"),
		forge.WithRequestSchema(TenantRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role definitions", []catalog.RoleDefinition{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles", a.addCustomRole,
		forge.WithSummary("Add custom role"),
		forge.WithDescription("Creates or replaces a tenant custom role."),
		forge.WithOperationID("addCustomRole"),
		forge.WithRequestSchema(CreateCustomRoleRequest{}),
		forge.WithCreatedResponse(&role.CustomRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleType/hierarchy", a.updateRoleHierarchy,
		forge.WithSummary("Update role hierarchy"),
		forge.WithDescription("Moves a custom role to a new level and optionally a new parent. Descendants are re-levelled."),
		forge.WithOperationID("updateRoleHierarchy"),
		forge.WithRequestSchema(UpdateHierarchyRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Applied level updates", []role.LevelUpdate{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/roles/:roleType", a.removeCustomRole,
		forge.WithSummary("Remove custom role"),
		forge.WithDescription("Removes a custom role that has no children and no active holders."),
		forge.WithOperationID("removeCustomRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) getHierarchy(ctx forge.Context, req *TenantRequest) ([]catalog.RoleDefinition, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	v, err := a.eng.ResolveHierarchy(ctx.Context(), sc.TenantID)
	if err != nil {
		return nil, mapError(err)
	}
	defs := v.Definitions()
	return defs, ctx.JSON(http.StatusOK, defs)
}

func (a *API) addCustomRole(ctx forge.Context, req *CreateCustomRoleRequest) (*role.CustomRole, error) {
	if req.RoleType == "" {
		return nil, forge.BadRequest("role_type is required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.AddCustomRole(ctx.Context(), &echelon.CustomRoleRequest{
		RequesterID:    sc.PrincipalID,
		TenantID:       sc.TenantID,
		RoleType:       req.RoleType,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		ParentRoleType: req.ParentRoleType,
		Level:          req.Level,
		Permissions:    req.Permissions,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) updateRoleHierarchy(ctx forge.Context, req *UpdateHierarchyRequest) ([]role.LevelUpdate, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	updates, err := a.eng.UpdateRoleHierarchy(ctx.Context(), &echelon.UpdateHierarchyRequest{
		RequesterID:       sc.PrincipalID,
		TenantID:          sc.TenantID,
		RoleType:          ctx.Param("roleType"),
		NewLevel:          req.NewLevel,
		NewParentRoleType: req.NewParentRoleType,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return updates, ctx.JSON(http.StatusOK, updates)
}

func (a *API) removeCustomRole(ctx forge.Context, req *GetCustomRoleRequest) (*struct{}, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	if err := a.eng.RemoveCustomRole(ctx.Context(), sc.PrincipalID, ctx.Param("roleType"), sc.TenantID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
