package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/echelon"
	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/id"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("assignments"))

	if err := g.POST("/assignments", a.assignRole,
		forge.WithSummary("Assign role"),
		forge.WithDescription("Assigns a role to a person. The caller must outrank the role and be allowed to assign it."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&assignment.RoleAssignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/assignments/:assignmentId", a.deactivateAssignment,
		forge.WithSummary("Deactivate assignment"),
		forge.WithDescription("Deactivates an active role assignment."),
		forge.WithOperationID("deactivateAssignment"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/assignments", a.listAssignments,
		forge.WithSummary("List assignments"),
		forge.WithOperationID("listAssignments"),
		forge.WithRequestSchema(ListAssignmentsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Assignment list", []*assignment.RoleAssignment{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*assignment.RoleAssignment, error) {
	if req.PersonID == "" || req.RoleType == "" {
		return nil, forge.BadRequest("person_id and role_type are required")
	}
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	asg, err := a.eng.AssignRole(ctx.Context(), &echelon.AssignRoleRequest{
		AssignerID: sc.PrincipalID,
		PersonID:   req.PersonID,
		RoleType:   req.RoleType,
		TenantID:   sc.TenantID,
		CompanyID:  req.CompanyID,
		IsPrimary:  req.IsPrimary,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return asg, ctx.JSON(http.StatusCreated, asg)
}

func (a *API) deactivateAssignment(ctx forge.Context, _ *GetAssignmentRequest) (*struct{}, error) {
	asgID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}
	sc := echelon.ScopeFromContext(ctx.Context())
	if sc.PrincipalID == "" {
		return nil, forge.Forbidden("no authenticated principal")
	}

	if err := a.eng.DeactivateRoleAssignment(ctx.Context(), sc.PrincipalID, asgID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listAssignments(ctx forge.Context, req *ListAssignmentsRequest) ([]*assignment.RoleAssignment, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	assignments, err := a.eng.Store().ListRoleAssignments(ctx.Context(), &assignment.ListFilter{
		TenantID:   sc.TenantID,
		PersonID:   req.PersonID,
		RoleType:   req.RoleType,
		ActiveOnly: req.ActiveOnly,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}
