package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/echelon/audit"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	return g.GET("/audit", a.listAuditEntries,
		forge.WithSummary("Query audit entries"),
		forge.WithDescription("Returns allow, deny and error decisions of mutating operations with optional filters."),
		forge.WithOperationID("listAuditEntries"),
		forge.WithRequestSchema(ListAuditEntriesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit entry list", []*audit.Entry{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditEntries(ctx forge.Context, req *ListAuditEntriesRequest) ([]*audit.Entry, error) {
	sc, err := scope(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	filter := &audit.QueryFilter{
		TenantID:    sc.TenantID,
		Operation:   req.Operation,
		RequesterID: req.RequesterID,
		SubjectID:   req.SubjectID,
		Decision:    audit.Decision(req.Decision),
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	entries, err := a.eng.ListAuditEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return entries, ctx.JSON(http.StatusOK, entries)
}
