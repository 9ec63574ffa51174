// Package metrics provides a Prometheus plugin that counts engine decisions
// and hierarchy events. It owns its registry so several engines can run in
// one process without colliding on the default registerer.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/echelon/assignment"
	"github.com/xraph/echelon/audit"
	"github.com/xraph/echelon/permission"
	"github.com/xraph/echelon/plugin"
	"github.com/xraph/echelon/role"
)

// Compile-time hook checks.
var (
	_ plugin.Plugin             = (*Collector)(nil)
	_ plugin.Decision           = (*Collector)(nil)
	_ plugin.RoleAssigned       = (*Collector)(nil)
	_ plugin.RoleUnassigned     = (*Collector)(nil)
	_ plugin.PermissionsGranted = (*Collector)(nil)
	_ plugin.PermissionRevoked  = (*Collector)(nil)
	_ plugin.CustomRoleCreated  = (*Collector)(nil)
	_ plugin.CustomRoleRemoved  = (*Collector)(nil)
	_ plugin.HierarchyUpdated   = (*Collector)(nil)
)

// Config holds the metric name prefix.
type Config struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Subsystem string `json:"subsystem" yaml:"subsystem"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Namespace: "echelon"}
}

// Collector is a plugin exporting engine counters.
type Collector struct {
	registry *prometheus.Registry

	Decisions          *prometheus.CounterVec
	RoleAssignments    *prometheus.CounterVec
	PermissionGrants   *prometheus.CounterVec
	CustomRoles        *prometheus.CounterVec
	HierarchyRelevels  prometheus.Counter
	HierarchyRoleMoves prometheus.Counter
}

// New creates a Collector with DefaultConfig.
func New() *Collector { return NewWithConfig(DefaultConfig()) }

// NewWithConfig creates a Collector with its own registry.
func NewWithConfig(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	ns, sub := cfg.Namespace, cfg.Subsystem

	c := &Collector{
		registry: reg,
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "decisions_total",
			Help:      "Authorization decisions by operation and outcome",
		}, []string{"operation", "decision"}),
		RoleAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "role_assignments_total",
			Help:      "Role assignments created or deactivated",
		}, []string{"action", "role_type"}),
		PermissionGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "permission_grants_total",
			Help:      "Direct permission grants by action",
		}, []string{"action", "created"}),
		CustomRoles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "custom_roles_total",
			Help:      "Custom role creations and removals",
		}, []string{"action"}),
		HierarchyRelevels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "hierarchy_relevels_total",
			Help:      "Committed hierarchy level updates",
		}),
		HierarchyRoleMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "hierarchy_role_moves_total",
			Help:      "Roles moved by hierarchy level updates",
		}),
	}

	reg.MustRegister(
		c.Decisions,
		c.RoleAssignments,
		c.PermissionGrants,
		c.CustomRoles,
		c.HierarchyRelevels,
		c.HierarchyRoleMoves,
	)
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return "metrics" }

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) OnDecision(_ context.Context, e *audit.Entry) error {
	c.Decisions.WithLabelValues(e.Operation, string(e.Decision)).Inc()
	return nil
}

func (c *Collector) OnRoleAssigned(_ context.Context, a *assignment.RoleAssignment) error {
	c.RoleAssignments.WithLabelValues("assigned", a.RoleType).Inc()
	return nil
}

func (c *Collector) OnRoleUnassigned(_ context.Context, a *assignment.RoleAssignment) error {
	c.RoleAssignments.WithLabelValues("unassigned", a.RoleType).Inc()
	return nil
}

func (c *Collector) OnPermissionsGranted(_ context.Context, outcomes []permission.GrantOutcome) error {
	for _, o := range outcomes {
		c.PermissionGrants.WithLabelValues("granted", strconv.FormatBool(o.Created)).Inc()
	}
	return nil
}

func (c *Collector) OnPermissionRevoked(_ context.Context, _, _, _ string) error {
	c.PermissionGrants.WithLabelValues("revoked", "false").Inc()
	return nil
}

func (c *Collector) OnCustomRoleCreated(_ context.Context, _ *role.CustomRole) error {
	c.CustomRoles.WithLabelValues("created").Inc()
	return nil
}

func (c *Collector) OnCustomRoleRemoved(_ context.Context, _, _ string) error {
	c.CustomRoles.WithLabelValues("removed").Inc()
	return nil
}

func (c *Collector) OnHierarchyUpdated(_ context.Context, _ string, updates []role.LevelUpdate) error {
	c.HierarchyRelevels.Inc()
	c.HierarchyRoleMoves.Add(float64(len(updates)))
	return nil
}
