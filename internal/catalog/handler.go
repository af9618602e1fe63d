package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	httperr "github.com/aevon-lab/aevon-rollup/internal/core/errors"
	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

// Handler handles spec catalog HTTP requests.
type Handler struct {
	specs    aggregation.SpecRepository
	compiler *rollup.Compiler
}

// NewHandler creates a new catalog API handler.
func NewHandler(specs aggregation.SpecRepository, compiler *rollup.Compiler) *Handler {
	return &Handler{
		specs:    specs,
		compiler: compiler,
	}
}

// SpecResponse summarizes one loaded spec.
type SpecResponse struct {
	Name        string   `json:"name"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Base        string   `json:"base"`
	Windows     []string `json:"windows"`
	Heartbeat   string   `json:"heartbeat,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// StepResponse is one compiled definition.
type StepResponse struct {
	Order     int      `json:"order"`
	Role      string   `json:"role"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Namespace string   `json:"namespace"`
	Upstream  []string `json:"upstream"`
	Grace     int      `json:"grace_seconds"`
	Statement string   `json:"statement"`
	Schema    string   `json:"schema"`
}

// PlanResponse is the response body for GET /v1/specs/{name}/plan.
type PlanResponse struct {
	Spec  string         `json:"spec"`
	Steps []StepResponse `json:"steps"`
}

// HandleList handles GET /v1/specs.
// Query parameters: source (optional filter)
func (h *Handler) HandleList(c *gin.Context) {
	specs, err := h.specs.List(c.Request.Context(), c.Query("source"))
	if err != nil {
		slog.Error("[Catalog] Spec list error", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list specs",
		})
		return
	}

	responses := make([]SpecResponse, len(specs))
	for i, spec := range specs {
		responses[i] = toSpecResponse(spec)
	}
	c.JSON(http.StatusOK, responses)
}

// HandlePlan handles GET /v1/specs/{name}/plan.
func (h *Handler) HandlePlan(c *gin.Context) {
	spec, err := h.specs.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, aggregation.ErrSpecNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load spec",
			Details:   err.Error(),
		})
		return
	}

	plan, err := h.compiler.Compile(c.Request.Context(), spec)
	if err != nil {
		slog.Error("[Catalog] Compile error", "spec", spec.Name, "error", err)
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Spec does not compile",
			Details:   err.Error(),
		})
		return
	}

	resp := PlanResponse{Spec: spec.Name, Steps: make([]StepResponse, len(plan.Steps))}
	for i, s := range plan.Steps {
		resp.Steps[i] = StepResponse{
			Order:     s.Order,
			Role:      s.Role().String(),
			Kind:      s.Statement.Kind.String(),
			Name:      s.Name(),
			Namespace: s.Entity.Namespace,
			Upstream:  s.Upstream,
			Grace:     s.Entity.GraceSeconds,
			Statement: s.Statement.String(),
			Schema:    s.Entity.Schema,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func toSpecResponse(spec *aggregation.Spec) SpecResponse {
	windows := make([]string, len(spec.Windows))
	for i, w := range spec.Windows {
		windows[i] = w.Token()
	}
	resp := SpecResponse{
		Name:        spec.Name,
		Source:      spec.Source,
		Target:      spec.Target,
		Base:        spec.BaseTopic(),
		Windows:     windows,
		Fill:        spec.Fill,
		Fingerprint: spec.Fingerprint,
	}
	if spec.Heartbeat != nil {
		resp.Heartbeat = spec.Heartbeat.Token()
	}
	return resp
}
