// Package catalog serves the loaded aggregation specs and the definitions
// they compile to.
package catalog

import (
	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

// Service provides the spec catalog API.
type Service struct {
	specs    aggregation.SpecRepository
	compiler *rollup.Compiler
}

// NewService creates a new catalog API service. A nil compiler uses the defaults.
func NewService(specs aggregation.SpecRepository, compiler *rollup.Compiler) *Service {
	if compiler == nil {
		compiler = rollup.NewCompiler()
	}
	return &Service{
		specs:    specs,
		compiler: compiler,
	}
}

// RegisterRoutes registers the catalog API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	handler := NewHandler(s.specs, s.compiler)

	specs := r.Group("/v1/specs")
	{
		specs.GET("", handler.HandleList)
		// /v1/specs/{name}/plan
		specs.GET("/:name/plan", handler.HandlePlan)
	}
}
