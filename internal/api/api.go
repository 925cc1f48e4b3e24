// Package api assembles the HTTP modules for every domain system.
package api

import (
	"fmt"

	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/internal/infrastructure"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/module"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/openapi"
)

// uploadOverhead allows for multipart framing around an upload at the size limit.
const uploadOverhead = 1 << 20

// queryBodyLimit caps bodies on endpoints that take none.
const queryBodyLimit = 64 << 10

// Modules are the domain modules mounted on the server router.
type Modules struct {
	Analyze *module.Module
	Results *module.Module
	Jobs    *module.Module

	spec []byte
}

// NewModules creates the API modules with their handlers and middleware.
func NewModules(cfg *config.Config, infra *infrastructure.Infrastructure) (*Modules, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}

	spec, err := openapi.MarshalJSON(NewSpec(cfg))
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}

	return &Modules{
		Analyze: newModule("/analyze", domain.Analysis.Handler().Routes(), cfg, runtime,
			runtime.MaxUploadSize+uploadOverhead),
		Results: newModule("/results", domain.Results.Handler().Routes(), cfg, runtime, queryBodyLimit),
		Jobs:    newModule("/jobs", domain.Jobs.Handler(domain.Analysis).Routes(), cfg, runtime, queryBodyLimit),
		spec:    spec,
	}, nil
}

// Mount registers every module and the API document with the router.
func (m *Modules) Mount(router *module.Router) {
	router.HandleNative("GET "+specPath, openapi.ServeSpec(m.spec))
	router.Mount(m.Analyze)
	router.Mount(m.Results)
	router.Mount(m.Jobs)
}
