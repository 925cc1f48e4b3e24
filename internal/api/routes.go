package api

import (
	"net/http"

	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/middleware"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/module"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/routes"
)

// newModule mounts group under prefix with the shared middleware stack.
func newModule(
	prefix string,
	group routes.Group,
	cfg *config.Config,
	runtime *Runtime,
	maxBytes int64,
) *module.Module {
	mux := http.NewServeMux()
	routes.Register(mux, group)

	m := module.New(prefix, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Tracing("http"))
	m.Use(middleware.MaxBytes(maxBytes))
	return m
}
