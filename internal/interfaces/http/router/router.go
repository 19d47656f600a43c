package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is one endpoint inside a RouteGroup
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// RouteGroup is one area of the API mounted under a shared path prefix with
// its own middleware
type RouteGroup struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// NewRouteGroup starts an empty group mounted at prefix
func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{Name: name, Prefix: prefix}
}

// Use appends group middleware; it runs after the router-wide chain
func (g *RouteGroup) Use(mw ...gin.HandlerFunc) *RouteGroup {
	g.Middleware = append(g.Middleware, mw...)
	return g
}

func (g *RouteGroup) GET(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.add(http.MethodGet, path, h)
}

func (g *RouteGroup) POST(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.add(http.MethodPost, path, h)
}

func (g *RouteGroup) add(method, path string, h []gin.HandlerFunc) *RouteGroup {
	g.Routes = append(g.Routes, Route{Method: method, Path: path, Handlers: h})
	return g
}

func (g *RouteGroup) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.Prefix, g.Middleware...)
	for _, r := range g.Routes {
		rg.Handle(r.Method, r.Path, r.Handlers...)
	}
}

// Router collects route groups and mounts them under /api, or
// /api/<version> when a version is set
type Router struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	groups     []*RouteGroup
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion adds a version segment after /api
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware for every API route. Routes registered on the engine
// itself, such as /health, do not pass through it.
func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

// Register queues groups for Setup
func (r *Router) Register(groups ...*RouteGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Prefix is the path every group is mounted under
func (r *Router) Prefix() string {
	if r.version == "" {
		return "/api"
	}
	return "/api/" + r.version
}

// Setup mounts the registered groups on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.Prefix(), r.middleware...)
	for _, g := range r.groups {
		g.mount(api)
	}
}
