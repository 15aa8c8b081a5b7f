package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
)

// Router uses the standard library http.ServeMux; the route surface is
// small enough that a third-party router buys nothing.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// pathTail splits the part of the path after the prefix into at most
// two segments, e.g. "/api/v1/probes/check_http/versions" with prefix
// "/api/v1/probes/" gives ("check_http", "versions").
func pathTail(path, prefix string) (string, string) {
	tail := strings.TrimPrefix(path, prefix)
	if i := strings.Index(tail, "/"); i >= 0 {
		return tail[:i], tail[i+1:]
	}
	return tail, ""
}

// RegisterProbeRoutes wires the public probe and package catalog.
func (r *Router) RegisterProbeRoutes(h *ProbeHandler) {
	r.Handle("/api/v1/probes", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/probes/", func(w http.ResponseWriter, req *http.Request) {
		name, rest := pathTail(req.URL.Path, "/api/v1/probes/")
		if name == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case rest == "" && req.Method == http.MethodGet:
			h.Get(w, req, name)
		case rest == "" && req.Method == http.MethodPut:
			h.Update(w, req, name)
		case rest == "" && req.Method == http.MethodDelete:
			h.Delete(w, req, name)
		case rest == "versions" && req.Method == http.MethodGet:
			h.Versions(w, req, name)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/packages", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListPackages(w, req)
		case http.MethodPost:
			h.CreatePackage(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/yumrepos", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListYumRepos(w, req)
	})
}

// RegisterTemplateRoutes wires the public metric template catalog.
func (r *Router) RegisterTemplateRoutes(h *MetricTemplateHandler) {
	r.Handle("/api/v1/metrictemplates", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/metrictemplates/", func(w http.ResponseWriter, req *http.Request) {
		name, rest := pathTail(req.URL.Path, "/api/v1/metrictemplates/")
		if name == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case rest == "" && req.Method == http.MethodGet:
			h.Get(w, req, name)
		case rest == "" && req.Method == http.MethodPut:
			h.Update(w, req, name)
		case rest == "" && req.Method == http.MethodDelete:
			h.Delete(w, req, name)
		case rest == "versions" && req.Method == http.MethodGet:
			h.Versions(w, req, name)
		case rest == "replay" && req.Method == http.MethodPost:
			h.Replay(w, req, name)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterMetricRoutes wires the tenant-scoped metric surface. The
// fixed segments (import, sync, syncreport, export) are claimed before
// metric names; a metric cannot use those names.
func (r *Router) RegisterMetricRoutes(h *MetricHandler) {
	r.Handle("/api/v1/metrics", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.List(w, req)
	})

	r.Handle("/api/v1/metrics/", func(w http.ResponseWriter, req *http.Request) {
		name, rest := pathTail(req.URL.Path, "/api/v1/metrics/")
		if name == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if rest == "" {
			switch name {
			case "import":
				if req.Method != http.MethodPost {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Import(w, req)
				return
			case "sync":
				if req.Method != http.MethodPost {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Sync(w, req)
				return
			case "syncreport":
				if req.Method != http.MethodGet {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.SyncReport(w, req)
				return
			case "export":
				if req.Method != http.MethodGet {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Export(w, req)
				return
			}
		}
		switch {
		case rest == "" && req.Method == http.MethodGet:
			h.Get(w, req, name)
		case rest == "" && req.Method == http.MethodPut:
			h.Update(w, req, name)
		case rest == "" && req.Method == http.MethodDelete:
			h.Delete(w, req, name)
		case rest == "versions" && req.Method == http.MethodGet:
			h.Versions(w, req, name)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterAPIKeyRoutes wires the Web-API token admin surface.
func (r *Router) RegisterAPIKeyRoutes(h *APIKeyHandler) {
	r.Handle("/api/v1/apikeys", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Save(w, req)
	})

	r.Handle("/api/v1/apikeys/", func(w http.ResponseWriter, req *http.Request) {
		name, rest := pathTail(req.URL.Path, "/api/v1/apikeys/")
		if name == "" || rest != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Get(w, req, name)
	})
}

// RegisterProfileRoutes wires the tenant-scoped profile mirrors, one
// route pair per profile kind.
func (r *Router) RegisterProfileRoutes(h *ProfileHandler) {
	kinds := map[string]domain.ProfileKind{
		"/api/v1/metricprofiles":     domain.KindMetricProfile,
		"/api/v1/aggregations":       domain.KindAggregation,
		"/api/v1/thresholdsprofiles": domain.KindThresholdsProfile,
	}
	for base, kind := range kinds {
		base, kind := base, kind
		r.Handle(base, func(w http.ResponseWriter, req *http.Request) {
			switch req.Method {
			case http.MethodGet:
				h.List(w, req, kind)
			case http.MethodPost:
				h.Save(w, req, kind)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		})
		r.Handle(base+"/", func(w http.ResponseWriter, req *http.Request) {
			apiID, rest := pathTail(req.URL.Path, base+"/")
			if apiID == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			switch {
			case rest == "" && req.Method == http.MethodGet:
				h.Get(w, req, kind, apiID)
			case rest == "" && req.Method == http.MethodDelete:
				h.Delete(w, req, kind, apiID)
			case rest == "versions" && req.Method == http.MethodGet:
				h.Versions(w, req, kind, apiID)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		})
	}
}
