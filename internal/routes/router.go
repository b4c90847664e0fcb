package routes

import (
	"net/http"

	"github.com/terabiome/mkcloud/internal/handler"
)

// Router wraps http.ServeMux and provides route setup
type Router struct {
	*http.ServeMux
}

// V1Handler returns a handler for v1 API routes
func (router *Router) V1Handler(cloudHandler *handler.Cloud, systemHandler *handler.System) http.Handler {
	mux := http.NewServeMux()

	renderMux := http.NewServeMux()
	renderMux.HandleFunc("POST /admin", cloudHandler.RenderAdmin)
	renderMux.HandleFunc("POST /network", cloudHandler.RenderNetwork)
	renderMux.HandleFunc("POST /compute", cloudHandler.RenderCompute)
	mux.Handle("/render/", http.StripPrefix("/render", renderMux))

	mux.HandleFunc("POST /network/start", cloudHandler.StartNetwork)
	mux.HandleFunc("POST /node/start", cloudHandler.StartNode)
	mux.HandleFunc("POST /node/cleanup", cloudHandler.CleanupNode)
	mux.HandleFunc("POST /cloud/teardown", cloudHandler.TeardownCloud)

	systemMux := http.NewServeMux()
	systemMux.HandleFunc("GET /host-info", systemHandler.HostInfo)
	mux.Handle("/system/", http.StripPrefix("/system", systemMux))

	return mux
}

// SetupMux creates and configures the main router
func SetupMux(cloudHandler *handler.Cloud, systemHandler *handler.System) *Router {
	router := Router{http.NewServeMux()}

	router.ServeMux.Handle("/api/v1/", http.StripPrefix("/api/v1", router.V1Handler(cloudHandler, systemHandler)))

	router.ServeMux.HandleFunc("/heartbeat", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(200)
		writer.Write([]byte("i have not exploded"))
	})

	return &router
}
