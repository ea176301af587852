package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"chatfront/pkg/httpx"
)

// chatfront-probe is a lean liveness sidecar for load balancers that poll
// aggressively: it answers /healthz without touching the main API process.
// The -engine flag selects the serving stack; fasthttp is the default for
// minimal per-request overhead.
func main() {
	addr := flag.String("addr", ":8081", "listen address for the health probe")
	engine := flag.String("engine", "fasthttp", "serving engine: fasthttp or nethttp")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	h := func(w httpx.ResponseWriter, r *httpx.Request) {
		switch r.Path {
		case "/health", "/healthz":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	fmt.Printf("chatfront probe (%s) listening on %s\n", *engine, *addr)
	switch *engine {
	case "nethttp":
		srv := &http.Server{
			Addr:         *addr,
			Handler:      httpx.NetHTTPAdapter(h),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			fmt.Printf("probe server exit: %v\n", err)
		}
	default:
		srv := &fasthttp.Server{
			Handler:            httpx.FastHTTPAdapter(h),
			Name:               "chatfront-probe",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
		if err := srv.ListenAndServe(*addr); err != nil {
			fmt.Printf("probe server exit: %v\n", err)
		}
	}
}
