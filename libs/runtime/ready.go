package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Second

// ReadyCheck is a named dependency probe behind /readyz. A nil Check is
// skipped so services can register probes conditionally.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

func (c ReadyCheck) run(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.Check(probeCtx)
}

// NewBaseMuxWithReady returns a mux preloaded with /healthz (liveness,
// always ok) and /readyz (fails with 503 and the failing probe names when
// any dependency is down).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", readyHandler(checks))
	return mux
}

func readyHandler(checks []ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var down []string
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			if err := c.run(r.Context()); err != nil {
				name := c.Name
				if name == "" {
					name = "dependency"
				}
				down = append(down, name+": "+err.Error())
			}
		}
		if len(down) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(down, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
