package handlers

import (
	"context"
	"net/http"
	"time"

	"featureboard/internal/utils"
)

// Health reports ok when every check passes within two seconds.
func Health(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		out := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				out[name] = err.Error()
				out["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		utils.JSON(w, code, out)
	}
}
