package instance

import (
	"os"

	"github.com/wiedu/wiedu-backend/pkg/env"
)

// GetID identifies this process in lock owners and logs. WIEDU_INSTANCE_ID
// wins, then the hostname (the pod name on Cloud Run and k8s).
func GetID() string {
	if id := env.Get("WIEDU_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
