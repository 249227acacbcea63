package gateways

import (
	"net/http"
	"strings"
)

// BasicAuth is an optional "user:token" credential for the CI host
type BasicAuth string

// apply sets the Authorization header when a credential is configured
func (a BasicAuth) apply(req *http.Request) {
	if a == "" {
		return
	}
	user, pass, _ := strings.Cut(string(a), ":")
	req.SetBasicAuth(user, pass)
}
