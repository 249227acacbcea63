package gateways

import "context"

// JenkinsGateway fetches JSON documents from the CI metadata API
type JenkinsGateway interface {
	// FetchJSON GETs url and decodes the JSON body into a generic document
	FetchJSON(ctx context.Context, url string) (map[string]interface{}, error)
}
