package stateful

import (
	"maps"
	"net/http"
	"regexp"
)

// DefaultContentType is used when a state response sets none.
const DefaultContentType = "application/json"

var placeholderPattern = regexp.MustCompile(`\{\{\s*(resource_id|state)\s*\}\}`)

// Render substitutes {{resource_id}} and {{state}} in the state response body.
// No other template syntax is interpreted.
func Render(resp StateResponse, resourceID, state string) *StatefulResponse {
	body := placeholderPattern.ReplaceAllStringFunc(resp.BodyTemplate, func(tok string) string {
		if placeholderPattern.FindStringSubmatch(tok)[1] == "resource_id" {
			return resourceID
		}
		return state
	})

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	headers := maps.Clone(resp.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}

	return &StatefulResponse{
		StatusCode:  status,
		Headers:     headers,
		Body:        body,
		ContentType: contentType,
		State:       state,
		ResourceID:  resourceID,
	}
}
