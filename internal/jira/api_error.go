package jira

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"
)

// APIError is a failed Jira round trip. When the server explained the
// failure, its messages become the error text.
type APIError struct {
	Op       string
	Status   int
	Messages []string
	Err      error
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, "; ")
	}
	if e.Status != 0 {
		return fmt.Sprintf("jira %s (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("jira %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(op string, resp *models.ResponseScheme, err error) *APIError {
	apiErr := &APIError{Op: op, Err: err}
	if resp == nil {
		return apiErr
	}
	if resp.Response != nil {
		apiErr.Status = resp.StatusCode
	}
	apiErr.Messages = errorMessages(resp.Bytes.Bytes())
	return apiErr
}

// errorMessages extracts the messages of a Jira error body:
//
//	{"errorMessages": ["..."], "errors": {"field": "..."}}
func errorMessages(body []byte) []string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}
	doc := gjson.ParseBytes(body)

	var msgs []string
	for _, m := range doc.Get("errorMessages").Array() {
		if s := m.String(); s != "" {
			msgs = append(msgs, s)
		}
	}

	var fieldMsgs []string
	doc.Get("errors").ForEach(func(key, value gjson.Result) bool {
		fieldMsgs = append(fieldMsgs, key.String()+": "+value.String())
		return true
	})
	sort.Strings(fieldMsgs)

	return append(msgs, fieldMsgs...)
}
