package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	documentPolicyOnce sync.Once
	documentPolicy     *bluemonday.Policy
)

// HTMLField strips unsafe markup from a rendered document before storage.
func HTMLField(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(documentSanitizer().Sanitize(trimmed))
}

func documentSanitizer() *bluemonday.Policy {
	documentPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		// rendered documents carry simple print formatting
		policy.AllowElements("u", "s", "sub", "sup")
		policy.AllowAttrs("style").OnElements("p", "span")
		documentPolicy = policy
	})
	return documentPolicy
}
