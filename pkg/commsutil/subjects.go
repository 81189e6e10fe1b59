package commsutil

import (
	"fmt"
	"strings"
)

// DefaultQueueGroup is the queue group resource servers share so that
// replicas load-balance deliveries of the same subject.
const DefaultQueueGroup = "rest"

// BuildActionSubject builds the request/reply subject for a verb:
// <resource>.<scope>.<verb>.
func BuildActionSubject(resourceName, scope, verb string) string {
	return fmt.Sprintf("%s.%s.%s", resourceName, scope, verb)
}

// BuildEventSubject returns the broadcast subject of a resource.
func BuildEventSubject(resourceName string) string {
	return resourceName
}

// ValidateResourceName rejects names that would not form a literal subject token sequence.
func ValidateResourceName(name string) error {
	if name == "" {
		return fmt.Errorf("commsutil:subjects - resource name is empty")
	}
	if strings.ContainsAny(name, " \t\r\n*>") {
		return fmt.Errorf("commsutil:subjects - resource name %q contains whitespace or wildcards", name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return fmt.Errorf("commsutil:subjects - resource name %q has an empty token", name)
	}
	return nil
}
