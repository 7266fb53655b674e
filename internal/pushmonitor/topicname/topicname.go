// Package topicname parses and builds the "<storeName>_v<versionNumber>"
// topic naming convention shared by the push monitor, the store metadata
// repository, and the routing layer.
package topicname

import (
	"fmt"
	"strconv"
	"strings"
)

const versionSeparator = "_v"

// Build returns the version topic name for storeName/versionNumber.
func Build(storeName string, versionNumber int) string {
	return fmt.Sprintf("%s%s%d", storeName, versionSeparator, versionNumber)
}

// Parse splits topic into its store name and version number. It is total:
// any string without a well-formed "_v<digits>" suffix parses as version 0
// with the whole input as the store name, rather than failing. Callers that
// need to detect malformed topics should check the ok return instead of
// racing to interpret a zero version.
func Parse(topic string) (storeName string, versionNumber int, ok bool) {
	idx := strings.LastIndex(topic, versionSeparator)
	if idx < 0 {
		return topic, 0, false
	}

	versionStr := topic[idx+len(versionSeparator):]
	n, err := strconv.Atoi(versionStr)
	if err != nil || n < 0 {
		return topic, 0, false
	}

	return topic[:idx], n, true
}
