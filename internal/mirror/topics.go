package mirror

import "strings"

// topicReplacer strips characters with meaning in MQTT topic filters from a
// single topic level.
var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Topic joins prefix and a message type into a topic. The type always
// occupies exactly one level; an empty type becomes "unknown".
func Topic(prefix, msgType string) string {
	level := topicReplacer.Replace(msgType)
	if level == "" {
		level = "unknown"
	}
	if prefix == "" {
		return level
	}
	return prefix + "/" + level
}
