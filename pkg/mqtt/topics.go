package mqtt

import "strings"

// Topic constants for the mirror
const (
	// Media players publish what is currently playing (input)
	TopicNowPlaying = "mirror/media/now-playing"

	// Sky phase changes (output, retained)
	TopicSkyContext = "mirror/context/sky"

	// Widget content pushed by other agents (input)
	// Pattern: mirror/widget/{id}
	TopicWidgets = "mirror/widget/+"
)

// WidgetTopic constructs the topic for a widget id
// Pattern: mirror/widget/{id}
func WidgetTopic(id string) string {
	return "mirror/widget/" + id
}

// WidgetIDFromTopic extracts the widget id from mirror/widget/{id}
func WidgetIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "mirror" || parts[1] != "widget" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
