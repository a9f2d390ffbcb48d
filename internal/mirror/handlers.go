package mirror

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/saaga0h/jeeves-mirror/pkg/metrics"
	"github.com/saaga0h/jeeves-mirror/pkg/mqtt"
)

// Widget ids and kinds owned by the agent
const (
	widgetWeather = "weather"
	widgetMusic   = "music"

	kindWeather = "weather"
	kindMusic   = "music"
	kindGeneric = "generic"
)

// NowPlaying is published by media players on the now-playing topic
type NowPlaying struct {
	State   string `json:"state"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album,omitempty"`
	Artwork string `json:"artwork,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Playing reports whether the player is actively playing something
func (n NowPlaying) Playing() bool {
	return strings.EqualFold(n.State, "playing") && n.Title != ""
}

// handleNowPlaying shows the music widget while something is playing
func (a *Agent) handleNowPlaying(msg mqtt.Message) {
	payload := bytes.TrimSpace(msg.Payload())

	var np NowPlaying
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &np); err != nil {
			a.logger.Warn("Failed to parse now-playing message", "topic", msg.Topic(), "error", err)
			return
		}
	}

	if !np.Playing() {
		if a.tray.Remove(widgetMusic) {
			metrics.SetWidgets(a.tray.Len())
			a.logger.Info("Music widget removed", "state", np.State)
		}
		return
	}

	content := map[string]string{
		"title":  np.Title,
		"artist": np.Artist,
	}
	if np.Album != "" {
		content["album"] = np.Album
	}
	if np.Artwork != "" {
		content["artwork"] = np.Artwork
	}

	_, changed, err := a.tray.Put(widgetMusic, kindMusic, content)
	if err != nil {
		a.logger.Error("Failed to update music widget", "error", err)
		return
	}
	if changed {
		metrics.SetWidgets(a.tray.Len())
		a.logger.Info("Music widget updated", "title", np.Title, "artist", np.Artist)
	}
}

// widgetMessage is the payload on mirror/widget/{id}. Payloads without a kind
// are shown as generic widgets with the whole payload as content.
type widgetMessage struct {
	Kind    string          `json:"kind"`
	Content json.RawMessage `json:"content"`
}

// handleWidget adds, updates or (on an empty payload) removes a widget
func (a *Agent) handleWidget(msg mqtt.Message) {
	id, ok := mqtt.WidgetIDFromTopic(msg.Topic())
	if !ok {
		a.logger.Warn("Invalid widget topic format", "topic", msg.Topic())
		return
	}
	if id == widgetWeather || id == widgetMusic {
		a.logger.Warn("Widget id is reserved", "id", id)
		return
	}

	payload := bytes.TrimSpace(msg.Payload())
	if len(payload) == 0 {
		if a.tray.Remove(id) {
			metrics.SetWidgets(a.tray.Len())
			a.logger.Info("Widget removed", "id", id)
		}
		return
	}

	kind := kindGeneric
	content := json.RawMessage(payload)

	var wm widgetMessage
	if err := json.Unmarshal(payload, &wm); err == nil && wm.Kind != "" {
		kind = wm.Kind
		if len(wm.Content) > 0 {
			content = wm.Content
		} else {
			content = json.RawMessage("null")
		}
	}

	_, changed, err := a.tray.Put(id, kind, content)
	if err != nil {
		a.logger.Warn("Rejected widget", "id", id, "error", err)
		return
	}
	if changed {
		metrics.SetWidgets(a.tray.Len())
		a.logger.Info("Widget updated", "id", id, "kind", kind, "retained", msg.Retained())
	}
}
