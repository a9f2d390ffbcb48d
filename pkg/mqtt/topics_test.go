package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidgetIDFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		id    string
		ok    bool
	}{
		{WidgetTopic("news"), "news", true},
		{"mirror/widget/", "", false},
		{"mirror/widget/a/b", "", false},
		{"automation/widget/news", "", false},
		{TopicNowPlaying, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := WidgetIDFromTopic(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestTopicMatches(t *testing.T) {
	assert.True(t, TopicMatches(TopicWidgets, "mirror/widget/news"))
	assert.False(t, TopicMatches(TopicWidgets, "mirror/widget/news/extra"))
	assert.True(t, TopicMatches("mirror/#", "mirror/widget/news"))
	assert.True(t, TopicMatches(TopicNowPlaying, TopicNowPlaying))
	assert.False(t, TopicMatches(TopicNowPlaying, "mirror/media"))
}

func TestMockClient_Deliver(t *testing.T) {
	m := NewMockClient()
	var got []string
	assert.NoError(t, m.Subscribe(TopicWidgets, 0, func(msg Message) {
		got = append(got, msg.Topic())
	}))

	assert.True(t, m.Deliver(WidgetTopic("clock"), []byte("{}"), false))
	assert.False(t, m.Deliver(TopicSkyContext, []byte("{}"), false))
	assert.Equal(t, []string{"mirror/widget/clock"}, got)

	assert.NoError(t, m.Unsubscribe(TopicWidgets))
	assert.False(t, m.Deliver(WidgetTopic("clock"), nil, false))
}
