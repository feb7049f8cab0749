package feed

import (
	"time"

	"github.com/blackmichael/snippet-feed/internal/client"
)

var placeholderContent = []struct {
	topic   client.Topic
	content string
}{
	{
		client.Topic{ID: 1, Name: "Science"},
		"Octopuses have three hearts. Two pump blood through the gills, and the third moves it around the rest of the body.",
	},
	{
		client.Topic{ID: 2, Name: "History"},
		"The Great Library of Alexandria declined over centuries through budget cuts and political purges rather than one single fire.",
	},
	{
		client.Topic{ID: 3, Name: "Technology"},
		"The first computer bug was a real moth, found in 1947 trapped in a relay of the Harvard Mark II and taped into the logbook.",
	},
	{
		client.Topic{ID: 4, Name: "Mathematics"},
		"In a room of just 23 people there is a better than even chance that two of them share a birthday.",
	},
	{
		client.Topic{ID: 5, Name: "Nature"},
		"Bamboo can grow almost a metre in a single day, making it one of the fastest-growing plants on Earth.",
	},
}

// Placeholders returns the fixed offline post set shown when the feed cannot
// be loaded. Timestamps are spaced an hour apart counting back from now.
func Placeholders(now time.Time) []client.Post {
	posts := make([]client.Post, len(placeholderContent))
	for i, p := range placeholderContent {
		posts[i] = client.Post{
			ID:        int64(i + 1),
			Content:   p.content,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Topic:     p.topic,
		}
	}
	return posts
}
