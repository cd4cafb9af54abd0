package model

// Topic is an interest category. It names a group room and serves as the
// matchmaking criterion for private matches.
type Topic string

const (
	TopicSports   Topic = "Sports"
	TopicCoding   Topic = "Coding"
	TopicMovies   Topic = "Movies"
	TopicMusic    Topic = "Music"
	TopicGaming   Topic = "Gaming"
	TopicTravel   Topic = "Travel"
	TopicNews     Topic = "News"
	TopicPolitics Topic = "Politics"
	TopicGossips  Topic = "Gossips"
	TopicStories  Topic = "Stories"
	TopicScience  Topic = "Science"
	TopicSpace    Topic = "Space"
	TopicArt      Topic = "Art"
	TopicMemes    Topic = "Memes"

	// TopicRandom is a request-only sentinel: valid as a matchmaking
	// criterion, never a literal room topic assigned by the server.
	TopicRandom Topic = "Random"
)

// Topics lists every selectable interest in display order. The first
// PrimaryCount entries are the "primary" row in pickers.
var Topics = []Topic{
	TopicSports, TopicCoding, TopicMovies, TopicMusic, TopicGaming,
	TopicTravel, TopicNews, TopicPolitics, TopicGossips, TopicStories,
	TopicScience, TopicSpace, TopicArt, TopicMemes,
}

// PrimaryCount is how many leading Topics are presented as primary.
const PrimaryCount = 3

// Valid reports whether t is one of the fixed interests (not Random).
func (t Topic) Valid() bool {
	for _, v := range Topics {
		if v == t {
			return true
		}
	}
	return false
}

// ParseTopic resolves a user-entered name to a Topic, accepting "Random".
func ParseTopic(s string) (Topic, bool) {
	if Topic(s) == TopicRandom {
		return TopicRandom, true
	}
	t := Topic(s)
	if t.Valid() {
		return t, true
	}
	return "", false
}
