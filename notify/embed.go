package notify

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Event types understood by BuildEmbeds
const (
	EventSiteVisit       = "new_site_visit"
	EventGuestbookEntry  = "guestbook_entry"
	EventVisitorNote     = "new_visitor_note"
	EventSurpriseComment = "surprise_comment"
	EventEmotion         = "emotion_submitted"
	EventGameOver        = "game_over"
)

// Embed colours
const (
	ColorBlurple = 0x5865F2
	ColorBlue    = 0x3498db
	ColorGreen   = 0x2ecc71
	ColorPurple  = 0x9b59b6
	ColorPink    = 0xe91e63
	ColorGold    = 0xf1c40f
	ColorGrey    = 0x7f8c8d
)

const unknown = "Unknown"

// Location is the visitor's coarse geolocation
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Event is a site event as posted by the front end
type Event struct {
	IPAddress  string         `json:"ipAddress,omitempty"`
	Location   *Location      `json:"locationData,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	EventType  string         `json:"eventType"`
	Data       map[string]any `json:"eventSpecificData,omitempty"`
	DeviceInfo string         `json:"deviceInfo,omitempty"`
}

// Embed is a Discord rich embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

// str returns the data value under key as a string, or def when missing or empty
func (e Event) str(key, def string) string {
	v, ok := e.Data[key]
	if !ok || v == nil {
		return def
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return def
	}
	return s
}

// footer renders "IP: x | Location: city, country[ | Device: d]"
func (e Event) footer() string {
	ip := e.IPAddress
	if ip == "" {
		ip = unknown
	}
	city, country := unknown, unknown
	if e.Location != nil {
		if e.Location.City != "" {
			city = e.Location.City
		}
		if e.Location.Country != "" {
			country = e.Location.Country
		}
	}
	text := fmt.Sprintf("IP: %s | Location: %s, %s", ip, city, country)
	if e.DeviceInfo != "" {
		text += " | Device: " + e.DeviceInfo
	}
	return text
}

// BuildEmbeds formats an event as Discord embeds. now is used when the event
// carries no timestamp.
func BuildEmbeds(e Event, now time.Time) []Embed {
	ts := e.Timestamp
	if ts == "" {
		ts = now.UTC().Format(time.RFC3339)
	}
	base := Embed{
		Timestamp: ts,
		Footer:    &EmbedFooter{Text: e.footer()},
	}

	embed := base
	switch e.EventType {
	case EventSiteVisit:
		embed.Title = "🚀 New site visit"
		embed.Color = ColorBlurple
		embed.Description = "A visitor opened the site."

	case EventGuestbookEntry:
		embed.Title = "📝 New guestbook message"
		embed.Color = ColorBlue
		embed.Fields = []EmbedField{
			{Name: "Sender", Value: e.str("userDisplay", "Anonymous"), Inline: true},
			{Name: "Message", Value: e.str("message", "No content")},
		}

	case EventVisitorNote:
		embed.Title = "📌 New visitor note"
		embed.Color = ColorGreen
		embed.Fields = []EmbedField{
			{Name: "Note", Value: e.str("noteText", "No content")},
		}

	case EventSurpriseComment:
		embed.Title = "💬 New comment in the surprise box"
		embed.Color = ColorPurple
		embed.Fields = []EmbedField{
			{Name: "Commenter", Value: e.str("userDisplay", "Anonymous"), Inline: true},
			{Name: "Surprise message", Value: e.str("originalMessage", "Unspecified"), Inline: true},
			{Name: "Comment", Value: e.str("comment", "No content")},
		}

	case EventEmotion:
		embed = emotionEmbed(e, base)

	case EventGameOver:
		embed.Title = "🎮 Tile merge game finished"
		embed.Color = ColorGold
		embed.Description = fmt.Sprintf("Final score **%s**.", e.str("score", "0"))
		embed.Fields = []EmbedField{
			{Name: "Score", Value: e.str("score", "0"), Inline: true},
			{Name: "Best tile", Value: e.str("best_tile", "0"), Inline: true},
			{Name: "Moves", Value: e.str("moves", "0"), Inline: true},
			{Name: "Variant", Value: e.str("variant", "classic"), Inline: true},
		}

	default:
		data, _ := json.MarshalIndent(e.Data, "", "  ")
		if e.Data == nil {
			data = []byte("{}")
		}
		embed.Title = fmt.Sprintf("⚠️ Unknown event type: %s", e.EventType)
		embed.Color = ColorGrey
		embed.Description = fmt.Sprintf("No notification format is defined for this event type.\nData received: ```json\n%s\n```", data)
	}

	return []Embed{embed}
}

// emotionEmbed links the pinned emotion to a map when the coordinates parse
func emotionEmbed(e Event, base Embed) Embed {
	emotion := e.str("emotion", unknown)
	embed := base
	embed.Title = fmt.Sprintf("💖 New emotion added: %s", emotion)
	embed.Description = fmt.Sprintf("A visitor pinned **%s** on the map.", e.str("emotion", "an unknown emotion"))
	embed.Color = ColorPink
	embed.Fields = []EmbedField{}

	coords := e.str("coordinates", "")
	lat, lng, ok := ParseCoordinates(coords)
	switch {
	case ok:
		pair := formatFloat(lat) + "," + formatFloat(lng)
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  "📍 Location",
			Value: fmt.Sprintf("[View on Google Maps](https://www.google.com/maps?q=%s)", pair),
		})
		embed.Image = &EmbedImage{URL: fmt.Sprintf(
			"https://staticmap.openstreetmap.de/staticmap.php?center=%s&zoom=14&size=500x300&maptype=mapnik&markers=%s,blue-pushpin",
			pair, pair)}
	case coords != "":
		embed.Fields = append(embed.Fields, EmbedField{Name: "Coordinates", Value: coords, Inline: true})
	}
	return embed
}

// ParseCoordinates parses "lat, lng". Zero and non-finite values count as
// missing.
func ParseCoordinates(s string) (float64, float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if !finite(lat) || !finite(lng) || lat == 0 || lng == 0 {
		return 0, 0, false
	}
	return lat, lng, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
