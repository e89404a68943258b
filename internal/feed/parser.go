// -----------------------------------------------------------------------
// Feed Parser - normalizes SEC Atom/RSS feeds into a single entry shape
// -----------------------------------------------------------------------

package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Entry is one normalized feed item, independent of the source shape
type Entry struct {
	ID       string
	Title    string
	Link     string
	Summary  string
	Category string
	Updated  time.Time
}

// Feed is a parsed feed document
type Feed struct {
	Title   string
	Entries []Entry
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomEntry struct {
	ID       string       `xml:"id"`
	Title    string       `xml:"title"`
	Link     atomLink     `xml:"link"`
	Summary  string       `xml:"summary"`
	Updated  string       `xml:"updated"`
	Category atomCategory `xml:"category"`
}

type atomFeed struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssFeed struct {
	Channel rssChannel `xml:"channel"`
}

// ParseFeed parses an Atom or RSS document into normalized entries. An
// unrecognized root element is fatal: the caller cannot proceed without
// knowing the feed shape.
func ParseFeed(data []byte) (*Feed, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed document: %w", err)
	}

	switch root {
	case "feed":
		var doc atomFeed
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse atom feed: %w", err)
		}
		return fromAtom(&doc), nil
	case "rss":
		var doc rssFeed
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse rss feed: %w", err)
		}
		return fromRSS(&doc), nil
	default:
		return nil, fmt.Errorf("unsupported feed root element: <%s>", root)
	}
}

// rootElement returns the local name of the document's first start element
func rootElement(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", fmt.Errorf("empty document")
		}
		if err != nil {
			return "", err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func fromAtom(doc *atomFeed) *Feed {
	feed := &Feed{Title: doc.Title, Entries: make([]Entry, 0, len(doc.Entries))}
	for _, item := range doc.Entries {
		entry := Entry{
			ID:       item.ID,
			Title:    item.Title,
			Link:     item.Link.Href,
			Summary:  item.Summary,
			Category: item.Category.Term,
			Updated:  parseFeedTime(item.Updated),
		}
		if entry.ID == "" {
			entry.ID = syntheticID(entry)
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return feed
}

func fromRSS(doc *rssFeed) *Feed {
	feed := &Feed{Title: doc.Channel.Title, Entries: make([]Entry, 0, len(doc.Channel.Items))}
	for _, item := range doc.Channel.Items {
		entry := Entry{
			ID:       item.GUID,
			Title:    item.Title,
			Link:     item.Link,
			Summary:  item.Description,
			Category: item.Category,
			Updated:  parseFeedTime(item.PubDate),
		}
		if entry.ID == "" {
			entry.ID = syntheticID(entry)
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return feed
}

// syntheticID derives a stable ID for sources that omit one
func syntheticID(entry Entry) string {
	seed := entry.Link + "|" + entry.Title + "|" + entry.Updated.Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// feedTimeFormats covers the timestamp shapes SEC feeds emit
var feedTimeFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02",
}

func parseFeedTime(value string) time.Time {
	for _, format := range feedTimeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
