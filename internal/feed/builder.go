package feed

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"kevfeed/internal/catalog"
	"kevfeed/internal/rss"
)

var ErrBuild = errors.New("feed build error")

const (
	DefaultTitle       = "CISA Exploited Vulnerabilities"
	DefaultLink        = "https://www.cisa.gov/known-exploited-vulnerabilities-catalog"
	DefaultDescription = "RSS feed of the CISA exploited vulnerabilities list"
)

// Channel is the fixed channel-level metadata of the generated feed.
type Channel struct {
	Title       string
	Link        string
	Description string
}

func DefaultChannel() Channel {
	return Channel{
		Title:       DefaultTitle,
		Link:        DefaultLink,
		Description: DefaultDescription,
	}
}

// Build maps a catalog into an RSS document using the default channel.
func Build(c *catalog.Catalog) (*rss.RSS, error) {
	return DefaultChannel().Build(c)
}

// Build maps every vulnerability to one item, newest dateAdded first, and
// stamps the channel with the catalog's release date. Nothing is returned
// unless the whole document could be assembled.
func (ch Channel) Build(c *catalog.Catalog) (*rss.RSS, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no catalog", ErrBuild)
	}

	var missing []string
	if ch.Title == "" {
		missing = append(missing, "title")
	}
	if ch.Link == "" {
		missing = append(missing, "link")
	}
	if ch.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing channel field(s): %s", ErrBuild, strings.Join(missing, ", "))
	}

	items := lo.Map(c.Vulnerabilities, func(v catalog.Vulnerability, _ int) rss.Item {
		return itemFor(v)
	})
	sortNewestFirst(items)

	return &rss.RSS{
		Version: "2.0",
		Channel: rss.Channel{
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			Language:      "en-us",
			PubDate:       c.DateReleased,
			LastBuildDate: c.DateReleased,
			Items:         items,
		},
	}, nil
}

func itemFor(v catalog.Vulnerability) rss.Item {
	item := rss.Item{
		Title:       v.VulnerabilityName,
		Description: v.ShortDescription,
		PubDate:     v.DateAdded,
	}
	if v.CVEID != nil {
		item.Link = catalog.CVELink(*v.CVEID)
		item.GUID = &rss.GUID{Value: item.Link, IsPermaLink: true}
	}
	return item
}

// sortNewestFirst orders by the raw pubDate strings. The upstream dates are
// zero-padded YYYY-MM-DD, so byte order matches date order; nothing is parsed.
func sortNewestFirst(items []rss.Item) {
	slices.SortStableFunc(items, func(a, b rss.Item) int {
		return strings.Compare(b.PubDate, a.PubDate)
	})
}
