package rss

import (
	"encoding/xml"
	"fmt"
)

// RSS is the root element of an RSS feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in an RSS feed.
type Channel struct {
	XMLName       xml.Name `xml:"channel"`
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Description   string   `xml:"description"`
	Language      string   `xml:"language,omitempty"`
	PubDate       string   `xml:"pubDate,omitempty"`
	LastBuildDate string   `xml:"lastBuildDate,omitempty"`
	Items         []Item   `xml:"item"`
}

// Item represents an item element in an RSS feed. Link and GUID are left
// out of the document when empty.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	Description string   `xml:"description,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        *GUID    `xml:"guid,omitempty"`
}

type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Marshal renders the document with an XML declaration.
func (r *RSS) Marshal() ([]byte, error) {
	out, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling RSS feed to XML: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
