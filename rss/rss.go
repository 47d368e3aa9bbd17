package rss

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	// The only domain whose post links get rewritten into the archive.
	sourceDomain = "https://www.producthunt.com"

	defaultTitle       = "Product Hunt Archive"
	channelDescription = "Archived snapshots of Product Hunt syndication feeds"
	generatorName      = "pharchive"
)

var postHrefPattern = regexp.MustCompile(`href="` + regexp.QuoteMeta(sourceDomain) + `(/posts/[^"]*)"`)

// Stubbed in tests.
var now = time.Now

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate,omitempty"`
	Author      string `xml:"author,omitempty"`
	GUID        string `xml:"guid,omitempty"`
}

// Validate checks that xmlText is well-formed XML. A validation error is
// permanent for the fetched document; it never warrants a re-fetch.
func Validate(xmlText string) error {
	decoder := xml.NewDecoder(strings.NewReader(xmlText))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed XML: %w", err)
		}
	}
}

// Normalize transforms an Atom-shaped feed document into a canonical
// RSS 2.0 document. When archiveBaseURL is non-empty, post links under the
// source domain are rewritten to equivalent archive-relative links, both
// for item links and for href attributes embedded in item content.
func Normalize(xmlText string, archiveBaseURL string) (string, error) {
	feed, err := gofeed.NewParser().ParseString(xmlText)
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}

	channel := rssChannel{
		Title:         feed.Title,
		Link:          archiveBaseURL,
		Description:   channelDescription,
		LastBuildDate: now().UTC().Format(time.RFC1123Z),
		Generator:     generatorName,
	}
	if channel.Title == "" {
		channel.Title = defaultTitle
	}
	if channel.Link == "" {
		channel.Link = feed.Link
	}
	if feed.UpdatedParsed != nil {
		channel.LastBuildDate = feed.UpdatedParsed.Format(time.RFC1123Z)
	}

	for _, entry := range feed.Items {
		item := rssItem{
			Title:       entry.Title,
			Link:        rewritePostLink(entry.Link, archiveBaseURL),
			Description: rewriteContentLinks(entryContent(entry), archiveBaseURL),
			GUID:        entry.GUID,
		}
		if entry.PublishedParsed != nil {
			item.PubDate = entry.PublishedParsed.Format(time.RFC1123Z)
		} else if entry.UpdatedParsed != nil {
			item.PubDate = entry.UpdatedParsed.Format(time.RFC1123Z)
		}
		if entry.Author != nil {
			item.Author = entry.Author.Name
		}
		channel.Items = append(channel.Items, item)
	}

	doc := rssDocument{Version: "2.0", Channel: channel}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize RSS document: %w", err)
	}
	return xml.Header + string(out) + "\n", nil
}

func entryContent(entry *gofeed.Item) string {
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Description
}

// rewritePostLink maps a source-domain post URL onto the archive base.
// All other links pass through unchanged.
func rewritePostLink(link string, archiveBaseURL string) string {
	if archiveBaseURL == "" {
		return link
	}
	if rest, ok := strings.CutPrefix(link, sourceDomain+"/posts/"); ok {
		return archiveBaseURL + "/posts/" + rest
	}
	return link
}

func rewriteContentLinks(content string, archiveBaseURL string) string {
	if archiveBaseURL == "" {
		return content
	}
	return postHrefPattern.ReplaceAllString(content, `href="`+archiveBaseURL+`${1}"`)
}
