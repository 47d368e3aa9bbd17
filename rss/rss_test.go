package rss_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharchive/rss"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Product Hunt</title>
  <link rel="alternate" type="text/html" href="https://www.producthunt.com"/>
  <id>tag:producthunt.com,2024:/feed</id>
  <updated>2024-01-02T12:00:00Z</updated>
  <entry>
    <title>A</title>
    <link rel="alternate" type="text/html" href="https://www.producthunt.com/posts/x"/>
    <id>tag:producthunt.com,2024:Post/1</id>
    <published>2024-01-01T00:00:00Z</published>
    <updated>2024-01-01T06:00:00Z</updated>
    <author><name>maker</name></author>
    <content type="html">hello</content>
  </entry>
</feed>`

type parsedRss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel struct {
		Title         string `xml:"title"`
		Link          string `xml:"link"`
		Description   string `xml:"description"`
		LastBuildDate string `xml:"lastBuildDate"`
		Generator     string `xml:"generator"`
		Items         []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			Author      string `xml:"author"`
			GUID        string `xml:"guid"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseOutput(t *testing.T, document string) parsedRss {
	t.Helper()
	var parsed parsedRss
	require.NoError(t, xml.Unmarshal([]byte(document), &parsed))
	return parsed
}

func TestValidate(t *testing.T) {
	assert.NoError(t, rss.Validate(atomFeed))
	assert.NoError(t, rss.Validate("<a><b>text</b></a>"))
	assert.Error(t, rss.Validate("<a><b></a>"))
	assert.Error(t, rss.Validate("not xml at all <"))
}

func TestNormalizeAtomToRss(t *testing.T) {
	document, err := rss.Normalize(atomFeed, "https://arc.example")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(document, "<?xml"))

	parsed := parseOutput(t, document)
	assert.Equal(t, "2.0", parsed.Version)
	assert.Equal(t, "Product Hunt", parsed.Channel.Title)
	assert.Equal(t, "https://arc.example", parsed.Channel.Link)
	assert.NotEmpty(t, parsed.Channel.Description)
	assert.Equal(t, "Tue, 02 Jan 2024 12:00:00 +0000", parsed.Channel.LastBuildDate)
	assert.Equal(t, "pharchive", parsed.Channel.Generator)

	require.Len(t, parsed.Channel.Items, 1)
	item := parsed.Channel.Items[0]
	assert.Equal(t, "A", item.Title)
	assert.Equal(t, "https://arc.example/posts/x", item.Link)
	assert.Equal(t, "hello", item.Description)
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 +0000", item.PubDate)
	assert.Equal(t, "maker", item.Author)
	assert.Equal(t, "tag:producthunt.com,2024:Post/1", item.GUID)
}

func TestNormalizeWithoutArchiveBase(t *testing.T) {
	document, err := rss.Normalize(atomFeed, "")
	require.NoError(t, err)

	parsed := parseOutput(t, document)
	assert.Equal(t, "https://www.producthunt.com", parsed.Channel.Link)
	require.Len(t, parsed.Channel.Items, 1)
	assert.Equal(t, "https://www.producthunt.com/posts/x", parsed.Channel.Items[0].Link)
}

func TestNormalizeDefaultTitle(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <id>tag:example,2024:/feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
</feed>`

	document, err := rss.Normalize(feed, "https://arc.example")
	require.NoError(t, err)

	parsed := parseOutput(t, document)
	assert.Equal(t, "Product Hunt Archive", parsed.Channel.Title)
}

func TestNormalizeOmitsUnparseableDates(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Feed</title>
  <id>tag:example,2024:/feed</id>
  <entry>
    <title>No date</title>
    <id>tag:example,2024:Post/1</id>
    <link rel="alternate" href="https://elsewhere.example/article"/>
  </entry>
</feed>`

	document, err := rss.Normalize(feed, "https://arc.example")
	require.NoError(t, err)

	parsed := parseOutput(t, document)
	require.Len(t, parsed.Channel.Items, 1)
	assert.Empty(t, parsed.Channel.Items[0].PubDate)
	assert.NotEmpty(t, parsed.Channel.LastBuildDate)
	// Links outside the source domain pass through unchanged.
	assert.Equal(t, "https://elsewhere.example/article", parsed.Channel.Items[0].Link)
}

func TestNormalizeRewritesContentLinks(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Feed</title>
  <id>tag:example,2024:/feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Post</title>
    <id>tag:example,2024:Post/1</id>
    <published>2024-01-01T00:00:00Z</published>
    <content type="html">&lt;a href="https://www.producthunt.com/posts/launch?utm_campaign=feed"&gt;launch&lt;/a&gt; and &lt;a href="https://other.example/page"&gt;other&lt;/a&gt;</content>
  </entry>
</feed>`

	document, err := rss.Normalize(feed, "https://arc.example")
	require.NoError(t, err)

	parsed := parseOutput(t, document)
	require.Len(t, parsed.Channel.Items, 1)
	description := parsed.Channel.Items[0].Description
	assert.Contains(t, description, `href="https://arc.example/posts/launch?utm_campaign=feed"`)
	assert.Contains(t, description, `href="https://other.example/page"`)
	assert.NotContains(t, description, "www.producthunt.com")
}

func TestNormalizeRejectsNonFeedDocuments(t *testing.T) {
	_, err := rss.Normalize("<html><body>nope</body></html>", "")
	assert.Error(t, err)
}
