package embed

import (
	"path"
	"regexp"
	"strings"

	"github.com/disgoorg/disgo/discord"
)

const (
	embedTypeGIFV  discord.EmbedType = "gifv"
	embedTypeImage discord.EmbedType = "image"
)

var (
	imgurThumbnailPattern = regexp.MustCompile(`^(https?://i\.imgur\.com/)([A-Za-z0-9]+)h(\.[A-Za-z0-9]+)$`)
	tenorPattern          = regexp.MustCompile(`^https?://media\.tenor\.com/([A-Za-z0-9_-]+)/([^/.]+)\.[A-Za-z0-9]+$`)
	giphyPattern          = regexp.MustCompile(`^https?://media\d*\.giphy\.com/media/([^/]+)/([^/.]+)\.gif$`)
)

// Link is a named URL listed under a post.
type Link struct {
	Name string
	URL  string
}

// Media is the result of processing the embeds of an original message.
type Media struct {
	// Images are image URLs to show, in order.
	Images []string
	// Embeds are the original rich embeds that should be shown as extra embeds.
	Embeds []discord.Embed
	// Files are synthesized attachments such as imgur videos.
	Files []Link
}

// ModifyImgurURL removes the thumbnail suffix from an imgur image URL.
func ModifyImgurURL(url string) string {
	return imgurThumbnailPattern.ReplaceAllString(url, "${1}${2}${3}")
}

// TenorGIFURL converts a tenor media URL into its gif variant. Returns false
// when url is not a tenor media URL.
func TenorGIFURL(url string) (string, bool) {
	m := tenorPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}

	id := m[1][:len(m[1])-1] + "C"
	return "https://c.tenor.com/" + id + "/" + m[2] + ".gif", true
}

// GiphyGIFURL converts a giphy media URL into its direct gif. Returns false
// when url is not a giphy media URL.
func GiphyGIFURL(url string) (string, bool) {
	m := giphyPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}

	return "https://i.giphy.com/media/" + m[1] + "/" + strings.TrimSuffix(m[2], "_s") + ".gif", true
}

// ProcessEmbeds rewrites the embeds of an original message into images,
// extra embeds and synthesized files.
func ProcessEmbeds(embeds []discord.Embed) Media {
	var media Media

	for i := range embeds {
		e := embeds[i]

		switch {
		case isProvider(&e, "imgur"):
			if e.Video != nil && e.Video.ProxyURL != "" {
				media.Files = append(media.Files, Link{
					Name: "imgur_video" + extension(e.Video.URL, ".mp4"),
					URL:  e.Video.ProxyURL,
				})
				continue
			}
			if e.Thumbnail != nil {
				media.Images = append(media.Images, ModifyImgurURL(e.Thumbnail.URL))
				continue
			}

		case isProvider(&e, "youtube"):
			e.Description = ""
			if e.Thumbnail != nil {
				e.Image = e.Thumbnail
				e.Thumbnail = nil
			}
			e.Video = nil
			media.Embeds = append(media.Embeds, e)
			continue

		case e.Type == embedTypeGIFV:
			if gif, ok := gifURL(&e); ok {
				media.Images = append(media.Images, gif)
				continue
			}

		case e.Type == embedTypeImage:
			if e.Thumbnail != nil {
				media.Images = append(media.Images, e.Thumbnail.URL)
				continue
			}
		}

		if e.Type == embedTypeGIFV || e.Type == embedTypeImage {
			if e.URL != "" {
				media.Images = append(media.Images, e.URL)
			}
			continue
		}

		media.Embeds = append(media.Embeds, e)
	}

	return media
}

func gifURL(e *discord.Embed) (string, bool) {
	candidates := []string{e.URL}
	if e.Video != nil {
		candidates = append(candidates, e.Video.URL)
	}
	if e.Thumbnail != nil {
		candidates = append(candidates, e.Thumbnail.URL)
	}

	for _, c := range candidates {
		if gif, ok := TenorGIFURL(c); ok {
			return gif, true
		}
		if gif, ok := GiphyGIFURL(c); ok {
			return gif, true
		}
	}

	return "", false
}

func isProvider(e *discord.Embed, name string) bool {
	if e.Provider != nil && strings.EqualFold(e.Provider.Name, name) {
		return true
	}

	return strings.Contains(strings.ToLower(e.URL), name+".com/")
}

func extension(url, fallback string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}

	if ext := path.Ext(url); ext != "" {
		return ext
	}

	return fallback
}
