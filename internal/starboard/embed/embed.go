// Package embed renders original messages into starboard posts.
package embed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

const (
	maxDescriptionLength = 4096
	maxFieldLength       = 1024
	maxEmbeds            = 10
	maxUsernameLength    = 80
	zeroWidthSpace       = "​"
	deletedUserName      = "Deleted User"
)

// Input is everything needed to render one post.
type Input struct {
	Settings *types.StarboardSettings
	Message  *cache.Message
	// Member and User describe the author. Either may be nil.
	Member *cache.Member
	User   *cache.User
	// Reply is the message the original replied to, if any.
	Reply       *cache.Message
	ReplyAuthor string
	Points      int64
	Trashed     bool
	TrashReason *string
	Frozen      bool
}

// Post is a rendered starboard post.
type Post struct {
	Content       string
	Embeds        []discord.Embed
	Components    []discord.LayoutComponent
	Username      string
	AvatarURL     string
	MentionUserID *snowflake.ID
}

// Builder renders posts.
type Builder struct {
	input *Input
}

// NewBuilder creates a Builder for one input.
func NewBuilder(input *Input) *Builder {
	return &Builder{input: input}
}

// MessageURL returns the jump URL of a message.
func MessageURL(guildID, channelID, messageID snowflake.ID) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

// TopLine returns the text shown above the embed.
func TopLine(settings *types.StarboardSettings, points int64, trashed bool) string {
	if trashed {
		return "trashed message " + strconv.FormatInt(points, 10)
	}

	if settings.DisplayEmoji == "" {
		return strconv.FormatInt(points, 10)
	}

	return settings.DisplayEmoji + " " + strconv.FormatInt(points, 10)
}

// Build renders the post.
func (b *Builder) Build() *Post {
	in := b.input
	settings := in.Settings
	msg := in.Message
	url := MessageURL(msg.GuildID, msg.ChannelID, msg.ID)

	post := &Post{Content: TopLine(settings, in.Points, in.Trashed)}
	post.Username, post.AvatarURL = b.identity()

	if in.Trashed {
		reason := "no reason given"
		if in.TrashReason != nil && *in.TrashReason != "" {
			reason = *in.TrashReason
		}
		post.Embeds = []discord.Embed{{
			Color:       int(settings.Color),
			Description: "This message was trashed by a moderator.",
			Fields:      []discord.EmbedField{{Name: "Reason", Value: truncate(reason, maxFieldLength)}},
		}}
		return post
	}

	switch settings.GoToMessage {
	case enum.GoToMessageMention:
		post.Content += " " + url
	case enum.GoToMessageButton:
		post.Components = []discord.LayoutComponent{
			discord.NewActionRow(discord.NewLinkButton("Go to Message", url)),
		}
	}

	if settings.PingAuthor {
		post.Content += fmt.Sprintf(" <@%d>", msg.AuthorID)
		id := msg.AuthorID
		post.MentionUserID = &id
	}

	if in.Frozen {
		post.Content += " ❄️"
	}

	media := ProcessEmbeds(msg.Embeds)
	images, files := splitAttachments(msg.Attachments)
	images = append(images, media.Images...)
	files = append(files, media.Files...)

	primary := b.primaryEmbed(url)
	if len(images) > 0 {
		primary.Image = &discord.EmbedResource{URL: images[0]}
	}

	if settings.AttachmentsList && len(files) > 0 {
		lines := make([]string, 0, len(files))
		for _, f := range files {
			lines = append(lines, fmt.Sprintf("[%s](%s)", f.Name, f.URL))
		}
		primary.Fields = append(primary.Fields, discord.EmbedField{
			Name:  "Attachments",
			Value: truncate(strings.Join(lines, "\n"), maxFieldLength),
		})
	}

	post.Embeds = append(post.Embeds, primary)

	if settings.ExtraEmbeds {
		for _, img := range images[min(1, len(images)):] {
			post.Embeds = append(post.Embeds, discord.Embed{
				Color: int(settings.Color),
				Image: &discord.EmbedResource{URL: img},
			})
		}
		post.Embeds = append(post.Embeds, media.Embeds...)
	}

	if len(post.Embeds) > maxEmbeds {
		post.Embeds = post.Embeds[:maxEmbeds]
	}

	return post
}

func (b *Builder) primaryEmbed(url string) discord.Embed {
	in := b.input
	settings := in.Settings
	msg := in.Message

	name, avatar := b.identity()
	created := msg.CreatedAt

	e := discord.Embed{
		Color:       int(settings.Color),
		Description: truncate(b.description(), maxDescriptionLength),
		Author:      &discord.EmbedAuthor{Name: name, IconURL: avatar},
		Footer:      &discord.EmbedFooter{Text: "ID: " + msg.ID.String()},
	}
	if !created.IsZero() {
		e.Timestamp = &created
	}

	if settings.RepliedTo && in.Reply != nil {
		reply := in.ReplyAuthor
		if reply == "" {
			reply = deletedUserName
		}
		content := in.Reply.Content
		if content == "" {
			content = "*file only*"
		}
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:  "Replying to " + reply,
			Value: truncate(content, maxFieldLength),
		})
	}

	if settings.GoToMessage == enum.GoToMessageLink {
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:  zeroWidthSpace,
			Value: fmt.Sprintf("[Go to Message](%s)", url),
		})
	}

	return e
}

func (b *Builder) description() string {
	msg := b.input.Message

	var sb strings.Builder
	sb.WriteString(msg.Content)

	for _, s := range msg.Stickers {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("**Sticker:** ")
		sb.WriteString(s.Name)
	}

	return sb.String()
}

// identity returns the name and avatar the post is attributed to.
func (b *Builder) identity() (string, string) {
	in := b.input

	switch {
	case in.Settings.UseServerProfile && in.Member != nil:
		return truncate(in.Member.DisplayName, maxUsernameLength), in.Member.AvatarURL
	case in.User != nil:
		return truncate(in.User.DisplayName, maxUsernameLength), in.User.AvatarURL
	case in.Member != nil:
		return truncate(in.Member.DisplayName, maxUsernameLength), in.Member.AvatarURL
	default:
		return deletedUserName, ""
	}
}

// splitAttachments separates image attachments from other files.
func splitAttachments(attachments []discord.Attachment) ([]string, []Link) {
	var (
		images []string
		files  []Link
	)

	for i := range attachments {
		a := &attachments[i]
		if a.ContentType != nil && strings.HasPrefix(*a.ContentType, "image") {
			images = append(images, a.URL)
		}
		files = append(files, Link{Name: a.Filename, URL: a.URL})
	}

	return images, files
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit-1]) + "…"
}

// MessageCreate returns the post as a bot message.
func (p *Post) MessageCreate() discord.MessageCreate {
	return discord.MessageCreate{
		Content:         p.Content,
		Embeds:          p.Embeds,
		Components:      p.Components,
		AllowedMentions: p.allowedMentions(),
	}
}

// MessageUpdate returns the post as an edit of a bot message.
func (p *Post) MessageUpdate() discord.MessageUpdate {
	content := p.Content
	embeds := p.Embeds
	components := p.Components
	if components == nil {
		components = []discord.LayoutComponent{}
	}

	return discord.MessageUpdate{
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		AllowedMentions: p.allowedMentions(),
	}
}

// WebhookMessageCreate returns the post as a webhook message spoofing the author.
func (p *Post) WebhookMessageCreate() discord.WebhookMessageCreate {
	return discord.WebhookMessageCreate{
		Content:         p.Content,
		Username:        p.Username,
		AvatarURL:       p.AvatarURL,
		Embeds:          p.Embeds,
		Components:      p.Components,
		AllowedMentions: p.allowedMentions(),
	}
}

// WebhookMessageUpdate returns the post as an edit of a webhook message.
func (p *Post) WebhookMessageUpdate() discord.WebhookMessageUpdate {
	content := p.Content
	embeds := p.Embeds
	components := p.Components
	if components == nil {
		components = []discord.LayoutComponent{}
	}

	return discord.WebhookMessageUpdate{
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		AllowedMentions: p.allowedMentions(),
	}
}

func (p *Post) allowedMentions() *discord.AllowedMentions {
	if p.MentionUserID == nil {
		return &discord.AllowedMentions{}
	}

	return &discord.AllowedMentions{Users: []snowflake.ID{*p.MentionUserID}}
}
