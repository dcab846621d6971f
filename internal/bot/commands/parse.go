package commands

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// mentionPattern matches channel, role and user mentions as well as bare ids.
	mentionPattern = regexp.MustCompile(`^(?:<(?:#|@&|@!?)(\d{15,21})>|(\d{15,21}))$`)
	// messageLinkPattern matches a message link or a channel-message id pair.
	messageLinkPattern = regexp.MustCompile(
		`^(?:https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(?:\d+|@me)/(\d+)/(\d+)|(\d+)[-/](\d+))/?$`,
	)
)

// parseIDs reads a list of mentions or ids separated by spaces or commas.
func parseIDs(input string) ([]snowflake.ID, error) {
	var ids []snowflake.ID

	for _, token := range splitList(input) {
		m := mentionPattern.FindStringSubmatch(token)
		if m == nil {
			return nil, userErrorf("%q is not a mention or id.", token)
		}

		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		id, err := snowflake.Parse(raw)
		if err != nil {
			return nil, userErrorf("%q is not a valid id.", token)
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, userErrorf("At least one mention or id is required.")
	}

	return ids, nil
}

// toUint64s converts ids for storage in bigint arrays.
func toUint64s(ids []snowflake.ID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

// parseMessageLink reads a message link, or "channelID-messageID" as copied
// with shift held. A bare message id has no channel.
func parseMessageLink(input string) (channelID, messageID snowflake.ID, err error) {
	input = strings.TrimSpace(input)

	if id, perr := strconv.ParseUint(input, 10, 64); perr == nil {
		return 0, snowflake.ID(id), nil
	}

	m := messageLinkPattern.FindStringSubmatch(input)
	if m == nil {
		return 0, 0, userErrorf("%q is not a message link.", input)
	}

	rawChannel, rawMessage := m[1], m[2]
	if rawChannel == "" {
		rawChannel, rawMessage = m[3], m[4]
	}

	channel, cerr := snowflake.Parse(rawChannel)
	message, merr := snowflake.Parse(rawMessage)
	if cerr != nil || merr != nil {
		return 0, 0, userErrorf("%q is not a message link.", input)
	}

	return channel, message, nil
}
