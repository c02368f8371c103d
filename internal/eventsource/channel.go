package eventsource

import "strings"

const (
	channelPrefix = "Local/"
	channelSuffix = "@from-queue"
)

// ChannelFor converts a roster extension into the agent channel recorded in queue_log
func ChannelFor(voipID string) string {
	return channelPrefix + strings.TrimSpace(voipID) + channelSuffix
}

// ChannelsFor converts a list of extensions
func ChannelsFor(voipIDs []string) []string {
	out := make([]string, 0, len(voipIDs))
	for _, id := range voipIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, ChannelFor(id))
	}
	return out
}

// VoipIDFromChannel strips the channel decoration, leaving the extension
func VoipIDFromChannel(channel string) string {
	id := strings.TrimPrefix(channel, channelPrefix)
	return strings.TrimSuffix(id, channelSuffix)
}
