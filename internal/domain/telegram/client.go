package telegram

import "gopkg.in/telebot.v3"

// Client is the delivery sink: given a chat identity and formatted text it
// sends one message. Decouples services from the bot library; failures are
// per-recipient and never abort a batch.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
