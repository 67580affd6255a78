package notification

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MessagesPath is the in-app route of the messages view.
const MessagesPath = "/messages"

// Input describes a freshly received message to alert about.
type Input struct {
	SenderName     string
	Message        string
	PartTitle      string // optional
	SenderImage    string // optional
	ConversationID string
}

// Data is the auxiliary payload carried by a notification.
type Data struct {
	ConversationID string `json:"conversationId"`
	URL            string `json:"url"`
}

// Notification is what the tab renders through its system notification API.
// Tag is the conversation id, so a newer alert for the same conversation
// replaces the older one instead of stacking.
type Notification struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"requireInteraction"`
	Silent             bool   `json:"silent"`
	Data               Data   `json:"data"`
}

// Build renders in into a Notification. defaultIcon is used when the sender has no image.
func Build(in Input, defaultIcon string) Notification {
	sender := strings.TrimSpace(in.SenderName)
	if sender == "" {
		sender = "Someone"
	}

	body := in.Message
	if part := strings.TrimSpace(in.PartTitle); part != "" {
		body = part + ": " + in.Message
	}

	icon := strings.TrimSpace(in.SenderImage)
	if icon == "" {
		icon = defaultIcon
	}

	return Notification{
		ID:                 uuid.NewString(),
		Title:              fmt.Sprintf("%s sent you a message", sender),
		Body:               body,
		Icon:               icon,
		Tag:                in.ConversationID,
		RequireInteraction: false,
		Silent:             false,
		Data: Data{
			ConversationID: in.ConversationID,
			URL:            MessagesPath,
		},
	}
}

// Presence is what the tab last reported about itself.
type Presence struct {
	Visible bool
	Path    string
}

// OnMessagesView reports whether the user is looking at the messages view right now.
func (p Presence) OnMessagesView() bool {
	return p.Visible && p.Path == MessagesPath
}

// PresenceProvider exposes the tab's current presence.
type PresenceProvider interface {
	Presence() Presence
}

// Display is the tab-side rendering surface.
type Display interface {
	Show(n Notification) error
	Close(tag string) error
	Focus() error
	Navigate(url string) error
}
