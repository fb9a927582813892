// Copyright 2024-2026 Aiku AI

package archive

// SlackbotID is the fixed user ID of the built-in Slack bot.
const SlackbotID = "USLACKBOT"

// Profile holds the subset of a Slack user profile used by the migration.
type Profile struct {
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// User is an entry of users.json.
type User struct {
	ID      string  `json:"id"`
	TeamID  string  `json:"team_id"`
	Name    string  `json:"name"`
	Deleted bool    `json:"deleted"`
	IsBot   bool    `json:"is_bot"`
	Profile Profile `json:"profile"`
}

// TextValue is the {"value": ...} shape Slack uses for topics and purposes.
type TextValue struct {
	Value   string `json:"value"`
	Creator string `json:"creator"`
	LastSet int64  `json:"last_set"`
}

// Channel is an entry of channels.json or groups.json.
type Channel struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Created    int64     `json:"created"`
	Creator    string    `json:"creator"`
	IsArchived bool      `json:"is_archived"`
	Members    []string  `json:"members"`
	Topic      TextValue `json:"topic"`
	Purpose    TextValue `json:"purpose"`
}

// DM is an entry of dms.json or mpims.json. MPIMs additionally carry a
// name, which is also their message folder.
type DM struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Created    int64    `json:"created"`
	User       string   `json:"user"`
	Creator    string   `json:"creator"`
	IsArchived bool     `json:"is_archived"`
	Members    []string `json:"members"`
}

// Reply is an entry of a thread root's replies list.
type Reply struct {
	User string `json:"user"`
	TS   string `json:"ts"`
}

// Reaction lists every user that reacted with one emoji.
type Reaction struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// File is a file shared in a message.
type File struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Title              string `json:"title"`
	Mimetype           string `json:"mimetype"`
	Size               int64  `json:"size"`
	URLPrivate         string `json:"url_private"`
	URLPrivateDownload string `json:"url_private_download"`
	Mode               string `json:"mode"`
}

// Attachment is a legacy message attachment (link unfurls, shares).
type Attachment struct {
	IsShare   bool   `json:"is_share"`
	Footer    string `json:"footer"`
	Text      string `json:"text"`
	Fallback  string `json:"fallback"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link"`
}

// Message is a single record of a per-day message file.
type Message struct {
	Type         string       `json:"type"`
	Subtype      string       `json:"subtype,omitempty"`
	User         string       `json:"user,omitempty"`
	BotID        string       `json:"bot_id,omitempty"`
	Text         string       `json:"text"`
	TS           string       `json:"ts"`
	ThreadTS     string       `json:"thread_ts,omitempty"`
	ParentUserID string       `json:"parent_user_id,omitempty"`
	ClientMsgID  string       `json:"client_msg_id,omitempty"`
	Hidden       bool         `json:"hidden,omitempty"`
	Replies      []Reply      `json:"replies,omitempty"`
	Reactions    []Reaction   `json:"reactions,omitempty"`
	Files        []File       `json:"files,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// IsThreadRoot reports whether the message started a thread and lists its replies.
func (m *Message) IsThreadRoot() bool {
	return len(m.Replies) > 0
}

// IsThreadReply reports whether the message declares itself a reply in a thread.
func (m *Message) IsThreadReply() bool {
	return m.ThreadTS != "" && m.ParentUserID != "" && len(m.Replies) == 0 && m.User != SlackbotID
}
