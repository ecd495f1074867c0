package bus

import "fmt"

// Update represents one inbound message/update delivered by the transport.
// An Update is never mutated after receipt; the session that consumes it
// owns it.
type Update struct {
	Account   string     // account identifier the update was delivered to
	ChatID    string     // originating chat identifier
	MessageID int        // platform message identifier
	SenderID  int64      // sender identifier
	Seq       uint64     // arrival order, stamped by the hub, monotonic per hub
	Outgoing  bool       // true for messages sent by the account itself
	Text      string     // plain text content
	Photo     *Photo     // set when the message carries an image
	Options   [][]Option // inline option rows, presentation order
}

// Photo is an image attached to an update.
type Photo struct {
	MediaRef  string // platform file identifier, used to request a download
	Caption   string // caption text accompanying the image
	LocalPath string // local file path; empty until the media is materialized
}

// Option is one selectable choice presented by a bot.
type Option struct {
	Label  string // visible text
	Handle string // opaque callback payload used to click the option
}

// HasOptions reports whether the update carries at least one selectable option.
func (u Update) HasOptions() bool {
	for _, row := range u.Options {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// FlatOptions returns the options flattened in presentation order.
func (u Update) FlatOptions() []Option {
	var out []Option
	for _, row := range u.Options {
		out = append(out, row...)
	}
	return out
}

// PairKey returns the routing key for session dispatch: "account:chatID".
func (u Update) PairKey() string {
	return fmt.Sprintf("%s:%s", u.Account, u.ChatID)
}
