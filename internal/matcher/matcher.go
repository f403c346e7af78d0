// Package matcher turns free-form post titles and private messages into intents.
// Every function here is pure.
package matcher

import (
	"math/big"
	"regexp"
	"strings"

	"tower_bot/internal/models"
)

var floorTitle = regexp.MustCompile(`(?i)^\[New Floor\]\[(\d+)\](.*)`)

// Intent is either a NewFloor or a Command. The unexported method closes the set.
type Intent interface {
	intent()
	Source() models.FeedItem
}

// NewFloor is a floor claim parsed from a post title.
type NewFloor struct {
	// Number is the canonical decimal form of the floor number, without leading zeros.
	Number string
	Name   string
	Item   models.FeedItem
}

func (NewFloor) intent() {}
func (f NewFloor) Source() models.FeedItem { return f.Item }

// Int64 returns the floor number when it fits in an int64.
func (f NewFloor) Int64() (int64, bool) {
	n, ok := new(big.Int).SetString(f.Number, 10)
	if !ok || !n.IsInt64() {
		return 0, false
	}
	return n.Int64(), true
}

type CommandKind int

const (
	CreateAccount CommandKind = iota + 1
	ResetPassword
)

func (k CommandKind) String() string {
	switch k {
	case CreateAccount:
		return "create_account"
	case ResetPassword:
		return "reset_password"
	default:
		return "unknown"
	}
}

// Command is a private-message command.
type Command struct {
	Kind CommandKind
	Item models.FeedItem
}

func (Command) intent() {}
func (c Command) Source() models.FeedItem { return c.Item }

var commandWords = map[string]CommandKind{
	"create account": CreateAccount,
	"reset password": ResetPassword,
}

// ParseFloorTitle matches `[New Floor][<n>]<name>` case-insensitively. The
// number may have any magnitude but must be positive.
func ParseFloorTitle(title string) (number, name string, ok bool) {
	m := floorTitle.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}
	n, valid := new(big.Int).SetString(m[1], 10)
	if !valid || n.Sign() <= 0 {
		return "", "", false
	}
	return n.String(), strings.TrimSpace(m[2]), true
}

// MatchPost returns a NewFloor intent for a post whose title carries the tag.
func MatchPost(item models.FeedItem) (NewFloor, bool) {
	number, name, ok := ParseFloorTitle(item.RawText)
	if !ok {
		return NewFloor{}, false
	}
	return NewFloor{Number: number, Name: name, Item: item}, true
}

// ParseCommand checks the normalized subject first, then the body. Only exact
// matches count.
func ParseCommand(subject, body string) (CommandKind, bool) {
	for _, field := range []string{subject, body} {
		if kind, ok := commandWords[strings.ToLower(strings.TrimSpace(field))]; ok {
			return kind, true
		}
	}
	return 0, false
}

// MatchMessage returns a Command intent. Comment replies are never commands.
func MatchMessage(item models.FeedItem) (Command, bool) {
	if item.IsComment {
		return Command{}, false
	}
	kind, ok := ParseCommand(item.Subject, item.Body)
	if !ok {
		return Command{}, false
	}
	return Command{Kind: kind, Item: item}, true
}

// Match dispatches on the stream and returns nil when nothing matched.
func Match(stream models.Stream, item models.FeedItem) Intent {
	switch stream {
	case models.StreamPosts:
		if floor, ok := MatchPost(item); ok {
			return floor
		}
	case models.StreamMessages:
		if cmd, ok := MatchMessage(item); ok {
			return cmd
		}
	}
	return nil
}
