// Package parser turns a line of user input into a client command.
package parser

import (
	"strings"
)

// Kind identifies a command.
type Kind int

const (
	// Submit adds Arg to the word cloud. Arg may be empty; the controller
	// rejects it.
	Submit Kind = iota
	Connect
	Init
	Refresh
	Help
	Quit
	// Unknown is a slash command that is not recognized. Arg holds its name.
	Unknown
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Submit:
		return "submit"
	case Connect:
		return "connect"
	case Init:
		return "init"
	case Refresh:
		return "refresh"
	case Help:
		return "help"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is one parsed input line.
type Command struct {
	Kind Kind
	Arg  string
}

var commands = map[string]Kind{
	"connect": Connect,
	"c":       Connect,
	"init":    Init,
	"i":       Init,
	"refresh": Refresh,
	"r":       Refresh,
	"help":    Help,
	"h":       Help,
	"?":       Help,
	"quit":    Quit,
	"q":       Quit,
	"exit":    Quit,
}

// Parse interprets line. Surrounding whitespace is dropped. A leading "/"
// starts a command; "//" escapes a literal slash so "//x" submits "/x".
func Parse(line string) Command {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "/") {
		return Command{Kind: Submit, Arg: s}
	}
	if strings.HasPrefix(s, "//") {
		return Command{Kind: Submit, Arg: s[1:]}
	}

	name, rest, _ := strings.Cut(s[1:], " ")
	name = strings.ToLower(name)
	if name == "submit" || name == "s" {
		return Command{Kind: Submit, Arg: strings.TrimSpace(rest)}
	}
	kind, ok := commands[name]
	if !ok {
		return Command{Kind: Unknown, Arg: name}
	}
	return Command{Kind: kind}
}

// Usage lists the commands accepted by Parse.
const Usage = `type a word and press enter to add it
/connect   connect the wallet
/init      initialize the shared record (only when absent)
/refresh   re-fetch the record
/help      show this help
/quit      exit
//word     submit a word that starts with "/"`
